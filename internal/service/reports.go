package service

import (
	"context"
	"time"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/validation"
)

// GetStats builds every facet in one streaming pass over [start, end].
func (s *auditServiceImpl) GetStats(ctx context.Context, start, end time.Time, topN int) (*core.Stats, error) {
	if err := validation.ValidateRange(start, end); err != nil {
		return nil, err
	}

	b := core.NewStatsBuilder(topN)
	if err := s.repo.ScanRange(ctx, start, end, b.Add); err != nil {
		return nil, storageFailure("compute stats", err)
	}
	return b.Build(), nil
}

func (s *auditServiceImpl) AggregateForCompliance(ctx context.Context, start, end time.Time) (*core.ComplianceReport, error) {
	if err := validation.ValidateRange(start, end); err != nil {
		return nil, err
	}

	entries, err := s.collect(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return core.AggregateForCompliance(entries), nil
}
