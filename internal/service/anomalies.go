package service

import (
	"context"
	"fmt"
	"time"

	core "github.com/spounge-ai/auditchain/internal/audit"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/metrics"
)

// DetectAnomalies scans the last window (the configured window when zero). It never writes.
func (s *auditServiceImpl) DetectAnomalies(ctx context.Context, window time.Duration) ([]core.AnomalyRecord, error) {
	ctx, span := tracer.Start(ctx, "DetectAnomalies")
	defer span.End()

	if window < 0 {
		return nil, fmt.Errorf("%w: window cannot be negative", app_errors.ErrValidation)
	}
	if window == 0 {
		window = s.cfg.AnomalyWindow
	}

	end := s.now()
	entries, err := s.collect(ctx, end.Add(-window), end)
	if err != nil {
		return nil, err
	}

	records := s.detector.Detect(entries)
	for _, r := range records {
		metrics.AnomaliesDetected.WithLabelValues(string(r.Type)).Add(float64(len(r.Details)))
		s.logger.WarnContext(ctx, "anomaly detected",
			"type", string(r.Type),
			"details", len(r.Details),
			"window", window.String())
	}
	if records == nil {
		records = []core.AnomalyRecord{}
	}
	return records, nil
}
