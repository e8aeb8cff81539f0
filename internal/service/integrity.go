package service

import (
	"context"
	"log/slog"
	"time"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/infra/metrics"
	"github.com/spounge-ai/auditchain/internal/validation"
	"go.opentelemetry.io/otel/attribute"
)

// VerifyChain reports integrity findings for [start, end]. Findings are never repaired.
func (s *auditServiceImpl) VerifyChain(ctx context.Context, start, end time.Time) (*core.VerificationReport, error) {
	ctx, span := tracer.Start(ctx, "VerifyChain")
	defer span.End()

	if err := validation.ValidateRange(start, end); err != nil {
		return nil, err
	}

	report, err := s.verifier.VerifyChain(ctx, s.repo, start, end)
	if err != nil {
		return nil, storageFailure("verify chain", err)
	}

	span.SetAttributes(attribute.Int("audit.total", report.Total), attribute.Int("audit.invalid", report.Invalid))
	for _, b := range report.Broken {
		metrics.VerificationFindings.WithLabelValues(b.Reason).Inc()
	}

	level := slog.LevelInfo
	if !report.Intact() {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "audit chain verified",
		slog.Time("start", start),
		slog.Time("end", end),
		slog.Int("total", report.Total),
		slog.Int("invalid", report.Invalid),
		slog.Int("findings", len(report.Broken)))

	return report, nil
}
