package audit

import (
	"context"
	"log/slog"

	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/infra/metrics"
)

// Recorder implements domain.AuditLogger on top of an Ingester. Callers are never failed by
// auditing: errors are logged and counted.
type Recorder struct {
	logger   *slog.Logger
	ingester Ingester
}

func NewRecorder(logger *slog.Logger, ingester Ingester) domain.AuditLogger {
	return &Recorder{
		logger:   logger,
		ingester: ingester,
	}
}

func (r *Recorder) Record(ctx context.Context, req *domain.IngestRequest) {
	if req == nil {
		return
	}
	req = WithRequestEnvironment(ctx, req)

	if _, err := r.ingester.Ingest(ctx, req); err != nil {
		metrics.RecorderDropped.Inc()
		r.logger.ErrorContext(ctx, "failed to record audit event",
			slog.String("event_type", req.EventType),
			slog.String("action", req.Action),
			slog.String("error", err.Error()))
	}
}
