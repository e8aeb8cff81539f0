package audit

import (
	"context"
	"log/slog"

	"github.com/spounge-ai/auditchain/internal/domain"
)

// StructuredAuditLogger mirrors every appended entry to the process log as one "audit_event"
// line. Only sanitized, bounded fields are written; change payloads never are.
type StructuredAuditLogger struct {
	logger *slog.Logger
}

func NewStructuredAuditLogger(logger *slog.Logger) *StructuredAuditLogger {
	return &StructuredAuditLogger{logger: logger}
}

func (sal *StructuredAuditLogger) LogEntry(ctx context.Context, entry *domain.AuditEntry) {
	logAttrs := []slog.Attr{
		slog.String("audit_id", entry.ID),
		slog.String("event_type", string(entry.EventType)),
		slog.String("category", string(entry.EventCategory)),
		slog.String("severity", string(entry.Severity)),
		slog.String("action", entry.Action),
		slog.Time("timestamp", entry.Timestamp),
		slog.String("signature", entry.Signature),
	}

	if entry.Actor != nil {
		logAttrs = append(logAttrs, slog.Group("actor",
			slog.String("user_id", entry.Actor.UserID),
			slog.String("role", entry.Actor.Role),
		))
	}

	if entry.Resource != "" || entry.ResourceID != "" {
		logAttrs = append(logAttrs, slog.Group("resource",
			slog.String("name", entry.Resource),
			slog.String("type", entry.ResourceType),
			slog.String("id", entry.ResourceID),
		))
	}

	if entry.Environment.IPAddress != "" {
		logAttrs = append(logAttrs, slog.String("client_ip", entry.Environment.IPAddress))
	}
	if entry.CorrelationID != "" {
		logAttrs = append(logAttrs, slog.String("correlation_id", entry.CorrelationID))
	}

	level := slog.LevelInfo
	if entry.Severity == domain.SeverityCritical || entry.Severity == domain.SeverityHigh {
		level = slog.LevelWarn
	}
	sal.logger.LogAttrs(ctx, level, "audit_event", logAttrs...)
}
