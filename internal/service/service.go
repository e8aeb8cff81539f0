package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/audit"
	"github.com/spounge-ai/auditchain/internal/validation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultExportLimit = 10000

// DefaultRetentionDays is the archive age used when neither the caller nor Config sets one.
const DefaultRetentionDays = 90

var tracer = otel.Tracer("github.com/spounge-ai/auditchain/internal/service")

// AuditService is the operator-facing surface of the audit log.
type AuditService interface {
	Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.AuditEntry, error)
	Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error)
	VerifyChain(ctx context.Context, start, end time.Time) (*core.VerificationReport, error)
	DetectAnomalies(ctx context.Context, window time.Duration) ([]core.AnomalyRecord, error)
	ArchiveOldLogs(ctx context.Context, daysOld int) (*ArchiveResult, error)
	GetStats(ctx context.Context, start, end time.Time, topN int) (*core.Stats, error)
	AggregateForCompliance(ctx context.Context, start, end time.Time) (*core.ComplianceReport, error)
	Export(ctx context.Context, w io.Writer, filter domain.QueryFilter, sort domain.Sort, format core.ExportFormat) (int, error)
}

type Config struct {
	AnomalyWindow time.Duration
	Detector      core.DetectorConfig
	ExportLimit   int
	// RetentionDays is the archive age used when ArchiveOldLogs is called with 0.
	RetentionDays int
	// Now overrides the clock for windows and archive cutoffs.
	Now func() time.Time
}

type auditServiceImpl struct {
	ingester audit.Ingester
	repo     domain.AuditRepository
	verifier *core.Verifier
	detector *core.Detector
	queries  *validation.QueryValidator
	sink     domain.ArchiveSink
	logger   *slog.Logger
	cfg      Config
}

// NewAuditService wires the façade. sink may be nil, in which case archiving only flags
// entries.
func NewAuditService(
	cfg Config,
	ingester audit.Ingester,
	repo domain.AuditRepository,
	signer *core.Signer,
	sink domain.ArchiveSink,
	logger *slog.Logger,
) AuditService {
	if cfg.AnomalyWindow <= 0 {
		cfg.AnomalyWindow = core.DefaultAnomalyWindow
	}
	if cfg.ExportLimit <= 0 {
		cfg.ExportLimit = DefaultExportLimit
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &auditServiceImpl{
		ingester: ingester,
		repo:     repo,
		verifier: core.NewVerifier(signer),
		detector: core.NewDetector(cfg.Detector),
		queries:  validation.NewQueryValidator(),
		sink:     sink,
		logger:   logger,
		cfg:      cfg,
	}
}

func (s *auditServiceImpl) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.AuditEntry, error) {
	ctx, span := tracer.Start(ctx, "Ingest")
	defer span.End()

	entry, err := s.ingester.Ingest(ctx, req)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("audit.entry_id", entry.ID), attribute.String("audit.event_type", string(entry.EventType)))
	return entry, nil
}

func (s *auditServiceImpl) now() time.Time {
	return s.cfg.Now().UTC()
}

// storageFailure marks a repository error as ErrStorageUnavailable unless it already carries a
// more specific class or came from the caller's context.
func storageFailure(op string, err error) error {
	switch {
	case errors.Is(err, app_errors.ErrStorageUnavailable),
		errors.Is(err, app_errors.ErrValidation),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("failed to %s: %w", op, err)
	default:
		return fmt.Errorf("%w: failed to %s: %w", app_errors.ErrStorageUnavailable, op, err)
	}
}

// collect reads [start, end] into memory in chain order.
func (s *auditServiceImpl) collect(ctx context.Context, start, end time.Time) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	err := s.repo.ScanRange(ctx, start, end, func(e *domain.AuditEntry) error {
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, storageFailure("scan audit range", err)
	}
	return entries, nil
}
