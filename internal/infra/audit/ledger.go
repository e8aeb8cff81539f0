package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	core "github.com/spounge-ai/auditchain/internal/audit"
	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/internal/infra/metrics"
	"github.com/spounge-ai/auditchain/internal/validation"
	"github.com/spounge-ai/auditchain/pkg/execution"
)

const DefaultMaxConflictRetries = 5

// Ingester appends one entry to the chain.
type Ingester interface {
	Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.AuditEntry, error)
}

type LedgerConfig struct {
	MaxConflictRetries int
	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}

// Ledger builds and appends chained entries. Within a process all appends go through one
// mutex; across processes the store's conditional append rejects a second child of the same
// head and the Ledger retries against the new head.
type Ledger struct {
	mu         sync.Mutex
	repo       domain.AuditRepository
	signer     *core.Signer
	validator  *validation.RequestValidator
	mirror     *StructuredAuditLogger
	logger     *slog.Logger
	maxRetries int
	now        func() time.Time
}

func NewLedger(
	repo domain.AuditRepository,
	signer *core.Signer,
	validator *validation.RequestValidator,
	mirror *StructuredAuditLogger,
	logger *slog.Logger,
	cfg LedgerConfig,
) *Ledger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.MaxConflictRetries < 0 {
		cfg.MaxConflictRetries = DefaultMaxConflictRetries
	}
	return &Ledger{
		repo:       repo,
		signer:     signer,
		validator:  validator,
		mirror:     mirror,
		logger:     logger,
		maxRetries: cfg.MaxConflictRetries,
		now:        cfg.Now,
	}
}

// Ingest validates, sanitizes, classifies, signs and appends one entry.
func (l *Ledger) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.AuditEntry, error) {
	started := time.Now()

	if err := l.validator.ValidateIngestRequest(req); err != nil {
		metrics.IngestFailures.WithLabelValues(metrics.ReasonValidation).Inc()
		return nil, err
	}

	entry := newEntry(req)
	core.Classify(entry)

	l.mu.Lock()
	defer l.mu.Unlock()

	policy := execution.RetryPolicy{
		MaxRetries: l.maxRetries,
		Retryable:  func(err error) bool { return errors.Is(err, domain.ErrChainConflict) },
		OnRetry: func(attempt int, err error) {
			metrics.ChainConflicts.Inc()
			l.logger.WarnContext(ctx, "chain head moved, retrying append",
				slog.String("audit_id", entry.ID),
				slog.Int("attempt", attempt))
		},
	}

	_, err := execution.WithRetry(ctx, policy, func(ctx context.Context) (struct{}, error) {
		head, err := l.repo.LatestEntry(ctx)
		if err != nil {
			return struct{}{}, fmt.Errorf("failed to read chain head: %w", err)
		}
		l.link(entry, head)
		return struct{}{}, l.repo.Append(ctx, entry)
	})
	if err != nil {
		return nil, l.appendFailed(ctx, entry, err)
	}

	metrics.EntriesIngested.WithLabelValues(string(entry.EventCategory), string(entry.Severity)).Inc()
	metrics.IngestDuration.Observe(time.Since(started).Seconds())
	if l.mirror != nil {
		l.mirror.LogEntry(ctx, entry)
	}

	return entry, nil
}

// link stamps entry against the current head. Timestamps never go backwards along the chain
// even if the wall clock does.
func (l *Ledger) link(entry *domain.AuditEntry, head *domain.AuditEntry) {
	ts := l.now().UTC().Truncate(time.Millisecond)
	entry.PreviousHash = ""
	if head != nil {
		if ts.Before(head.Timestamp) {
			ts = head.Timestamp.UTC()
		}
		entry.PreviousHash = head.Signature
	}
	entry.Timestamp = ts
	entry.Signature = l.signer.Sign(entry)
}

func (l *Ledger) appendFailed(ctx context.Context, entry *domain.AuditEntry, err error) error {
	if errors.Is(err, domain.ErrChainConflict) {
		metrics.IngestFailures.WithLabelValues(metrics.ReasonConflict).Inc()
		err = fmt.Errorf("%w: chain head kept moving after %d retries: %w", app_errors.ErrStorageUnavailable, l.maxRetries, err)
	} else {
		metrics.IngestFailures.WithLabelValues(metrics.ReasonStorage).Inc()
		if !errors.Is(err, app_errors.ErrStorageUnavailable) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", app_errors.ErrStorageUnavailable, err)
		}
	}
	l.logger.ErrorContext(ctx, "failed to append audit entry",
		slog.String("audit_id", entry.ID),
		slog.String("event_type", string(entry.EventType)),
		slog.String("error", err.Error()))
	return err
}

// newEntry copies the caller-supplied fields with every free-form payload sanitized.
func newEntry(req *domain.IngestRequest) *domain.AuditEntry {
	entry := &domain.AuditEntry{
		ID:            uuid.New().String(),
		EventType:     domain.EventType(req.EventType),
		Action:        req.Action,
		Resource:      req.Resource,
		ResourceID:    req.ResourceID,
		ResourceType:  req.ResourceType,
		Environment:   req.Environment,
		CorrelationID: req.CorrelationID,
		Metadata:      core.SanitizeMap(req.Metadata),
	}
	if req.Actor != nil {
		actor := *req.Actor
		entry.Actor = &actor
	}
	if req.Environment.Geolocation != nil {
		geo := *req.Environment.Geolocation
		entry.Environment.Geolocation = &geo
	}
	if len(req.Tags) > 0 {
		entry.Tags = append([]string(nil), req.Tags...)
	}
	if req.Request != nil {
		rc := *req.Request
		rc.Query = core.Sanitize(rc.Query)
		rc.Body = core.Sanitize(rc.Body)
		entry.Request = &rc
	}
	if req.Changes != nil {
		entry.Changes = &domain.Changes{
			Before: core.Sanitize(req.Changes.Before),
			After:  core.Sanitize(req.Changes.After),
			Fields: append([]string(nil), req.Changes.Fields...),
		}
	}
	return entry
}
