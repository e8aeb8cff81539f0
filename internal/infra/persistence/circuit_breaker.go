package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spounge-ai/auditchain/internal/domain"
	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	"github.com/spounge-ai/auditchain/pkg/patterns/circuitbreaker"
)

// BreakerRepository guards a Log Store with a circuit breaker. While the breaker is open
// calls fail fast with ErrStorageUnavailable.
type BreakerRepository struct {
	next domain.AuditRepository
	cb   *circuitbreaker.Breaker[struct{}]
}

func NewBreakerRepository(next domain.AuditRepository, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) *BreakerRepository {
	cb := circuitbreaker.New[struct{}](maxFailures, resetTimeout,
		circuitbreaker.WithFailurePredicate(isStoreFailure),
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			logger.Warn("audit store circuit breaker changed state", "from", from.String(), "to", to.String())
		}),
	)
	return &BreakerRepository{next: next, cb: cb}
}

// isStoreFailure excludes outcomes that say nothing about store health.
func isStoreFailure(err error) bool {
	return !errors.Is(err, domain.ErrChainConflict) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, app_errors.ErrValidation)
}

func guarded[T any](ctx context.Context, r *BreakerRepository, fn func(context.Context) (T, error)) (T, error) {
	var out T
	_, err := r.cb.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		v, err := fn(ctx)
		out = v
		return struct{}{}, err
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return out, fmt.Errorf("%w: %w", app_errors.ErrStorageUnavailable, err)
	}
	return out, err
}

func (r *BreakerRepository) LatestEntry(ctx context.Context) (*domain.AuditEntry, error) {
	return guarded(ctx, r, r.next.LatestEntry)
}

func (r *BreakerRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	_, err := guarded(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.Append(ctx, entry)
	})
	return err
}

func (r *BreakerRepository) ScanRange(ctx context.Context, start, end time.Time, fn func(*domain.AuditEntry) error) error {
	_, err := guarded(ctx, r, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.ScanRange(ctx, start, end, fn)
	})
	return err
}

func (r *BreakerRepository) Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error) {
	return guarded(ctx, r, func(ctx context.Context) ([]*domain.AuditEntry, error) {
		return r.next.Query(ctx, filter, page, sort)
	})
}

func (r *BreakerRepository) MarkArchived(ctx context.Context, batch domain.ArchiveBatch) (int64, error) {
	return guarded(ctx, r, func(ctx context.Context) (int64, error) {
		return r.next.MarkArchived(ctx, batch)
	})
}

func (r *BreakerRepository) Close() error { return r.next.Close() }

// State exposes the breaker state for health reporting.
func (r *BreakerRepository) State() circuitbreaker.State { return r.cb.State() }

var _ domain.AuditRepository = (*BreakerRepository)(nil)
