package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spounge-ai/auditchain/pkg/execution"
	"github.com/spounge-ai/auditchain/pkg/postgres"
)

const (
	txMaxRetries = 4
	txBaseDelay  = 10 * time.Millisecond
	txMaxDelay   = 250 * time.Millisecond
)

// TransactionManager provides a generic way to execute functions within a database transaction.
type TransactionManager[T any] struct {
	logger *slog.Logger
}

// NewTransactionManager creates a new TransactionManager.
func NewTransactionManager[T any](logger *slog.Logger) *TransactionManager[T] {
	return &TransactionManager[T]{logger: logger}
}

// ExecuteInTransaction runs fn in a transaction with the given isolation level. Serialization
// failures, whether from fn or from commit, restart the whole transaction with backoff.
func (tm *TransactionManager[T]) ExecuteInTransaction(
	ctx context.Context,
	db *pgxpool.Pool,
	iso pgx.TxIsoLevel,
	fn func(context.Context, pgx.Tx) (T, error),
) (T, error) {
	policy := execution.RetryPolicy{
		MaxRetries:     txMaxRetries,
		InitialBackoff: txBaseDelay,
		MaxBackoff:     txMaxDelay,
		Retryable:      postgres.IsSerializationFailure,
		OnRetry: func(attempt int, err error) {
			tm.logger.WarnContext(ctx, "serialization error detected, retrying",
				"attempt", attempt, "max_attempts", txMaxRetries+1, "error", err)
		},
	}

	return execution.WithRetry(ctx, policy, func(ctx context.Context) (T, error) {
		return tm.runOnce(ctx, db, iso, fn)
	})
}

func (tm *TransactionManager[T]) runOnce(
	ctx context.Context,
	db *pgxpool.Pool,
	iso pgx.TxIsoLevel,
	fn func(context.Context, pgx.Tx) (T, error),
) (T, error) {
	var zero T

	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: iso})
	if err != nil {
		return zero, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	result, err := fn(ctx, tx)
	if err != nil {
		return zero, err
	}
	if err := tx.Commit(ctx); err != nil {
		return zero, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
