package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	consts "github.com/spounge-ai/auditchain/internal/constants"
	"github.com/spounge-ai/auditchain/internal/domain"
	psql "github.com/spounge-ai/auditchain/pkg/postgres"
)

const (
	pointQueryTimeout      = 3 * time.Second
	previousHashConstraint = "audit_entries_previous_hash_key"
)

// PSQLAdapter is the PostgreSQL Log Store.
type PSQLAdapter struct {
	*PostgresBase
	optimizer *QueryOptimizer
	txManager *TransactionManager[int64]
}

func NewPSQLAdapter(db *pgxpool.Pool, logger *slog.Logger) (*PSQLAdapter, error) {
	a := &PSQLAdapter{
		PostgresBase: NewPostgresBase(db, logger),
		optimizer:    newQueryOptimizer(postgresDialect),
		txManager:    NewTransactionManager[int64](logger),
	}

	return a, nil
}

func (a *PSQLAdapter) LatestEntry(ctx context.Context) (*domain.AuditEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, pointQueryTimeout)
	defer cancel()

	entry, err := ScanEntry(a.DB.QueryRow(ctx, consts.Queries[consts.StmtLatestEntry]))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chain head: %w", err)
	}
	return entry, nil
}

// Append inserts under the chain advisory lock so concurrent writers from other processes
// are ordered; the unique previous_hash index turns a stale head into ErrChainConflict.
func (a *PSQLAdapter) Append(ctx context.Context, entry *domain.AuditEntry) error {
	enc, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry %s: %w", entry.ID, err)
	}

	seq, err := a.txManager.ExecuteInTransaction(ctx, a.DB, pgx.ReadCommitted, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		if err := a.AcquireLock(ctx, tx, consts.ChainLockID); err != nil {
			return 0, err
		}

		var seq int64
		err := tx.QueryRow(ctx, consts.Queries[consts.StmtInsertEntry],
			entry.ID, entry.Timestamp.UTC(), string(entry.EventType), string(entry.EventCategory),
			string(entry.Severity), enc.actor, enc.actorID, enc.actorEmail, entry.Action,
			entry.Resource, entry.ResourceID, entry.ResourceType, enc.request, entry.StatusCode(),
			enc.changes, enc.environment, entry.Environment.IPAddress, entry.Signature,
			entry.PreviousHash, entry.CorrelationID, enc.tags, enc.metadata,
		).Scan(&seq)
		if err != nil {
			if psql.IsUniqueViolation(err, previousHashConstraint) {
				return 0, domain.ErrChainConflict
			}
			return 0, fmt.Errorf("failed to insert audit entry %s: %w", entry.ID, err)
		}
		return seq, nil
	})
	if err != nil {
		return err
	}

	entry.Seq = seq
	return nil
}

func (a *PSQLAdapter) ScanRange(ctx context.Context, start, end time.Time, fn func(*domain.AuditEntry) error) error {
	rows, err := a.DB.Query(ctx, consts.Queries[consts.StmtScanRange], lowerBound(start).UTC(), end.UTC())
	if err != nil {
		return fmt.Errorf("failed to scan audit range: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := ScanEntry(rows)
		if err != nil {
			return err
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (a *PSQLAdapter) Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error) {
	query, args := a.optimizer.BuildQuery(filter, page, sort)

	rows, err := a.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]*domain.AuditEntry, 0, page.Limit)
	for rows.Next() {
		entry, err := ScanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit entries: %w", err)
	}
	return entries, nil
}

// MarkArchived runs serializable so a concurrent archiver cannot double-count rows.
func (a *PSQLAdapter) MarkArchived(ctx context.Context, batch domain.ArchiveBatch) (int64, error) {
	return a.txManager.ExecuteInTransaction(ctx, a.DB, pgx.Serializable, func(ctx context.Context, tx pgx.Tx) (int64, error) {
		tag, err := tx.Exec(ctx, consts.Queries[consts.StmtMarkArchived],
			batch.ArchivedAt.UTC(), batch.ArchiveID, lowerBound(batch.Cutoff).UTC())
		if err != nil {
			return 0, fmt.Errorf("failed to mark entries archived: %w", err)
		}
		return tag.RowsAffected(), nil
	})
}

// Prepare checks the schema by preparing every store statement once.
func (a *PSQLAdapter) Prepare(ctx context.Context) error {
	return a.PrepareStatements(ctx, consts.Queries)
}

func (a *PSQLAdapter) Close() error {
	a.DB.Close()
	return nil
}

var _ domain.AuditRepository = (*PSQLAdapter)(nil)
