package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	consts "github.com/spounge-ai/auditchain/internal/constants"
	"github.com/spounge-ai/auditchain/internal/domain"
)

// sqliteMigrations are applied in order and tracked in schema_versions.
var sqliteMigrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS audit_entries (
    seq             INTEGER PRIMARY KEY AUTOINCREMENT,
    id              TEXT    NOT NULL UNIQUE,
    ts              TEXT    NOT NULL,
    event_type      TEXT    NOT NULL CHECK (event_type IN (
        'LOGIN_SUCCESS',
        'LOGIN_FAILED',
        'LOGOUT',
        'PASSWORD_CHANGED',
        'PASSWORD_RESET_REQUESTED',
        'PASSWORD_RESET_COMPLETED',
        'TWO_FACTOR_ENABLED',
        'TWO_FACTOR_DISABLED',
        'SESSION_EXPIRED',
        'TOKEN_REFRESHED',
        'DATA_CREATE',
        'DATA_READ',
        'DATA_UPDATE',
        'DATA_DELETE',
        'DATA_EXPORT',
        'DATA_IMPORT',
        'USER_CREATED',
        'USER_UPDATED',
        'USER_DELETED',
        'USER_BANNED',
        'USER_UNBANNED',
        'USER_SUSPENDED',
        'USER_ROLE_CHANGED',
        'PERMISSION_GRANTED',
        'PERMISSION_REVOKED',
        'REPORT_CREATED',
        'REPORT_RESOLVED',
        'REPORT_DISMISSED',
        'REPORT_ESCALATED',
        'SYSTEM_CONFIG_CHANGED',
        'SYSTEM_BACKUP',
        'SYSTEM_RESTORE',
        'SYSTEM_MAINTENANCE',
        'SYSTEM_ERROR',
        'SECURITY_ALERT',
        'UNAUTHORIZED_ACCESS',
        'SUSPICIOUS_ACTIVITY',
        'RATE_LIMIT_EXCEEDED',
        'BREACH_ATTEMPT',
        'IP_BLOCKED'
    )),
    event_category  TEXT    NOT NULL,
    severity        TEXT    NOT NULL,
    actor           TEXT,
    actor_id        TEXT    NOT NULL DEFAULT '',
    actor_email     TEXT    NOT NULL DEFAULT '',
    action          TEXT    NOT NULL,
    resource        TEXT    NOT NULL DEFAULT '',
    resource_id     TEXT    NOT NULL DEFAULT '',
    resource_type   TEXT    NOT NULL DEFAULT '',
    request_context TEXT,
    status_code     INTEGER NOT NULL DEFAULT 0,
    changes         TEXT,
    environment     TEXT    NOT NULL DEFAULT '{}',
    ip_address      TEXT    NOT NULL DEFAULT '',
    signature       TEXT    NOT NULL,
    previous_hash   TEXT    NOT NULL,
    is_archived     BOOLEAN NOT NULL DEFAULT FALSE,
    archived_at     TEXT,
    archive_id      TEXT    NOT NULL DEFAULT '',
    correlation_id  TEXT    NOT NULL DEFAULT '',
    tags            TEXT,
    metadata        TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS audit_entries_previous_hash_key ON audit_entries(previous_hash);
CREATE INDEX IF NOT EXISTS idx_audit_entries_ts ON audit_entries(ts DESC, seq DESC);
CREATE INDEX IF NOT EXISTS idx_audit_entries_event_type ON audit_entries(event_type, ts DESC);
CREATE INDEX IF NOT EXISTS idx_audit_entries_actor_id ON audit_entries(actor_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_audit_entries_ip_address ON audit_entries(ip_address, ts DESC);
`,
	},
	{
		version: 2,
		sql: `
CREATE TRIGGER IF NOT EXISTS audit_entries_no_delete
BEFORE DELETE ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries cannot be deleted');
END;

CREATE TRIGGER IF NOT EXISTS audit_entries_immutable
BEFORE UPDATE OF seq, id, ts, event_type, event_category, severity, actor, actor_id, action,
    resource, changes, signature, previous_hash ON audit_entries
BEGIN
    SELECT RAISE(ABORT, 'audit entries are immutable');
END;
`,
	},
}

// placeholderRe matches the numbered postgres placeholders; every statement uses them in
// ascending order so they map one to one onto sqlite's positional ?.
var placeholderRe = regexp.MustCompile(`\$\d+`)

func rebind(query string) string {
	return placeholderRe.ReplaceAllString(query, "?")
}

// SQLiteAdapter is the single-node Log Store backed by a local SQLite file.
type SQLiteAdapter struct {
	db        *sql.DB
	logger    *slog.Logger
	optimizer *QueryOptimizer
	queries   map[string]string
}

// NewSQLiteAdapter opens (or creates) the database at path and applies pending migrations.
// ":memory:" gives a private in-memory database.
func NewSQLiteAdapter(ctx context.Context, path string, logger *slog.Logger) (*SQLiteAdapter, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	a := &SQLiteAdapter{
		db:        db,
		logger:    logger,
		optimizer: newQueryOptimizer(sqliteDialect),
		queries:   make(map[string]string, len(consts.Queries)),
	}
	for name, q := range consts.Queries {
		a.queries[name] = rebind(q)
	}

	if err := a.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return a, nil
}

func (a *SQLiteAdapter) migrate(ctx context.Context) error {
	_, err := a.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range sqliteMigrations {
		var count int
		err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue
		}

		if _, err := a.db.ExecContext(ctx, m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := a.db.ExecContext(ctx, `INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
		a.logger.Debug("applied sqlite migration", "version", m.version)
	}
	return nil
}

func (a *SQLiteAdapter) LatestEntry(ctx context.Context) (*domain.AuditEntry, error) {
	entry, err := ScanEntry(a.db.QueryRowContext(ctx, a.queries[consts.StmtLatestEntry]))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chain head: %w", err)
	}
	return entry, nil
}

func (a *SQLiteAdapter) Append(ctx context.Context, entry *domain.AuditEntry) error {
	enc, err := encodeEntry(entry)
	if err != nil {
		return fmt.Errorf("failed to encode audit entry %s: %w", entry.ID, err)
	}

	var seq int64
	err = a.db.QueryRowContext(ctx, a.queries[consts.StmtInsertEntry],
		entry.ID, formatStoredTime(entry.Timestamp), string(entry.EventType), string(entry.EventCategory),
		string(entry.Severity), textOrNil(enc.actor), enc.actorID, enc.actorEmail, entry.Action,
		entry.Resource, entry.ResourceID, entry.ResourceType, textOrNil(enc.request), entry.StatusCode(),
		textOrNil(enc.changes), string(enc.environment), entry.Environment.IPAddress, entry.Signature,
		entry.PreviousHash, entry.CorrelationID, textOrNil(enc.tags), textOrNil(enc.metadata),
	).Scan(&seq)
	if err != nil {
		if isPreviousHashViolation(err) {
			return domain.ErrChainConflict
		}
		return fmt.Errorf("failed to insert audit entry %s: %w", entry.ID, err)
	}

	entry.Seq = seq
	return nil
}

func isPreviousHashViolation(err error) bool {
	msg := err.Error()
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return false
	}
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, "previous_hash")
}

// textOrNil stores JSON as TEXT so it stays readable and LIKE-able; nil stays NULL.
func textOrNil(b []byte) any {
	if b == nil {
		return nil
	}
	return string(b)
}

func (a *SQLiteAdapter) ScanRange(ctx context.Context, start, end time.Time, fn func(*domain.AuditEntry) error) error {
	rows, err := a.db.QueryContext(ctx, a.queries[consts.StmtScanRange], formatStoredTime(lowerBound(start)), formatStoredTime(end))
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

func (a *SQLiteAdapter) Query(ctx context.Context, filter domain.QueryFilter, page domain.Page, sort domain.Sort) ([]*domain.AuditEntry, error) {
	query, args := a.optimizer.BuildQuery(filter, page, sort)

	rows, err := a.db.QueryContext(ctx, query, args...)
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

func (a *SQLiteAdapter) MarkArchived(ctx context.Context, batch domain.ArchiveBatch) (int64, error) {
	res, err := a.db.ExecContext(ctx, a.queries[consts.StmtMarkArchived],
		formatStoredTime(batch.ArchivedAt), batch.ArchiveID, formatStoredTime(lowerBound(batch.Cutoff)))
	if err != nil {
		return 0, fmt.Errorf("failed to mark entries archived: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count archived entries: %w", err)
	}
	return n, nil
}

func (a *SQLiteAdapter) Ping(ctx context.Context) error { return a.db.PingContext(ctx) }

func (a *SQLiteAdapter) Close() error { return a.db.Close() }

var _ domain.AuditRepository = (*SQLiteAdapter)(nil)
