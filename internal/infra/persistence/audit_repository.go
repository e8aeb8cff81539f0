package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spounge-ai/auditchain/internal/domain"
	"github.com/spounge-ai/auditchain/internal/infra/config"
)

// Store bundles the opened repository with the pieces the caller manages separately.
type Store struct {
	Repository domain.AuditRepository
	// Pinger is nil for the memory store.
	Pinger Pinger
}

// OpenRepository opens the configured Log Store, applying migrations when asked, and wraps it
// in a circuit breaker when enabled.
func OpenRepository(ctx context.Context, cfg config.PersistenceConfig, logger *slog.Logger) (*Store, error) {
	var (
		repo   domain.AuditRepository
		pinger Pinger
	)

	switch cfg.Type {
	case config.StorageMemory:
		repo = NewMemoryStore()

	case config.StorageSQLite:
		a, err := NewSQLiteAdapter(ctx, cfg.URL, logger)
		if err != nil {
			return nil, err
		}
		repo, pinger = a, a

	case config.StoragePostgres:
		if cfg.MigrateOnStart {
			if err := migrateUp(cfg.URL, logger); err != nil {
				return nil, err
			}
		}
		pool, err := NewConnectionPool(ctx, cfg.URL, cfg.Database.Connection)
		if err != nil {
			return nil, err
		}
		a, err := NewPSQLAdapter(pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		if err := a.Prepare(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("audit schema check failed: %w", err)
		}
		repo, pinger = a, a

	default:
		return nil, fmt.Errorf("unsupported persistence type %q", cfg.Type)
	}

	if cfg.CircuitBreaker.Enabled {
		repo = NewBreakerRepository(repo, cfg.CircuitBreaker.MaxFailures, cfg.CircuitBreaker.ResetTimeout, logger)
	}

	logger.Info("audit store opened", "type", cfg.Type, "circuit_breaker", cfg.CircuitBreaker.Enabled)
	return &Store{Repository: repo, Pinger: pinger}, nil
}

func migrateUp(url string, logger *slog.Logger) error {
	m, err := NewMigrator(url, logger)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()
	return m.Up()
}
