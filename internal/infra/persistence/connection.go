package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spounge-ai/auditchain/internal/infra/config"
)

// NewConnectionPool creates a pgx pool from a DSN and the configured pool limits. TLS settings
// come from the DSN (sslmode, sslrootcert).
func NewConnectionPool(ctx context.Context, url string, conn config.DBConnectionConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	if conn.MaxConns > 0 {
		poolConfig.MaxConns = conn.MaxConns
	}
	if conn.MinConns > 0 {
		poolConfig.MinConns = conn.MinConns
	}
	if conn.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = conn.MaxConnIdleTime
	}
	if conn.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = conn.MaxConnLifetime
	}
	if conn.HealthCheckPeriod > 0 {
		poolConfig.HealthCheckPeriod = conn.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
