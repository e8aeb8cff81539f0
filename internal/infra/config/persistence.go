package config

import "time"

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// CircuitBreakerConfig holds settings for the persistence circuit breaker.
type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxFailures  int           `mapstructure:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout"`
}

// PersistenceConfig selects the Log Store. URL is a postgres DSN or a sqlite file path.
type PersistenceConfig struct {
	Type           string               `mapstructure:"type" validate:"required,oneof=memory sqlite postgres"`
	URL            string               `mapstructure:"url"  validate:"required_unless=Type memory"`
	MigrateOnStart bool                 `mapstructure:"migrate_on_start"`
	Database       DatabaseConfig       `mapstructure:"database"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// DatabaseConfig represents the database configuration.
type DatabaseConfig struct {
	Connection DBConnectionConfig `mapstructure:"connection"`
}

// DBConnectionConfig represents the database connection pool configuration.
type DBConnectionConfig struct {
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}
