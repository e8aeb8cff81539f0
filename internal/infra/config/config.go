package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	app_errors "github.com/spounge-ai/auditchain/internal/errors"
	customvalidator "github.com/spounge-ai/auditchain/pkg/validator"
)

const EnvPrefix = "AUDITCHAIN"

type Config struct {
	Server         ServerConfig      `mapstructure:"server"`
	Signing        SigningConfig     `mapstructure:"signing"`
	Persistence    PersistenceConfig `mapstructure:"persistence"`
	AWS            AWSConfig         `mapstructure:"aws"`
	Anomaly        AnomalyConfig     `mapstructure:"anomaly"`
	Archive        ArchiveConfig     `mapstructure:"archive"`
	Ingest         IngestConfig      `mapstructure:"ingest"`
	Logging        LoggingConfig     `mapstructure:"logging"`
	Metrics        MetricsConfig     `mapstructure:"metrics"`
	ServiceVersion string
	BuildCommit    string
}

// SigningConfig names where the HMAC secret comes from. Exactly one source is used, in the
// order secret, ssm_parameter, kms_ciphertext.
type SigningConfig struct {
	Secret        string `mapstructure:"secret"         validate:"required_without_all=SSMParameter KMSCiphertext"`
	SSMParameter  string `mapstructure:"ssm_parameter"`
	KMSCiphertext string `mapstructure:"kms_ciphertext"`
	KMSKeyID      string `mapstructure:"kms_key_id"     validate:"omitempty,arn"`
}

type AnomalyConfig struct {
	Window                   time.Duration `mapstructure:"window"                     validate:"duration_min=1m"`
	BruteForceThreshold      int           `mapstructure:"brute_force_threshold"      validate:"gte=1"`
	ExcessiveAccessThreshold int           `mapstructure:"excessive_access_threshold" validate:"gte=1"`
}

type ArchiveConfig struct {
	RetentionDays int    `mapstructure:"retention_days" validate:"gte=1"`
	S3Bucket      string `mapstructure:"s3_bucket"`
	S3Prefix      string `mapstructure:"s3_prefix"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"  validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path" validate:"required_if=Enabled true"`
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", 50053)
	vip.SetDefault("server.http_port", 8080)
	vip.SetDefault("server.mode", "development")
	vip.SetDefault("server.shutdown_timeout", 10*time.Second)
	vip.SetDefault("server.rate_limiter.enabled", true)
	vip.SetDefault("server.rate_limiter.rate", 100.0)
	vip.SetDefault("server.rate_limiter.burst", 200)

	vip.SetDefault("signing.secret", "")
	vip.SetDefault("signing.ssm_parameter", "")
	vip.SetDefault("signing.kms_ciphertext", "")
	vip.SetDefault("signing.kms_key_id", "")

	vip.SetDefault("persistence.type", "memory")
	vip.SetDefault("persistence.url", "")
	vip.SetDefault("persistence.migrate_on_start", false)
	vip.SetDefault("persistence.database.connection.max_conns", 20)
	vip.SetDefault("persistence.database.connection.min_conns", 2)
	vip.SetDefault("persistence.database.connection.max_conn_lifetime", time.Hour)
	vip.SetDefault("persistence.database.connection.max_conn_idle_time", 30*time.Minute)
	vip.SetDefault("persistence.database.connection.health_check_period", time.Minute)
	vip.SetDefault("persistence.circuit_breaker.enabled", true)
	vip.SetDefault("persistence.circuit_breaker.max_failures", 5)
	vip.SetDefault("persistence.circuit_breaker.reset_timeout", 30*time.Second)

	vip.SetDefault("aws.enabled", false)
	vip.SetDefault("aws.region", "")

	vip.SetDefault("anomaly.window", 60*time.Minute)
	vip.SetDefault("anomaly.brute_force_threshold", 5)
	vip.SetDefault("anomaly.excessive_access_threshold", 100)

	vip.SetDefault("archive.retention_days", 90)
	vip.SetDefault("archive.s3_bucket", "")
	vip.SetDefault("archive.s3_prefix", "archives")

	vip.SetDefault("ingest.max_conflict_retries", 5)
	vip.SetDefault("ingest.export_limit", 10000)
	vip.SetDefault("ingest.asynchronous.enabled", false)
	vip.SetDefault("ingest.asynchronous.channel_buffer_size", 1024)
	vip.SetDefault("ingest.asynchronous.worker_count", 2)
	vip.SetDefault("ingest.asynchronous.batch_size", 50)
	vip.SetDefault("ingest.asynchronous.batch_timeout", 100*time.Millisecond)

	vip.SetDefault("logging.level", "info")
	vip.SetDefault("logging.format", "text")
	vip.SetDefault("logging.file", "")
	vip.SetDefault("logging.max_size_mb", 100)
	vip.SetDefault("logging.max_backups", 5)
	vip.SetDefault("logging.max_age_days", 30)

	vip.SetDefault("metrics.enabled", true)
	vip.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration from path (or ./configs/config.yaml, ./config.yaml) and the
// AUDITCHAIN_* environment. A missing signing secret source fails the load.
func Load(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix(EnvPrefix)
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(vip)

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	cfg.ServiceVersion = getenv(EnvPrefix+"_SERVICE_VERSION", "unknown")
	cfg.BuildCommit = getenv(EnvPrefix+"_BUILD_COMMIT", "unknown")

	return &cfg, nil
}

// Validate runs the struct rules. A config with no signing secret source reports
// ErrMissingSigningSecret so callers can tell it apart from other mistakes.
func Validate(cfg *Config) error {
	if cfg.Signing.Secret == "" && cfg.Signing.SSMParameter == "" && cfg.Signing.KMSCiphertext == "" {
		return fmt.Errorf("config validation failed: %w", app_errors.ErrMissingSigningSecret)
	}

	validate := validator.New()
	if err := customvalidator.RegisterCustomValidators(validate); err != nil {
		return fmt.Errorf("failed to register custom validators: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// getenv returns an environment variable or a default value.
func getenv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
