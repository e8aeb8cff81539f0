package config

import "time"

// IngestConfig holds the configuration for the ingest path.
type IngestConfig struct {
	MaxConflictRetries int                        `mapstructure:"max_conflict_retries" validate:"gte=0,lte=100"`
	ExportLimit        int                        `mapstructure:"export_limit"         validate:"gte=1"`
	Asynchronous       AsynchronousAuditingConfig `mapstructure:"asynchronous"`
}

// AsynchronousAuditingConfig holds the configuration for the asynchronous recorder.
type AsynchronousAuditingConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	ChannelBufferSize int           `mapstructure:"channel_buffer_size"`
	WorkerCount       int           `mapstructure:"worker_count"`
	BatchSize         int           `mapstructure:"batch_size"`
	BatchTimeout      time.Duration `mapstructure:"batch_timeout"`
}
