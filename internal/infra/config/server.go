package config

import "time"

// ServerConfig represents the gRPC and HTTP listener configuration.
type ServerConfig struct {
	Port            int               `mapstructure:"port"             validate:"gte=0,lte=65535"`
	HTTPPort        int               `mapstructure:"http_port"        validate:"gte=0,lte=65535"`
	Mode            string            `mapstructure:"mode"             validate:"required,oneof=development production test"`
	ShutdownTimeout time.Duration     `mapstructure:"shutdown_timeout"`
	RateLimiter     RateLimiterConfig `mapstructure:"rate_limiter"`
}

// RateLimiterConfig holds the configuration for the gRPC rate limiter.
type RateLimiterConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"  validate:"required_if=Enabled true,omitempty,gt=0"`
	Burst   int     `mapstructure:"burst" validate:"required_if=Enabled true,omitempty,gt=0"`
}
