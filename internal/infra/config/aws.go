package config

// AWSConfig enables the AWS clients used for secret resolution and archive manifests.
type AWSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Region  string `mapstructure:"region" validate:"required_if=Enabled true"`
}
