// Package config loads bucketd configuration from defaults, an optional
// YAML file, environment variables, and runtime overrides, in increasing
// precedence.
package config

import (
	"fmt"
	"time"
)

// Config is the full bucketd configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Store   StoreConfig   `mapstructure:"store"`
	Stats   StatsConfig   `mapstructure:"stats"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
	Admin   AdminConfig   `mapstructure:"admin"`
}

// ServerConfig configures the public HTTP listener.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// PIDFile, when set, is written at startup so the statistics builder
	// can signal a snapshot reload.
	PIDFile string `mapstructure:"pid_file"`
}

// StoreConfig configures bucket access.
type StoreConfig struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Profile  string `mapstructure:"profile"`

	// ForcePathStyle is needed for most S3-compatible endpoints.
	ForcePathStyle bool `mapstructure:"force_path_style"`

	// ExistenceTTL bounds staleness of cached existence answers.
	ExistenceTTL time.Duration `mapstructure:"existence_ttl"`
}

// StatsConfig configures folder-statistics serving.
type StatsConfig struct {
	// SnapshotPath is the published snapshot file. Empty disables folder
	// aggregates; listings still work.
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// LoggingConfig configures the process loggers.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Profile string `mapstructure:"profile"`
}

// MetricsConfig configures the operational metrics listener.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig configures health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AdminConfig configures operator-only endpoints.
type AdminConfig struct {
	// ReloadToken guards POST /admin/reload. Empty disables the endpoint;
	// SIGHUP reload is always available.
	ReloadToken string `mapstructure:"reload_token"`
}

// Validate checks cross-field constraints the serve path depends on.
func (c *Config) Validate() error {
	if c.Store.Bucket == "" {
		return fmt.Errorf("store.bucket is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port %d out of range", c.Metrics.Port)
		}
		if c.Metrics.Port == c.Server.Port {
			return fmt.Errorf("metrics.port must differ from server.port")
		}
	}
	return nil
}
