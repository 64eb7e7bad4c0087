// Package config loads database handle configuration from TOML or YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Exhaustion policies applied when every reconnect attempt failed.
const (
	ExhaustError = "error" // Return an error to the caller.
	ExhaustFatal = "fatal" // Log and terminate the process.
)

// StmtCacheConfiguration controls the prepared-statement cache.
type StmtCacheConfiguration struct {
	Enabled  bool `toml:"enabled" yaml:"enabled"`
	Capacity int  `toml:"capacity" yaml:"capacity"` // Per connection
}

// ReconnectConfiguration controls connection recovery.
type ReconnectConfiguration struct {
	MaxAttempts  int    `toml:"max_attempts" yaml:"max_attempts"`
	RetryDelayMS int    `toml:"retry_delay_ms" yaml:"retry_delay_ms"`
	OnExhaust    string `toml:"on_exhaust" yaml:"on_exhaust"`
}

// HealthCheckConfiguration controls the background liveness check.
type HealthCheckConfiguration struct {
	Enabled         bool `toml:"enabled" yaml:"enabled"`
	IntervalSeconds int  `toml:"interval_seconds" yaml:"interval_seconds"`
}

// WatchdogConfiguration controls slow-call warnings.
type WatchdogConfiguration struct {
	Enabled        bool `toml:"enabled" yaml:"enabled"`
	TimeoutSeconds int  `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

// LoggingConfiguration selects the log backend.
type LoggingConfiguration struct {
	Backend         string   `toml:"backend" yaml:"backend"` // slog, zerolog or none
	Level           string   `toml:"level" yaml:"level"`     // debug, info, warn, error
	SensitiveFields []string `toml:"sensitive_fields" yaml:"sensitive_fields"`
}

// MetricsConfiguration controls Prometheus registration.
type MetricsConfiguration struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
}

// Configuration is the full handle configuration.
type Configuration struct {
	Driver       string `toml:"driver" yaml:"driver"`
	DSN          string `toml:"dsn" yaml:"dsn"`
	ConnectionID string `toml:"connection_id" yaml:"connection_id"`

	StmtCache   StmtCacheConfiguration   `toml:"stmt_cache" yaml:"stmt_cache"`
	Reconnect   ReconnectConfiguration   `toml:"reconnect" yaml:"reconnect"`
	HealthCheck HealthCheckConfiguration `toml:"health_check" yaml:"health_check"`
	Watchdog    WatchdogConfiguration    `toml:"watchdog" yaml:"watchdog"`
	Logging     LoggingConfiguration     `toml:"logging" yaml:"logging"`
	Metrics     MetricsConfiguration     `toml:"metrics" yaml:"metrics"`
}

// Default returns the default configuration.
func Default() *Configuration {
	return &Configuration{
		StmtCache: StmtCacheConfiguration{
			Enabled:  true,
			Capacity: 1000,
		},
		Reconnect: ReconnectConfiguration{
			MaxAttempts:  10,
			RetryDelayMS: 500,
			OnExhaust:    ExhaustError,
		},
		HealthCheck: HealthCheckConfiguration{
			Enabled:         false,
			IntervalSeconds: 30,
		},
		Watchdog: WatchdogConfiguration{
			Enabled:        false,
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfiguration{
			Backend: "none",
			Level:   "info",
		},
	}
}

// Load reads a configuration file on top of the defaults. The format is chosen
// by extension: .toml, .yaml or .yml.
func Load(path string) (*Configuration, error) {
	cfg := Default()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration for errors.
func (c *Configuration) Validate() error {
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}

	if c.StmtCache.Capacity < 1 {
		return fmt.Errorf("statement cache capacity must be >= 1")
	}

	if c.Reconnect.MaxAttempts < 1 {
		return fmt.Errorf("reconnect max attempts must be >= 1")
	}

	if c.Reconnect.RetryDelayMS < 0 {
		return fmt.Errorf("reconnect retry delay must be >= 0")
	}

	if c.Reconnect.OnExhaust != ExhaustError && c.Reconnect.OnExhaust != ExhaustFatal {
		return fmt.Errorf("invalid reconnect exhaust policy: %s", c.Reconnect.OnExhaust)
	}

	if c.HealthCheck.Enabled && c.HealthCheck.IntervalSeconds < 1 {
		return fmt.Errorf("health check interval must be >= 1 second")
	}

	if c.Watchdog.Enabled && c.Watchdog.TimeoutSeconds < 1 {
		return fmt.Errorf("watchdog timeout must be >= 1 second")
	}

	switch c.Logging.Backend {
	case "none", "slog", "zerolog":
	default:
		return fmt.Errorf("invalid logging backend: %s", c.Logging.Backend)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %s", c.Logging.Level)
	}

	return nil
}

// RetryDelay returns the delay between reconnect attempts.
func (c *Configuration) RetryDelay() time.Duration {
	return time.Duration(c.Reconnect.RetryDelayMS) * time.Millisecond
}

// HealthCheckInterval returns the health check period.
func (c *Configuration) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheck.IntervalSeconds) * time.Second
}

// WatchdogTimeout returns the slow-call warning threshold.
func (c *Configuration) WatchdogTimeout() time.Duration {
	return time.Duration(c.Watchdog.TimeoutSeconds) * time.Second
}
