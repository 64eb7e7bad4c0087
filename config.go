package sqlforge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/coregx/sqlforge/internal/config"
	"github.com/coregx/sqlforge/internal/core"
	"github.com/coregx/sqlforge/internal/logger"
)

// Config is the file-based handle configuration.
type Config = config.Configuration

var (
	// LoadConfig reads a TOML or YAML configuration file.
	LoadConfig = config.Load
	// DefaultConfig returns the built-in defaults.
	DefaultConfig = config.Default
)

// OpenConfig loads the configuration file at path and opens a handle from it.
// Metrics, when enabled, are registered with prometheus.DefaultRegisterer.
// Options in opts are applied after the ones derived from the file.
func OpenConfig(path string, opts ...Option) (*DB, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return OpenWithConfig(context.Background(), cfg, prometheus.DefaultRegisterer, opts...)
}

// OpenWithConfig opens a handle from cfg. reg receives the metrics when
// cfg.Metrics.Enabled is set; a nil reg disables them.
func OpenWithConfig(ctx context.Context, cfg *Config, reg prometheus.Registerer, opts ...Option) (*DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := configOptions(cfg, reg, os.Stderr)
	if err != nil {
		return nil, err
	}

	db, err := core.OpenContext(ctx, cfg.Driver, cfg.DSN, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	if !cfg.StmtCache.Enabled {
		db.SetStmtCacheEnabled(false)
	}
	return db, nil
}

// configOptions translates cfg into handle options. Log output goes to w.
func configOptions(cfg *Config, reg prometheus.Registerer, w io.Writer) ([]Option, error) {
	log, err := newLogger(cfg.Logging, w)
	if err != nil {
		return nil, err
	}

	policy := core.ReconnectPolicy{
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
		OnExhaust:   core.ExhaustReturnError,
	}
	if cfg.Reconnect.OnExhaust == config.ExhaustFatal {
		policy.OnExhaust = core.ExhaustFatal
	}

	opts := []Option{
		core.WithLogger(log),
		core.WithSensitiveFields(cfg.Logging.SensitiveFields),
		core.WithStmtCacheCapacity(cfg.StmtCache.Capacity),
		core.WithReconnectPolicy(policy),
	}
	if cfg.ConnectionID != "" {
		opts = append(opts, core.WithConnectionID(cfg.ConnectionID))
	}
	if cfg.HealthCheck.Enabled {
		opts = append(opts, core.WithHealthCheck(cfg.HealthCheckInterval()))
	}
	if cfg.Watchdog.Enabled {
		opts = append(opts, core.WithWatchdog(cfg.WatchdogTimeout()))
	}
	if cfg.Metrics.Enabled && reg != nil {
		opts = append(opts, core.WithMetrics(reg))
	}
	return opts, nil
}

func newLogger(cfg config.LoggingConfiguration, w io.Writer) (logger.Logger, error) {
	switch cfg.Backend {
	case "none", "":
		return &logger.NoopLogger{}, nil
	case "slog":
		var level slog.Level
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid logging level: %w", err)
		}
		h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		return logger.NewSlogAdapter(slog.New(h)), nil
	case "zerolog":
		level, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid logging level: %w", err)
		}
		return logger.NewZerologAdapter(zerolog.New(w).Level(level).With().Timestamp().Logger()), nil
	default:
		return nil, fmt.Errorf("invalid logging backend: %s", cfg.Backend)
	}
}
