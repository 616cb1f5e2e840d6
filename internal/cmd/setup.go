package cmd

import (
	"fmt"
	"io"

	"github.com/Iron-Ham/imecore/internal/config"
	"github.com/Iron-Ham/imecore/internal/core"
	"github.com/Iron-Ham/imecore/internal/engine/table"
	"github.com/Iron-Ham/imecore/internal/errors"
	"github.com/Iron-Ham/imecore/internal/event"
	"github.com/Iron-Ham/imecore/internal/logging"
)

// loadConfig reads and validates the configuration assembled by initConfig.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the logger described by cfg. With no log directory the
// logger writes to stderr.
func newLogger(cfg *config.LoggingConfig, stderr io.Writer) (*logging.Logger, error) {
	if !cfg.Enabled {
		return logging.NopLogger(), nil
	}
	level := logging.ParseLevel(cfg.Level)
	if cfg.Dir == "" {
		return logging.NewWriterLogger(stderr, level), nil
	}
	logger, err := logging.NewLoggerWithRotation(cfg.Dir, level, logging.RotationConfig{
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// newCore wires a table engine into a stopped Core.
func newCore(cfg *config.Config, logger *logging.Logger) *core.Core {
	return core.New(table.New(logger), core.Config{
		SharedDataDir:  cfg.Engine.ResolveSharedDataDir(),
		UserDataDir:    cfg.Engine.ResolveUserDataDir(),
		StaleThreshold: cfg.Dispatcher.StaleThreshold(),
		Bus: event.BusConfig{
			NotificationCapacity: cfg.Bus.NotificationCapacity,
			ResponseCapacity:     cfg.Bus.ResponseCapacity,
		},
	}, logger)
}

// severityLevel maps an error severity to the log level it is recorded at.
func severityLevel(s errors.Severity) string {
	switch s {
	case errors.SeverityDebug:
		return logging.LevelDebug
	case errors.SeverityInfo:
		return logging.LevelInfo
	case errors.SeverityWarning:
		return logging.LevelWarn
	default:
		return logging.LevelError
	}
}
