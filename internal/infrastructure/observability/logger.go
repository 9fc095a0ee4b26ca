// Package observability builds the logger, the metrics collector and the
// tracer provider shared by the rest of the process.
package observability

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerConfig selects the log level and encoding.
type LoggerConfig struct {
	Environment string
	Level       string
	Format      string // json or console
}

// NewLogger creates a structured logger. Production defaults to JSON at
// info level, everything else to colored console output at debug level.
// Explicit Level and Format settings override the environment defaults.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	logger, _, err := NewLeveledLogger(cfg)
	return logger, err
}

// NewLeveledLogger is NewLogger that also returns the level handle, so
// the level can be changed while the process runs.
func NewLeveledLogger(cfg LoggerConfig) (*zap.Logger, zap.AtomicLevel, error) {
	var config zap.Config

	if cfg.Environment == "production" {
		config = zap.NewProductionConfig()
		config.Sampling = &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		}
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	switch cfg.Format {
	case "":
	case "json":
		config.Encoding = "json"
		config.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		config.Encoding = "console"
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log level: %w", err)
		}
		config.Level = level
	}

	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	)
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, config.Level, nil
}
