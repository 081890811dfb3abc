// Package logging builds the zap-backed logr.Logger used across the fetcher and
// carries it through context.Context.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option configures the logger built by New
type Option func(*loggerConfig)

type loggerConfig struct {
	level       string
	development bool
}

// WithLevel sets the minimum level ("debug", "info", "warn", "error").
// An empty level means "info".
func WithLevel(level string) Option {
	return func(cfg *loggerConfig) {
		cfg.level = level
	}
}

// WithDevelopment switches to the human-readable console encoder
func WithDevelopment(development bool) Option {
	return func(cfg *loggerConfig) {
		cfg.development = development
	}
}

// New creates a logr.Logger backed by zap. Logs go to stderr so stdout stays
// clean for command output.
func New(opts ...Option) (logr.Logger, error) {
	cfg := &loggerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	level, err := ParseLevel(cfg.level)
	if err != nil {
		return logr.Discard(), err
	}

	var zapCfg zap.Config
	if cfg.development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "time"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{"stderr"}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	zapLogger, err := zapCfg.Build()
	if err != nil {
		return logr.Discard(), fmt.Errorf("failed to build logger: %w", err)
	}

	return zapr.NewLogger(zapLogger), nil
}

// ParseLevel maps a level name to a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// IntoContext stores the logger in ctx
func IntoContext(ctx context.Context, logger logr.Logger) context.Context {
	return logr.NewContext(ctx, logger)
}

// FromContext returns the logger stored in ctx, or a discarding logger
func FromContext(ctx context.Context) logr.Logger {
	return logr.FromContextOrDiscard(ctx)
}
