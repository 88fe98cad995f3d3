// Package logger builds the zap loggers used by the bakery binaries.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New instantiates a production JSON logger at level ("" means info).
func New(level string) (*zap.Logger, error) {
	return build(zap.NewProductionConfig(), level)
}

// NewDevelopment returns a console logger for local runs.
func NewDevelopment(level string) (*zap.Logger, error) {
	return build(zap.NewDevelopmentConfig(), level)
}

func build(cfg zap.Config, level string) (*zap.Logger, error) {
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// Must panics when the logger cannot be created.
func Must(logger *zap.Logger, err error) *zap.Logger {
	if err != nil {
		panic(err)
	}
	return logger
}

// Named returns a child logger with the provided component name.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}
