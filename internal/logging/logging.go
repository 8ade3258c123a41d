// Package logging builds the zap logger shared by every component
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger writing to stderr.
// format is "console" or "json"; an unparsable level falls back to info.
func New(level, format string) (*zap.Logger, error) {
	zapConfig := zap.NewProductionConfig()

	// Set log level
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		atomicLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	zapConfig.Level = atomicLevel

	// Set output format
	if format == "json" {
		zapConfig.Encoding = "json"
	} else {
		zapConfig.Encoding = "console"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.Sampling = nil

	return zapConfig.Build()
}

// NewDefault creates a logger with sensible defaults, falling back to a bare
// production logger if the config cannot be built
func NewDefault() *zap.Logger {
	logger, err := New("info", "console")
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
