package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogLevel is used when no level is configured.
const DefaultLogLevel = "info"

// NewApplicationLogger constructs a console logger at DefaultLogLevel.
func NewApplicationLogger() (*zap.Logger, error) {
	return NewLeveledLogger(DefaultLogLevel)
}

// NewLeveledLogger constructs a zap logger for human-readable console output on
// stderr. level accepts the zap level names, case-insensitively.
func NewLeveledLogger(level string) (*zap.Logger, error) {
	normalizedLevel := strings.ToLower(strings.TrimSpace(level))
	if normalizedLevel == "" {
		normalizedLevel = DefaultLogLevel
	}
	atomicLevel, levelErr := zap.ParseAtomicLevel(normalizedLevel)
	if levelErr != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, levelErr)
	}

	config := zap.NewProductionConfig()
	config.Level = atomicLevel
	config.Encoding = "console"
	config.DisableCaller = true
	config.DisableStacktrace = true
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncoderConfig.TimeKey = ""
	config.EncoderConfig.NameKey = ""
	config.EncoderConfig.CallerKey = ""
	config.EncoderConfig.MessageKey = "message"
	config.EncoderConfig.StacktraceKey = ""
	return config.Build(zap.Fields(zap.String("app", ApplicationName)))
}
