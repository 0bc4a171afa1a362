// Package log provides the structured logging used across the attrition
// pipeline.
//
// Logger is a small slog-compatible interface. SetupLogger installs either a
// slog JSON backend (Cloud Logging field names, stacktraces from
// cockroachdb/errors) or a zerolog console backend, and every package obtains
// its logger through GetLoggerWithName:
//
//	logger := log.GetLoggerWithName("pipeline.trainer").With(log.RunIDKey, runID)
//	logger.Info("class counts after SMOTE",
//		log.StageKey, log.StageBalance,
//		log.PositiveKey, pos,
//		log.NegativeKey, neg,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with Go's log/slog.
//
// fields are alternating key/value pairs. When the first field is an error it
// is logged under ErrAttrKey together with its stacktrace.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits log records at the given level.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level, compatible with slog.Level.
type Level int

// Standard logging levels, values are compatible with slog.Level.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates loggers for components.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a specific name/component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for all loggers created by this provider.
	SetLevel(level Level)
}
