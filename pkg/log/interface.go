// Package log provides the structured logging interface used across molpipe.
//
// Logger is slog-shaped so call sites pass alternating key/value pairs,
// using the attribute keys in attributes.go. The process-wide provider is
// backed by zerolog (see zerolog.go); tests use TestLogger.
//
//	logger := log.GetLoggerWithName("featurize").With(log.DatasetKey, "tox21")
//	logger.Info("shard written",
//	    log.FileKey, "tox21.csv.gz",
//	    log.SamplesKey, 7831,
//	)
package log

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/molpipe/pkg/errors"
)

// Logger defines a structured logging interface compatible with log/slog.
type Logger interface {
	Debug(msg string, fields ...any)
	Info(msg string, fields ...any)
	Warn(msg string, fields ...any)
	// Error logs at error level. If the first field is an error it is
	// attached with its stack trace.
	Error(msg string, fields ...any)
	// With returns a Logger that adds fields to every record.
	With(fields ...any) Logger
	Enabled(ctx context.Context, level Level) bool
}

// Level values match slog.Level.
type Level int

const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

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

// ParseLevel maps the --log-level flag value to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, errors.NewValidationError("log-level", "must be one of debug, info, warn, error", s)
	}
}

// LoggerProvider creates loggers. It allows swapping the zerolog provider
// for a TestLoggerProvider.
type LoggerProvider interface {
	GetLogger() Logger
	GetLoggerWithName(name string) Logger
	SetLevel(level Level)
}
