// Package log is the application-side logging front-end: a thin
// configuration layer over log/slog with text, JSON, and pretty output.
// Library packages log through slog directly; executables build their
// root logger here and install it as the slog default.
package log

import (
	"context"
	"io"
	"log/slog"
)

// Logger is a configured slog.Logger.
type Logger struct {
	*slog.Logger
	config
}

// Make creates a new [Logger] writing to w. Defaults are [DefaultLevel],
// [DefaultFormat], RFC 3339 timestamps, and caller info disabled.
func Make(w io.Writer, opts ...Option) Logger {
	cfg := makeConfig(w, opts...)

	return Logger{
		config: cfg,
		Logger: slog.New(cfg.handler()),
	}
}

// Install sets the logger as the process-wide slog default, so library
// warnings are routed through it.
func (l Logger) Install() {
	if l.Logger != nil {
		slog.SetDefault(l.Logger)
	}
}

// Level returns the configured minimum level.
func (l Logger) Level() Level { return l.level }

// Format returns the configured output format.
func (l Logger) Format() Format { return l.format }

// With returns a Logger that includes the given attributes in every
// message.
func (l Logger) With(attrs ...slog.Attr) Logger {
	if l.Logger == nil {
		return l
	}

	return Logger{
		config: l.config,
		Logger: slog.New(l.Handler().WithAttrs(attrs)),
	}
}

// Debug logs a message at Debug level.
func (l Logger) Debug(msg string, attrs ...slog.Attr) {
	l.log(LevelDebug, msg, attrs...)
}

// Info logs a message at Info level.
func (l Logger) Info(msg string, attrs ...slog.Attr) {
	l.log(LevelInfo, msg, attrs...)
}

// Warn logs a message at Warn level.
func (l Logger) Warn(msg string, attrs ...slog.Attr) {
	l.log(LevelWarn, msg, attrs...)
}

// Error logs a message at Error level.
func (l Logger) Error(msg string, attrs ...slog.Attr) {
	l.log(LevelError, msg, attrs...)
}

func (l Logger) log(level Level, msg string, attrs ...slog.Attr) {
	// Zero value loggers silently discard.
	if l.Logger == nil {
		return
	}

	l.LogAttrs(context.Background(), slog.Level(level), msg, attrs...)
}
