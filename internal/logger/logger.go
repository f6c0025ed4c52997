package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ctxKey is the context key type used by the HTTP middleware for request scoped values.
type ctxKey string

const (
	RequestIDKey ctxKey = "request_id"
	RunIDKey     ctxKey = "run_id"
)

var defaultLogger = slog.Default()

// Init initializes the global logger writing to stdout
func Init(level, format string) {
	InitWriter(os.Stdout, level, format)
}

// InitWriter initializes the global logger writing to w
func InitWriter(w io.Writer, level, format string) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true,
	}

	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

// parseLevel converts string level to slog.Level
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithContext returns a logger carrying the request and run ids found in ctx
func WithContext(ctx context.Context) *slog.Logger {
	l := defaultLogger
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		l = l.With("request_id", v)
	}
	if v, ok := ctx.Value(RunIDKey).(string); ok && v != "" {
		l = l.With("run_id", v)
	}
	return l
}

// Component returns a logger tagged with a component name
func Component(name string) *slog.Logger {
	return defaultLogger.With("component", name)
}

// Info logs an info message
func Info(msg string, args ...any) {
	defaultLogger.Info(msg, args...)
}

// Error logs an error message
func Error(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
}

// Warn logs a warning message
func Warn(msg string, args ...any) {
	defaultLogger.Warn(msg, args...)
}

// Debug logs a debug message
func Debug(msg string, args ...any) {
	defaultLogger.Debug(msg, args...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, args ...any) {
	defaultLogger.Error(msg, args...)
	os.Exit(1)
}
