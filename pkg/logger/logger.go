package logger

import (
	"log/slog"
	"os"
)

var defaultLogger *slog.Logger

// Init installs the process-wide logger. Production emits JSON at info so
// collectors can index the settlement trail; every other environment gets
// readable text at debug.
func Init(env string) {
	defaultLogger = slog.New(newHandler(env))
	slog.SetDefault(defaultLogger)
}

func newHandler(env string) slog.Handler {
	if env == "production" {
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	}
	return slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
}

// LoggerWrapper returns the shared logger. When Init has not run yet, as in
// tests and one-off commands, it installs a development logger first.
func LoggerWrapper() *slog.Logger {
	if defaultLogger == nil {
		Init("development")
	}
	return defaultLogger
}
