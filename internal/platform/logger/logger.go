package logger

import (
	"log/slog"
	"os"
)

// New returns the process-wide structured logger. Handlers and services log
// through slog so request IDs and fields stay machine-parseable.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
