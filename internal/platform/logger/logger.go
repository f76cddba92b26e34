package logger

import (
	"log/slog"
	"os"
)

// New returns the structured logger used across the service. JSON on stdout
// so log shippers need no parsing configuration.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
