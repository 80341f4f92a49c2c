// Package logger builds the process slog handler.
package logger

import (
	"io"
	"log/slog"
)

// New returns a logger writing in format ("pretty", "json" or "text") at level.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = NewPrettyHandler(w, opts)
	}
	return slog.New(handler)
}
