package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns the service's JSON logger on stdout. Development mode logs at
// debug level.
func New(development bool) *slog.Logger {
	return NewWithWriter(os.Stdout, development)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, development bool) *slog.Logger {
	level := slog.LevelInfo
	if development {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})).
		With("service", "rollcall")
}
