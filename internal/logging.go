package internal

import (
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger builds the application logger. The text format is meant for
// terminals and uses charm's colored handler.
func NewLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	if format == LogFormatText {
		return slog.New(log.NewWithOptions(w, log.Options{
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Level:           log.Level(level),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
