package utils

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/stoicmail/reflection-guard/internal/models"
)

// NewLogger returns a slog.Logger on stdout configured for the desired verbosity and format.
func NewLogger(level string, json bool) *slog.Logger {
	return NewLoggerTo(os.Stdout, level, json)
}

// NewLoggerTo is NewLogger writing to w. The CLI uses it to keep reports on
// stdout and logs on stderr.
func NewLoggerTo(w io.Writer, level string, json bool) *slog.Logger {
	handlerLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		handlerLevel = slog.LevelDebug
	case "warn", "warning":
		handlerLevel = slog.LevelWarn
	case "error":
		handlerLevel = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: handlerLevel}
	var handler slog.Handler
	if json {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// SeverityLevel maps a finding severity onto a log level.
func SeverityLevel(sev models.Severity) slog.Level {
	switch sev {
	case models.SeverityCritical:
		return slog.LevelError
	case models.SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
