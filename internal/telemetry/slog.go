package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// SetupLogger installs the process-wide slog default logger.
//
// format "json" selects the JSON handler; anything else falls back to the text
// handler. level is one of debug, info, warn or error and defaults to info.
// Source locations are only attached at debug level. A non-empty service is
// attached to every record.
func SetupLogger(format, level, service string) {
	lvl := ParseLevel(level)
	slog.SetDefault(NewLogger(os.Stdout, format, lvl, service))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// NewLogger builds the logger installed by SetupLogger.
func NewLogger(w io.Writer, format string, lvl slog.Level, service string) *slog.Logger {
	logger := slog.New(NewHandler(w, format, lvl))
	if service != "" {
		logger = logger.With("service", service)
	}
	return logger
}

// ParseLevel maps a configuration string onto a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewHandler builds the handler used by SetupLogger writing to w.
func NewHandler(w io.Writer, format string, lvl slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
