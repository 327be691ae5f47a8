package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// newLogger builds a structured logger from the configured level and
// format. Every record carries the service name, so coordinator, worker
// and one-shot runs are distinguishable in a shared log pipeline. The
// writer is a parameter so tests can capture output.
func newLogger(cfg *Config, service string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	var handler slog.Handler
	if strings.ToLower(cfg.LogFormat) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler).With("service", service)
}

// InitLogger installs the process-wide structured logger.
func InitLogger(cfg *Config, service string) {
	slog.SetDefault(newLogger(cfg, service, os.Stdout))

	slog.Info("Logger initialized",
		"level", cfg.LogLevel,
		"format", cfg.LogFormat,
	)
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
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
