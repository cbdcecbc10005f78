package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/phrazzld/txtreader/internal/config"
)

// Setup initializes the application's logger from cfg, writing to out, and
// sets it as the slog default.
func Setup(cfg config.LogConfig, out io.Writer) (*slog.Logger, error) {
	logger := New(cfg, out)
	slog.SetDefault(logger)
	return logger, nil
}

// New builds a logger writing to out. An unknown level falls back to info
// with a warning; an unknown format falls back to JSON.
func New(cfg config.LogConfig, out io.Writer) *slog.Logger {
	level, ok := ParseLevel(cfg.Level)
	if !ok {
		tmpLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		tmpLogger.Warn("invalid log level configured, using default level",
			"configured_level", cfg.Level,
			"default_level", "info")
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}
	return slog.New(handler)
}

// ParseLevel converts a level name, case-insensitively. It reports false
// and returns info for unknown names.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
