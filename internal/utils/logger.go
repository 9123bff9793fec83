package utils

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// NewLogger returns a slog.Logger configured for the desired verbosity and
// format. JSON output is used when requested; otherwise a colored terminal
// handler is picked when stderr is a TTY, falling back to plain text for
// pipes and service logs.
func NewLogger(level string, json bool) *slog.Logger {
	handlerLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		handlerLevel = slog.LevelDebug
	case "warn":
		handlerLevel = slog.LevelWarn
	case "error":
		handlerLevel = slog.LevelError
	}

	var handler slog.Handler
	switch {
	case json:
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: handlerLevel})
	case isatty.IsTerminal(os.Stderr.Fd()):
		handler = tint.NewHandler(os.Stderr, &tint.Options{
			Level:     handlerLevel,
			AddSource: handlerLevel == slog.LevelDebug,
		})
	default:
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: handlerLevel})
	}

	return slog.New(handler)
}
