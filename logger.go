package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/lmittmann/tint"
)

// createCLILogger creates a colored logger on stderr so stdout stays free for reports
func createCLILogger(logLevel string) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      parseLogLevel(logLevel),
		TimeFormat: "15:04:05",
	}))
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
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
