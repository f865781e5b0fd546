package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps a config level name to a slog level. "warning" is
// accepted as an alias; anything unrecognised is info.
func ParseLevel(name string) slog.Level {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warning" {
		name = "warn"
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// InitLogger installs a JSON slog logger on stdout as the default and
// returns it. Every record carries service=findit.
func InitLogger(level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     ParseLevel(level),
		AddSource: true,
	})
	logger := slog.New(handler).With("service", "findit")
	slog.SetDefault(logger)
	return logger
}
