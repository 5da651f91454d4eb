package logger

import (
	"fmt"
	"log/slog"
	"os"
)

// Console routes the default logger to stderr. With verbose set, debug
// records (per-beacon noise, send retries) are included.
func Console(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// Init routes the default logger to an append-only file, keeping stdout
// clean for chat output.
func Init(path string) error {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("logger: open %s: %w", path, err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(file, nil)))
	return nil
}
