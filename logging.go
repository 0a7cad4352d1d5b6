package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// InitLogger wires slog to a rotating log file. The TUI owns the terminal,
// so nothing may log to stdout/stderr while it is running; everything goes
// to cfg.Logging.FilePath instead.
func InitLogger(cfg LoggingConfig, debug bool) (*slog.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating log directory: %v", ErrIO, err)
	}

	logFile := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else if cfg.Level != "" {
		if parsed, err := parseLevel(cfg.Level); err == nil {
			level = parsed
		}
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(logFile, opts)
	} else {
		handler = slog.NewTextHandler(logFile, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(s))
	return level, err
}
