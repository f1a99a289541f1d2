// Package logging installs the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nextlevelbuilder/browserbot/internal/config"
)

// ParseLevel maps a level name to a slog.Level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New builds a logger writing to out, and additionally to a rotating file
// when cfg.File is set. verbose forces debug level. The returned closer
// releases the log file and is never nil.
func New(cfg config.LogConfig, verbose bool, out io.Writer) (*slog.Logger, io.Closer) {
	level := ParseLevel(cfg.Level)
	if verbose {
		level = slog.LevelDebug
	}

	var closer io.Closer = nopCloser{}
	w := out
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   config.ExpandHome(cfg.File),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		w = io.MultiWriter(out, lj)
		closer = lj
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), closer
}

// Setup installs New(cfg, verbose, os.Stdout) as the default logger.
func Setup(cfg config.LogConfig, verbose bool) io.Closer {
	logger, closer := New(cfg, verbose, os.Stdout)
	slog.SetDefault(logger)
	return closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
