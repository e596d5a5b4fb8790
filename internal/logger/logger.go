// Package logger provides the supervisor's own operational logging: a
// rotating file (via lumberjack), or, when running verbosely, a colorized
// console stream on stderr in its place; the verbose logger does not
// write the file. It has nothing to do with captured child process
// output — the supervisor does not run a log pipeline for supervised
// processes.
package logger

import (
	"io"
	"log/slog"
	"os"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes where and how the daemon's own log is written.
type Config struct {
	Path       string // rotating log file path; empty disables file logging
	Verbose    bool   // log to stderr with color instead of the file; Path is not written
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// New builds the slog.Logger used for the lifetime of the daemon process.
func New(cfg Config) *slog.Logger {
	var writers []io.Writer
	if cfg.Path != "" {
		writers = append(writers, &lj.Logger{
			Filename:   cfg.Path,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		})
	}

	level := slog.LevelInfo
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Verbose {
		return slog.New(NewColorTextHandler(os.Stderr, opts, true))
	}
	if len(writers) == 0 {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(io.MultiWriter(writers...), opts))
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
