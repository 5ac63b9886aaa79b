package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cubby/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string // debug, info, warn or error; anything else is info
	Format string // console (default) or json
	// Writer receives output. Nil means stdout.
	Writer io.Writer
	// File, when set, receives a copy of every line. It is opened for append.
	File string
}

// New builds a slog logger. Debug level also records the call site.
func New(opts Options) (*slog.Logger, error) {
	level := new(slog.LevelVar)
	level.Set(parseLevel(opts.Level))

	out := opts.Writer
	if out == nil {
		out = os.Stdout
	}
	if opts.File != "" {
		f, err := openLogFile(opts.File)
		if err != nil {
			return nil, err
		}
		out = io.MultiWriter(out, f)
	}
	addSource := level.Level() <= slog.LevelDebug

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "console":
		return slog.New(newConsoleHandler(out, level, addSource)), nil
	case "json":
		return slog.New(newJSONHandler(out, level, addSource)), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig creates the worker logger: stdout plus <log_dir>/<name>.log
// when a log directory is configured.
func NewFromConfig(cfg *config.Config, name string) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{})
	}
	opts := Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}
	if cfg.Paths.LogDir != "" {
		if strings.TrimSpace(name) == "" {
			name = "cubbyd"
		}
		opts.File = filepath.Join(cfg.Paths.LogDir, name+".log")
	}
	return New(opts)
}

func parseLevel(raw string) slog.Level {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "warning") {
		return slog.LevelWarn
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return f, nil
}
