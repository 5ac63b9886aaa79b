package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"cubby/internal/config"
)

// ConfigOption adjusts a test configuration after the defaults are applied.
type ConfigOption func(testing.TB, *config.Config)

// NewConfig returns a config whose database, media root, work dir and log
// dir live in one per-test temp directory. Both API keys are "test".
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Database.Driver = config.DriverSQLite
	cfg.Database.Path = filepath.Join(base, "data", "cubby.db")
	cfg.Storage.Backend = config.BackendLocal
	cfg.Storage.LocalRoot = filepath.Join(base, "media")
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Transcription.APIKey = "test"
	cfg.Labeling.APIKey = "test"
	cfg.Server.Bind = "127.0.0.1:0"

	for _, opt := range opts {
		opt(t, &cfg)
	}
	return &cfg
}

func WithMaxAttempts(n int) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) { cfg.Scheduler.MaxAttempts = n }
}

func WithAPIKeys(transcription, labeling string) ConfigOption {
	return func(_ testing.TB, cfg *config.Config) {
		cfg.Transcription.APIKey = transcription
		cfg.Labeling.APIKey = labeling
	}
}

// WithStubbedBinaries puts no-op executables named names (ffmpeg and ffprobe
// by default) first on PATH for the rest of the test.
func WithStubbedBinaries(names ...string) ConfigOption {
	if len(names) == 0 {
		names = []string{"ffmpeg", "ffprobe"}
	}
	return func(t testing.TB, cfg *config.Config) {
		binDir := filepath.Join(filepath.Dir(cfg.Paths.WorkDir), "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			if err := os.WriteFile(filepath.Join(binDir, name), []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
