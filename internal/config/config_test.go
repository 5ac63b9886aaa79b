package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cubby/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_URL", "DATABASE_DRIVER", "OPENAI_API_KEY", "LLM_API_KEY", "OPENROUTER_API_KEY",
		"S3_ENDPOINT", "S3_BUCKET", "S3_ACCESS_KEY", "S3_SECRET_KEY", "STORAGE_BACKEND",
		"CUBBY_DATABASE_URL", "CUBBY_OPENAI_API_KEY", "CUBBY_LLM_API_KEY", "LOG_LEVEL", "LOG_FORMAT", "NTFY_TOPIC",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantDB := filepath.Join(tempHome, ".local", "share", "cubby", "cubby.db")
	if cfg.Database.Path != wantDB {
		t.Fatalf("unexpected database path: got %q want %q", cfg.Database.Path, wantDB)
	}
	if cfg.Database.Driver != config.DriverSQLite {
		t.Fatalf("expected sqlite driver by default, got %q", cfg.Database.Driver)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, ".local", "share", "cubby", "work") {
		t.Fatalf("unexpected work dir: %q", cfg.Paths.WorkDir)
	}
	if cfg.Scheduler.MaxAttempts != 3 {
		t.Fatalf("expected max attempts 3, got %d", cfg.Scheduler.MaxAttempts)
	}
	if cfg.Scheduler.CandidateWindow != 20 {
		t.Fatalf("expected candidate window 20, got %d", cfg.Scheduler.CandidateWindow)
	}
	if cfg.Scheduler.PollInterval().Milliseconds() != 5000 {
		t.Fatalf("unexpected poll interval %s", cfg.Scheduler.PollInterval())
	}
	if cfg.Transcription.ChunkSizeLimitBytes != 23*1024*1024 {
		t.Fatalf("unexpected chunk limit %d", cfg.Transcription.ChunkSizeLimitBytes)
	}
	if cfg.Transcription.BatchSize != 200 {
		t.Fatalf("unexpected batch size %d", cfg.Transcription.BatchSize)
	}
	if cfg.Labeling.MaxTranscriptChars != 60000 {
		t.Fatalf("unexpected transcript budget %d", cfg.Labeling.MaxTranscriptChars)
	}
	if cfg.Labeling.DefaultConfidence != 0.8 {
		t.Fatalf("unexpected default confidence %v", cfg.Labeling.DefaultConfidence)
	}
	if len(cfg.Scheduler.DefaultJobs) != 4 {
		t.Fatalf("unexpected default jobs %v", cfg.Scheduler.DefaultJobs)
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[database]
path = "~/data/jobs.db"

[scheduler]
poll_interval_ms = 2000
poll_jitter_ms = 100
max_attempts = 5

[transcription]
provider = "WhisperX"
batch_size = 50
language = "English"

[logging]
format = "JSON"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Database.Path != filepath.Join(tempHome, "data", "jobs.db") {
		t.Fatalf("unexpected database path %q", cfg.Database.Path)
	}
	if cfg.Scheduler.PollIntervalMillis != 2000 || cfg.Scheduler.MaxAttempts != 5 {
		t.Fatalf("scheduler values not applied: %+v", cfg.Scheduler)
	}
	if cfg.Transcription.Provider != config.ProviderWhisperX {
		t.Fatalf("expected normalized provider, got %q", cfg.Transcription.Provider)
	}
	if cfg.Transcription.Language != "en" {
		t.Fatalf("expected language normalized to en, got %q", cfg.Transcription.Language)
	}
	if cfg.Transcription.BatchSize != 50 {
		t.Fatalf("unexpected batch size %d", cfg.Transcription.BatchSize)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected lower-cased log format, got %q", cfg.Logging.Format)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("CUBBY_LLM_API_KEY", "env-llm")
	t.Setenv("DATABASE_URL", "postgres://cubby:pw@db:5432/cubby")
	t.Setenv("POLL_INTERVAL_MS", "7000")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[transcription]
api_key = "file-openai"

[labeling]
api_key = "file-llm"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcription.APIKey != "env-openai" {
		t.Fatalf("expected env transcription key, got %q", cfg.Transcription.APIKey)
	}
	if cfg.Labeling.APIKey != "env-llm" {
		t.Fatalf("expected prefixed env labeling key, got %q", cfg.Labeling.APIKey)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		t.Fatalf("expected DATABASE_URL to select postgres, got %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "postgres://cubby:pw@db:5432/cubby" {
		t.Fatalf("unexpected dsn %q", cfg.Database.DSN)
	}
	if cfg.Scheduler.PollIntervalMillis != 7000 {
		t.Fatalf("expected poll interval from env, got %d", cfg.Scheduler.PollIntervalMillis)
	}
}

func TestCreateSample(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var parsed map[string]any
	if err := toml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	for _, section := range []string{"database", "storage", "scheduler", "transcription", "labeling"} {
		if _, ok := parsed[section]; !ok {
			t.Fatalf("sample config missing [%s]", section)
		}
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{"driver", func(c *config.Config) { c.Database.Driver = "mysql" }, "database.driver"},
		{"postgres dsn", func(c *config.Config) { c.Database.Driver = config.DriverPostgres }, "database.dsn"},
		{"s3 bucket", func(c *config.Config) {
			c.Storage.Backend = config.BackendS3
			c.Storage.Endpoint = "localhost:9000"
		}, "storage.bucket"},
		{"s3 scheme", func(c *config.Config) {
			c.Storage.Backend = config.BackendS3
			c.Storage.Endpoint = "https://s3.example.com"
		}, "storage.endpoint"},
		{"max attempts", func(c *config.Config) { c.Scheduler.MaxAttempts = 0 }, "scheduler.max_attempts"},
		{"heartbeat", func(c *config.Config) { c.Scheduler.HeartbeatTimeoutSeconds = c.Scheduler.HeartbeatIntervalSeconds }, "heartbeat_timeout"},
		{"jitter", func(c *config.Config) { c.Scheduler.PollJitterMillis = c.Scheduler.PollIntervalMillis }, "poll_jitter_ms"},
		{"provider", func(c *config.Config) { c.Transcription.Provider = "vosk" }, "transcription.provider"},
		{"language", func(c *config.Config) { c.Transcription.Language = "klingonese" }, "transcription.language"},
		{"batch", func(c *config.Config) { c.Transcription.BatchSize = 5000 }, "batch_size"},
		{"confidence", func(c *config.Config) { c.Labeling.DefaultConfidence = 1.5 }, "default_confidence"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "ntfy.sh/topic" }, "notifications.ntfy_topic"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Database.Path = "/tmp/cubby.db"
			cfg.Storage.LocalRoot = "/tmp/media"
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEncodeMasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.APIKey = "sk-live"
	cfg.Labeling.APIKey = "or-live"
	cfg.Database.DSN = "postgres://cubby:hunter2@db:5432/cubby"
	data, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	text := string(data)
	for _, secret := range []string{"sk-live", "or-live", "hunter2"} {
		if strings.Contains(text, secret) {
			t.Fatalf("encoded config leaked %q", secret)
		}
	}
	if !strings.Contains(text, "postgres://cubby:********@db:5432/cubby") {
		t.Fatalf("expected masked dsn, got:\n%s", text)
	}
}
