package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateScheduler(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLabeling(); err != nil {
		return err
	}
	if topic := c.Notifications.NtfyTopic; topic != "" &&
		!strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic %q must be a full http(s) URL", topic)
	}
	return c.validateLogging()
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path must be set when database.driver is sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			return errors.New("database.dsn must be set when database.driver is postgres (or set DATABASE_URL)")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported (use sqlite or postgres)", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Storage.LocalRoot) == "" {
			return errors.New("storage.local_root must be set when storage.backend is local")
		}
	case BackendS3:
		if c.Storage.Endpoint == "" {
			return errors.New("storage.endpoint must be set when storage.backend is s3")
		}
		if strings.Contains(c.Storage.Endpoint, "://") {
			return errors.New("storage.endpoint must be host[:port] without a scheme (use storage.use_ssl)")
		}
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set when storage.backend is s3")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return errors.New("storage.access_key and storage.secret_key must be set when storage.backend is s3")
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported (use local or s3)", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if err := ensurePositiveMap(map[string]int{
		"scheduler.poll_interval_ms":           c.Scheduler.PollIntervalMillis,
		"scheduler.max_attempts":               c.Scheduler.MaxAttempts,
		"scheduler.candidate_window":           c.Scheduler.CandidateWindow,
		"scheduler.heartbeat_interval_seconds": c.Scheduler.HeartbeatIntervalSeconds,
		"scheduler.heartbeat_timeout_seconds":  c.Scheduler.HeartbeatTimeoutSeconds,
		"scheduler.error_retry_seconds":        c.Scheduler.ErrorRetrySeconds,
	}); err != nil {
		return err
	}
	if c.Scheduler.PollJitterMillis < 0 {
		return errors.New("scheduler.poll_jitter_ms must not be negative")
	}
	if c.Scheduler.PollJitterMillis >= c.Scheduler.PollIntervalMillis {
		return errors.New("scheduler.poll_jitter_ms must be smaller than scheduler.poll_interval_ms")
	}
	if c.Scheduler.JobTimeoutSeconds < 0 {
		return errors.New("scheduler.job_timeout_seconds must not be negative (0 disables the deadline)")
	}
	if c.Scheduler.HeartbeatTimeoutSeconds <= c.Scheduler.HeartbeatIntervalSeconds {
		return errors.New("scheduler.heartbeat_timeout_seconds must be greater than scheduler.heartbeat_interval_seconds")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case ProviderWhisper, ProviderWhisperX:
	default:
		return fmt.Errorf("transcription.provider %q is not supported (use whisper or whisperx)", c.Transcription.Provider)
	}
	if c.Transcription.ChunkSizeLimitBytes <= 0 {
		return errors.New("transcription.chunk_size_limit_bytes must be positive")
	}
	if c.Transcription.SafetyMarginSeconds < 0 {
		return errors.New("transcription.safety_margin_seconds must not be negative")
	}
	if c.Transcription.BatchSize <= 0 || c.Transcription.BatchSize > 1000 {
		return errors.New("transcription.batch_size must be between 1 and 1000")
	}
	if err := ensurePositiveMap(map[string]int{
		"transcription.sample_rate":     c.Transcription.SampleRate,
		"transcription.timeout_seconds": c.Transcription.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if lang := c.Transcription.Language; lang != "" && len(lang) != 2 {
		return fmt.Errorf("transcription.language %q is not a recognized language", lang)
	}
	switch c.Transcription.WhisperXVADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("transcription.whisperx_vad_method %q is not supported (use silero or pyannote)", c.Transcription.WhisperXVADMethod)
	}
	return nil
}

func (c *Config) validateLabeling() error {
	if err := ensurePositiveMap(map[string]int{
		"labeling.timeout_seconds":      c.Labeling.TimeoutSeconds,
		"labeling.max_transcript_chars": c.Labeling.MaxTranscriptChars,
		"labeling.max_tokens":           c.Labeling.MaxTokens,
	}); err != nil {
		return err
	}
	if c.Labeling.DefaultConfidence < 0 || c.Labeling.DefaultConfidence > 1 {
		return errors.New("labeling.default_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported (use console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
