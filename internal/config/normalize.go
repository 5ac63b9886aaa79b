package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"cubby/internal/language"
)

// envPrefix namespaces every override. Each key also falls back to its
// unprefixed name, so DATABASE_URL and OPENAI_API_KEY work as-is.
const envPrefix = "CUBBY"

type envOverrides struct {
	DatabaseDriver string `envconfig:"DATABASE_DRIVER"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DatabasePath   string `envconfig:"DATABASE_PATH"`

	StorageBackend string `envconfig:"STORAGE_BACKEND"`
	S3Endpoint     string `envconfig:"S3_ENDPOINT"`
	S3Bucket       string `envconfig:"S3_BUCKET"`
	S3AccessKey    string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey    string `envconfig:"S3_SECRET_KEY"`
	S3Region       string `envconfig:"S3_REGION"`

	WorkDir string `envconfig:"WORK_DIR"`
	LogDir  string `envconfig:"LOG_DIR"`

	PollIntervalMillis int `envconfig:"POLL_INTERVAL_MS"`
	MaxAttempts        int `envconfig:"MAX_ATTEMPTS"`

	TranscriptionProvider string `envconfig:"TRANSCRIPTION_PROVIDER"`
	OpenAIAPIKey          string `envconfig:"OPENAI_API_KEY"`
	HFToken               string `envconfig:"HF_TOKEN"`
	LLMAPIKey             string `envconfig:"LLM_API_KEY"`
	OpenRouterAPIKey      string `envconfig:"OPENROUTER_API_KEY"`

	ServerBind string `envconfig:"SERVER_BIND"`
	NtfyTopic  string `envconfig:"NTFY_TOPIC"`
	LogLevel   string `envconfig:"LOG_LEVEL"`
	LogFormat  string `envconfig:"LOG_FORMAT"`
}

func (c *Config) normalize() error {
	if err := c.applyEnv(); err != nil {
		return err
	}
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	if err := c.normalizeStorage(); err != nil {
		return err
	}
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeTranscription()
	c.normalizeLabeling()
	c.normalizeServer()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

// applyEnv lets the environment take precedence over the config file.
func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("read environment overrides: %w", err)
	}

	setString(&c.Database.Driver, env.DatabaseDriver)
	if strings.TrimSpace(env.DatabaseURL) != "" {
		c.Database.DSN = strings.TrimSpace(env.DatabaseURL)
		if strings.TrimSpace(env.DatabaseDriver) == "" {
			c.Database.Driver = DriverPostgres
		}
	}
	setString(&c.Database.Path, env.DatabasePath)

	setString(&c.Storage.Backend, env.StorageBackend)
	setString(&c.Storage.Endpoint, env.S3Endpoint)
	setString(&c.Storage.Bucket, env.S3Bucket)
	setString(&c.Storage.AccessKey, env.S3AccessKey)
	setString(&c.Storage.SecretKey, env.S3SecretKey)
	setString(&c.Storage.Region, env.S3Region)

	setString(&c.Paths.WorkDir, env.WorkDir)
	setString(&c.Paths.LogDir, env.LogDir)

	if env.PollIntervalMillis > 0 {
		c.Scheduler.PollIntervalMillis = env.PollIntervalMillis
	}
	if env.MaxAttempts > 0 {
		c.Scheduler.MaxAttempts = env.MaxAttempts
	}

	setString(&c.Transcription.Provider, env.TranscriptionProvider)
	setString(&c.Transcription.APIKey, env.OpenAIAPIKey)
	setString(&c.Transcription.WhisperXHFToken, env.HFToken)
	setString(&c.Labeling.APIKey, env.OpenRouterAPIKey)
	setString(&c.Labeling.APIKey, env.LLMAPIKey)

	setString(&c.Server.Bind, env.ServerBind)
	setString(&c.Notifications.NtfyTopic, env.NtfyTopic)
	setString(&c.Logging.Level, env.LogLevel)
	setString(&c.Logging.Format, env.LogFormat)
	return nil
}

func setString(target *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*target = trimmed
	}
}

func (c *Config) normalizeDatabase() error {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == "sqlite3" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Driver == "postgresql" || c.Database.Driver == "pgx" {
		c.Database.Driver = DriverPostgres
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if strings.TrimSpace(c.Database.Path) == "" {
		c.Database.Path = defaultDatabasePath
	}
	var err error
	if c.Database.Path, err = expandPath(c.Database.Path); err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = defaultMaxOpenConns
	}
	return nil
}

func (c *Config) normalizeStorage() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	if c.Storage.Backend == "minio" {
		c.Storage.Backend = BackendS3
	}
	c.Storage.Endpoint = strings.TrimSpace(c.Storage.Endpoint)
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.ThumbnailPrefix = strings.Trim(strings.TrimSpace(c.Storage.ThumbnailPrefix), "/")
	if c.Storage.ThumbnailPrefix == "" {
		c.Storage.ThumbnailPrefix = defaultThumbnailPrefix
	}
	if strings.TrimSpace(c.Storage.LocalRoot) == "" {
		c.Storage.LocalRoot = defaultMediaRoot
	}
	var err error
	if c.Storage.LocalRoot, err = expandPath(c.Storage.LocalRoot); err != nil {
		return fmt.Errorf("storage.local_root: %w", err)
	}
	return nil
}

func (c *Config) normalizePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	jobs := make([]string, 0, len(c.Scheduler.DefaultJobs))
	for _, kind := range c.Scheduler.DefaultJobs {
		kind = strings.ToLower(strings.TrimSpace(kind))
		if kind != "" {
			jobs = append(jobs, kind)
		}
	}
	c.Scheduler.DefaultJobs = jobs
}

func (c *Config) normalizeTranscription() {
	c.Transcription.Provider = strings.ToLower(strings.TrimSpace(c.Transcription.Provider))
	if c.Transcription.Provider == "" {
		c.Transcription.Provider = ProviderWhisper
	}
	c.Transcription.BaseURL = strings.TrimRight(strings.TrimSpace(c.Transcription.BaseURL), "/")
	if c.Transcription.BaseURL == "" {
		c.Transcription.BaseURL = defaultTranscriptionBaseURL
	}
	c.Transcription.Model = strings.TrimSpace(c.Transcription.Model)
	if c.Transcription.Model == "" {
		c.Transcription.Model = defaultTranscriptionModel
	}
	c.Transcription.AudioBitrate = strings.TrimSpace(c.Transcription.AudioBitrate)
	if c.Transcription.AudioBitrate == "" {
		c.Transcription.AudioBitrate = defaultAudioBitrate
	}
	c.Transcription.Language = strings.ToLower(strings.TrimSpace(c.Transcription.Language))
	if code := language.ToISO2(c.Transcription.Language); code != "" {
		c.Transcription.Language = code
	}
	c.Transcription.WhisperXModel = strings.TrimSpace(c.Transcription.WhisperXModel)
	if c.Transcription.WhisperXModel == "" {
		c.Transcription.WhisperXModel = defaultWhisperXModel
	}
	c.Transcription.WhisperXVADMethod = strings.ToLower(strings.TrimSpace(c.Transcription.WhisperXVADMethod))
	if c.Transcription.WhisperXVADMethod == "" {
		c.Transcription.WhisperXVADMethod = defaultWhisperXVADMethod
	}
	c.Transcription.APIKey = strings.TrimSpace(c.Transcription.APIKey)
}

func (c *Config) normalizeLabeling() {
	c.Labeling.APIKey = strings.TrimSpace(c.Labeling.APIKey)
	c.Labeling.BaseURL = strings.TrimSpace(c.Labeling.BaseURL)
	if c.Labeling.BaseURL == "" {
		c.Labeling.BaseURL = defaultLabelingBaseURL
	}
	c.Labeling.Model = strings.TrimSpace(c.Labeling.Model)
	if c.Labeling.Model == "" {
		c.Labeling.Model = defaultLabelingModel
	}
	c.Labeling.Referer = strings.TrimSpace(c.Labeling.Referer)
	c.Labeling.Title = strings.TrimSpace(c.Labeling.Title)
	if c.Labeling.MaxTokens <= 0 {
		c.Labeling.MaxTokens = defaultLabelingMaxTokens
	}
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
