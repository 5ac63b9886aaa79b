package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Database selects and locates the shared job store.
type Database struct {
	Driver       string `toml:"driver"`
	Path         string `toml:"path"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// Storage configures where uploaded media and derived artifacts live.
type Storage struct {
	Backend         string `toml:"backend"`
	LocalRoot       string `toml:"local_root"`
	Endpoint        string `toml:"endpoint"`
	Bucket          string `toml:"bucket"`
	AccessKey       string `toml:"access_key"`
	SecretKey       string `toml:"secret_key"`
	Region          string `toml:"region"`
	UseSSL          bool   `toml:"use_ssl"`
	ThumbnailPrefix string `toml:"thumbnail_prefix"`
}

// Paths contains local working directories.
type Paths struct {
	WorkDir string `toml:"work_dir"`
	LogDir  string `toml:"log_dir"`
}

// Scheduler controls polling, claiming and retry behaviour.
type Scheduler struct {
	PollIntervalMillis       int      `toml:"poll_interval_ms"`
	PollJitterMillis         int      `toml:"poll_jitter_ms"`
	MaxAttempts              int      `toml:"max_attempts"`
	CandidateWindow          int      `toml:"candidate_window"`
	JobTimeoutSeconds        int      `toml:"job_timeout_seconds"`
	HeartbeatIntervalSeconds int      `toml:"heartbeat_interval_seconds"`
	HeartbeatTimeoutSeconds  int      `toml:"heartbeat_timeout_seconds"`
	ErrorRetrySeconds        int      `toml:"error_retry_seconds"`
	DefaultJobs              []string `toml:"default_jobs"`
}

// Transcription configures audio extraction, chunking and the speech-to-text provider.
type Transcription struct {
	Provider            string `toml:"provider"`
	APIKey              string `toml:"api_key"`
	BaseURL             string `toml:"base_url"`
	Model               string `toml:"model"`
	ChunkSizeLimitBytes int64  `toml:"chunk_size_limit_bytes"`
	SafetyMarginSeconds int    `toml:"safety_margin_seconds"`
	BatchSize           int    `toml:"batch_size"`
	SampleRate          int    `toml:"sample_rate"`
	AudioBitrate        string `toml:"audio_bitrate"`
	TimeoutSeconds      int    `toml:"timeout_seconds"`
	Language            string `toml:"language"`
	WhisperXModel       string `toml:"whisperx_model"`
	WhisperXCUDAEnabled bool   `toml:"whisperx_cuda_enabled"`
	WhisperXVADMethod   string `toml:"whisperx_vad_method"`
	WhisperXHFToken     string `toml:"whisperx_hf_token"`
}

// Labeling configures the chat model used to segment transcripts into labels.
type Labeling struct {
	APIKey             string  `toml:"api_key"`
	BaseURL            string  `toml:"base_url"`
	Model              string  `toml:"model"`
	Referer            string  `toml:"referer"`
	Title              string  `toml:"title"`
	TimeoutSeconds     int     `toml:"timeout_seconds"`
	MaxTranscriptChars int     `toml:"max_transcript_chars"`
	MaxTokens          int     `toml:"max_tokens"`
	DefaultConfidence  float64 `toml:"default_confidence"`
}

// Server controls the worker's operational HTTP surface.
type Server struct {
	Enabled bool   `toml:"enabled"`
	Bind    string `toml:"bind"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications configures ntfy pushes for asset outcomes.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	AssetReady     bool   `toml:"asset_ready"`
	AssetFailed    bool   `toml:"asset_failed"`
}

// Config encapsulates all configuration values for the ingest worker and CLI.
//
// Configuration sections by subsystem:
//   - Database: job store driver and location
//   - Storage: media store backend (local directory or S3)
//   - Paths: scratch and log directories
//   - Scheduler: polling, attempts and heartbeats
//   - Transcription: audio extraction and speech-to-text provider
//   - Labeling: chat model used for label generation
//   - Server: health, status and metrics endpoints
//   - Notifications: ntfy pushes when assets settle
//   - Logging: log format and level
type Config struct {
	Database      Database      `toml:"database"`
	Storage       Storage       `toml:"storage"`
	Paths         Paths         `toml:"paths"`
	Scheduler     Scheduler     `toml:"scheduler"`
	Transcription Transcription `toml:"transcription"`
	Labeling      Labeling      `toml:"labeling"`
	Server        Server        `toml:"server"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. Environment overrides are
// applied after the file is decoded. The returned config has all path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cubby.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the worker writes into.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir}
	if c.Database.Driver == DriverSQLite {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	if c.Storage.Backend == BackendLocal {
		dirs = append(dirs, c.Storage.LocalRoot)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for duration probes.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// PollInterval is the idle wait between scheduler ticks.
func (s Scheduler) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalMillis) * time.Millisecond
}

// PollJitter is the standard deviation applied to the poll interval.
func (s Scheduler) PollJitter() time.Duration {
	return time.Duration(s.PollJitterMillis) * time.Millisecond
}

// JobTimeout bounds a single handler run. Zero disables the deadline.
func (s Scheduler) JobTimeout() time.Duration {
	return time.Duration(s.JobTimeoutSeconds) * time.Second
}

func (s Scheduler) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatIntervalSeconds) * time.Second
}

func (s Scheduler) HeartbeatTimeout() time.Duration {
	return time.Duration(s.HeartbeatTimeoutSeconds) * time.Second
}

func (s Scheduler) ErrorRetryInterval() time.Duration {
	return time.Duration(s.ErrorRetrySeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Encode renders the effective configuration as TOML with secrets masked.
func (c *Config) Encode() ([]byte, error) {
	masked := *c
	masked.Storage.AccessKey = maskSecret(masked.Storage.AccessKey)
	masked.Storage.SecretKey = maskSecret(masked.Storage.SecretKey)
	masked.Transcription.APIKey = maskSecret(masked.Transcription.APIKey)
	masked.Transcription.WhisperXHFToken = maskSecret(masked.Transcription.WhisperXHFToken)
	masked.Labeling.APIKey = maskSecret(masked.Labeling.APIKey)
	masked.Database.DSN = maskDSN(masked.Database.DSN)
	return toml.Marshal(masked)
}

func maskSecret(value string) string {
	if value == "" {
		return ""
	}
	return "********"
}

func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	creds := dsn[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return dsn[:scheme+3] + creds[:colon] + ":********" + dsn[at:]
	}
	return dsn
}
