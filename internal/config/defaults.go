package config

const (
	defaultConfigPath   = "~/.config/cubby/config.toml"
	defaultDatabasePath = "~/.local/share/cubby/cubby.db"
	defaultWorkDir      = "~/.local/share/cubby/work"
	defaultLogDir       = "~/.local/share/cubby/logs"
	defaultMediaRoot    = "~/.local/share/cubby/media"
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
	defaultServerBind   = "127.0.0.1:7488"
	defaultNtfyTimeout  = 10

	defaultPollIntervalMillis = 5000
	defaultPollJitterMillis   = 500
	defaultMaxAttempts        = 3
	defaultCandidateWindow    = 20
	defaultJobTimeoutSeconds  = 3600
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultErrorRetrySeconds  = 10
	defaultThumbnailPrefix    = "thumbnails"
	defaultMaxOpenConns       = 4

	defaultTranscriptionBaseURL = "https://api.openai.com/v1"
	defaultTranscriptionModel   = "whisper-1"
	defaultChunkSizeLimitBytes  = 23 * 1024 * 1024
	defaultSafetyMarginSeconds  = 5
	defaultSegmentBatchSize     = 200
	defaultSampleRate           = 16000
	defaultAudioBitrate         = "32k"
	defaultTranscriptionTimeout = 600
	defaultWhisperXModel        = "large-v3"
	defaultWhisperXVADMethod    = "silero"

	defaultLabelingBaseURL    = "https://openrouter.ai/api/v1/chat/completions"
	defaultLabelingModel      = "google/gemini-3-flash-preview"
	defaultLabelingReferer    = "https://github.com/cubbystack/cubby"
	defaultLabelingTitle      = "Cubby Label Generator"
	defaultLabelingTimeout    = 120
	defaultMaxTranscriptChars = 60000
	defaultLabelingMaxTokens  = 4096
	defaultLabelingConfidence = 0.8
)

// Driver and backend identifiers accepted in the config file.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	BackendLocal   = "local"
	BackendS3      = "s3"

	ProviderWhisper  = "whisper"
	ProviderWhisperX = "whisperx"
)

// DefaultJobKinds lists the stages enqueued for a newly registered asset.
var DefaultJobKinds = []string{"transcription", "thumbnail_generation", "label_generation", "indexing"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Database: Database{
			Driver:       DriverSQLite,
			Path:         defaultDatabasePath,
			MaxOpenConns: defaultMaxOpenConns,
		},
		Storage: Storage{
			Backend:         BackendLocal,
			LocalRoot:       defaultMediaRoot,
			UseSSL:          true,
			ThumbnailPrefix: defaultThumbnailPrefix,
		},
		Paths: Paths{
			WorkDir: defaultWorkDir,
			LogDir:  defaultLogDir,
		},
		Scheduler: Scheduler{
			PollIntervalMillis:       defaultPollIntervalMillis,
			PollJitterMillis:         defaultPollJitterMillis,
			MaxAttempts:              defaultMaxAttempts,
			CandidateWindow:          defaultCandidateWindow,
			JobTimeoutSeconds:        defaultJobTimeoutSeconds,
			HeartbeatIntervalSeconds: defaultHeartbeatInterval,
			HeartbeatTimeoutSeconds:  defaultHeartbeatTimeout,
			ErrorRetrySeconds:        defaultErrorRetrySeconds,
			DefaultJobs:              append([]string(nil), DefaultJobKinds...),
		},
		Transcription: Transcription{
			Provider:            ProviderWhisper,
			BaseURL:             defaultTranscriptionBaseURL,
			Model:               defaultTranscriptionModel,
			ChunkSizeLimitBytes: defaultChunkSizeLimitBytes,
			SafetyMarginSeconds: defaultSafetyMarginSeconds,
			BatchSize:           defaultSegmentBatchSize,
			SampleRate:          defaultSampleRate,
			AudioBitrate:        defaultAudioBitrate,
			TimeoutSeconds:      defaultTranscriptionTimeout,
			WhisperXModel:       defaultWhisperXModel,
			WhisperXVADMethod:   defaultWhisperXVADMethod,
		},
		Labeling: Labeling{
			BaseURL:            defaultLabelingBaseURL,
			Model:              defaultLabelingModel,
			Referer:            defaultLabelingReferer,
			Title:              defaultLabelingTitle,
			TimeoutSeconds:     defaultLabelingTimeout,
			MaxTranscriptChars: defaultMaxTranscriptChars,
			MaxTokens:          defaultLabelingMaxTokens,
			DefaultConfidence:  defaultLabelingConfidence,
		},
		Server: Server{
			Enabled: true,
			Bind:    defaultServerBind,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
			AssetReady:     true,
			AssetFailed:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
