package daemonrun

import (
	"fmt"
	"log/slog"

	"cubby/internal/config"
	"cubby/internal/labeling"
	"cubby/internal/media/audio"
	"cubby/internal/mediastore"
	"cubby/internal/queue"
	"cubby/internal/services/llm"
	"cubby/internal/services/whisper"
	"cubby/internal/services/whisperx"
	"cubby/internal/stage"
	"cubby/internal/thumbnail"
	"cubby/internal/transcription"
)

// BuildRegistry wires a handler for every job kind. indexing and
// proxy_generation are accepted and completed without work.
func BuildRegistry(cfg *config.Config, store *queue.Store, media mediastore.Store, logger *slog.Logger) (*stage.Registry, error) {
	if cfg == nil || store == nil || media == nil {
		return nil, fmt.Errorf("build registry: config, store, and media store are required")
	}
	tool := audio.NewTool(cfg.FFmpegBinary(), cfg.FFprobeBinary(), cfg.Transcription.SampleRate, cfg.Transcription.AudioBitrate)

	provider, err := NewTranscriptionProvider(cfg.Transcription)
	if err != nil {
		return nil, err
	}

	registry := stage.NewRegistry()
	registry.MustRegister(queue.KindTranscription, transcription.NewHandler(store, media, tool, provider, transcription.Options{
		WorkDir:             cfg.Paths.WorkDir,
		ChunkSizeLimitBytes: cfg.Transcription.ChunkSizeLimitBytes,
		SafetyMarginSeconds: cfg.Transcription.SafetyMarginSeconds,
		BatchSize:           cfg.Transcription.BatchSize,
		Language:            cfg.Transcription.Language,
	}, logger))
	registry.MustRegister(queue.KindThumbnailGeneration,
		thumbnail.NewHandler(store, media, tool, cfg.Paths.WorkDir, cfg.Storage.ThumbnailPrefix, logger))
	registry.MustRegister(queue.KindLabelGeneration, labeling.NewHandler(store, NewLabelingClient(cfg.Labeling), labeling.Options{
		MaxTranscriptChars: cfg.Labeling.MaxTranscriptChars,
		DefaultConfidence:  cfg.Labeling.DefaultConfidence,
	}, logger))
	registry.MustRegister(queue.KindIndexing, stage.NewNoop(queue.KindIndexing, logger))
	registry.MustRegister(queue.KindProxyGeneration, stage.NewNoop(queue.KindProxyGeneration, logger))

	if err := registry.Validate(queue.JobKinds()...); err != nil {
		return nil, err
	}
	return registry, nil
}

// NewTranscriptionProvider selects the speech-to-text backend.
func NewTranscriptionProvider(cfg config.Transcription) (transcription.Provider, error) {
	switch cfg.Provider {
	case config.ProviderWhisperX:
		return transcription.WhisperXProvider{Service: whisperx.NewService(whisperx.Config{
			Model:       cfg.WhisperXModel,
			CUDAEnabled: cfg.WhisperXCUDAEnabled,
			VADMethod:   cfg.WhisperXVADMethod,
			HFToken:     cfg.WhisperXHFToken,
			Language:    cfg.Language,
		})}, nil
	case config.ProviderWhisper, "":
		return transcription.WhisperProvider{Client: whisper.NewClient(whisper.Config{
			APIKey:         cfg.APIKey,
			BaseURL:        cfg.BaseURL,
			Model:          cfg.Model,
			Language:       cfg.Language,
			TimeoutSeconds: cfg.TimeoutSeconds,
		})}, nil
	default:
		return nil, fmt.Errorf("transcription provider %q is not supported", cfg.Provider)
	}
}

// NewLabelingClient builds the chat client used for label generation.
func NewLabelingClient(cfg config.Labeling) *llm.Client {
	return llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
		MaxTokens:      cfg.MaxTokens,
	})
}
