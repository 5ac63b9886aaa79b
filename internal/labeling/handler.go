package labeling

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cubby/internal/logging"
	"cubby/internal/queue"
	"cubby/internal/services"
	"cubby/internal/stage"
)

// Generator is a chat model that answers a system and user prompt.
type Generator interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Store is the slice of the job store the stage reads and writes.
type Store interface {
	GetAsset(ctx context.Context, id string) (*queue.Asset, error)
	ListSegments(ctx context.Context, assetID string) ([]queue.Segment, error)
	ReplaceLabels(ctx context.Context, assetID string, labels []queue.Label) error
}

// Options tunes prompt size and label defaults.
type Options struct {
	MaxTranscriptChars int
	// DefaultConfidence is used as given, zero included; config.Default
	// supplies the usual value.
	DefaultConfidence float64
}

// Handler runs the label generation stage.
type Handler struct {
	store     Store
	generator Generator
	opts      Options
	logger    *slog.Logger
}

// NewHandler wires the label generation stage.
func NewHandler(store Store, generator Generator, opts Options, logger *slog.Logger) *Handler {
	if opts.MaxTranscriptChars <= 0 {
		opts.MaxTranscriptChars = 60000
	}
	return &Handler{
		store:     store,
		generator: generator,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "labeling"),
	}
}

// Run generates labels for the asset from its transcript. A missing
// transcript is not an error.
func (h *Handler) Run(ctx context.Context, assetID string) error {
	ctx = services.WithStage(ctx, string(queue.KindLabelGeneration))
	logger := logging.WithContext(ctx, h.logger)
	started := time.Now()

	segments, err := h.store.ListSegments(ctx, assetID)
	if err != nil {
		return services.Wrap(services.ErrTransient, "label_generation", "load segments", assetID, err)
	}
	if len(segments) == 0 {
		logger.Warn("no transcript segments; skipping label generation",
			logging.String(logging.FieldAssetID, assetID),
			logging.String(logging.FieldEventType, "labels_skipped"),
			logging.String(logging.FieldErrorHint, "run transcription first or check the provider output"),
		)
		return nil
	}

	asset, err := h.store.GetAsset(ctx, assetID)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, queue.ErrNotFound) {
			marker = services.ErrNotFound
		}
		return services.Wrap(marker, "label_generation", "load asset", assetID, err)
	}
	duration := asset.DurationSeconds
	if duration <= 0 {
		duration = segments[len(segments)-1].EndSeconds
	}

	transcript := TranscriptText(segments, h.opts.MaxTranscriptChars)
	logger.Info("requesting labels",
		logging.Int("segments", len(segments)),
		logging.Int("prompt_chars", len([]rune(transcript))),
	)
	raw, err := h.generator.Complete(ctx, SystemPrompt, UserPrompt(duration, transcript))
	if err != nil {
		return services.Wrap(services.ErrTransient, "label_generation", "complete", "chat model request failed", err)
	}

	labels, err := ParseLabels(raw, h.opts.DefaultConfidence)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		logger.Warn("model returned no usable labels",
			logging.String(logging.FieldEventType, "labels_empty"),
			logging.String(logging.FieldErrorHint, "inspect the model response"),
		)
		return nil
	}
	for i := range labels {
		labels[i].WorkspaceID = asset.WorkspaceID
	}
	if err := h.store.ReplaceLabels(ctx, assetID, labels); err != nil {
		return services.Wrap(services.ErrTransient, "label_generation", "store labels", "", err)
	}

	logger.Info("labels stored",
		logging.Int("labels", len(labels)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "labels_stored"),
	)
	return nil
}

// HealthCheck pings the chat model when it supports it.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Probe(ctx, string(queue.KindLabelGeneration), h.generator)
}
