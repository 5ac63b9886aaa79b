package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cubby/internal/logging"
	"cubby/internal/media/audio"
	"cubby/internal/mediastore"
	"cubby/internal/queue"
	"cubby/internal/services"
	"cubby/internal/stage"
	"cubby/internal/textutil"
)

// Store is the slice of the job store the stage writes to.
type Store interface {
	GetAsset(ctx context.Context, id string) (*queue.Asset, error)
	SetAssetDuration(ctx context.Context, assetID string, seconds float64) error
	DeleteTranscript(ctx context.Context, assetID string) error
	CreateTranscript(ctx context.Context, assetID, language, fullText string) (*queue.Transcript, error)
	InsertSegments(ctx context.Context, transcriptID, assetID string, segments []queue.Segment) error
}

// MediaTool is the ffmpeg surface the stage needs.
type MediaTool interface {
	Extract(ctx context.Context, src, dst string) error
	Split(ctx context.Context, src, outDir string, chunkSeconds int) ([]string, error)
	Duration(ctx context.Context, path string) (float64, error)
}

// Options tunes chunking and persistence.
type Options struct {
	WorkDir             string
	ChunkSizeLimitBytes int64
	SafetyMarginSeconds int
	BatchSize           int
	Language            string
}

// Handler runs the transcription stage.
type Handler struct {
	store    Store
	media    mediastore.Store
	tool     MediaTool
	provider Provider
	opts     Options
	logger   *slog.Logger
}

// NewHandler wires the transcription stage.
func NewHandler(store Store, media mediastore.Store, tool MediaTool, provider Provider, opts Options, logger *slog.Logger) *Handler {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.ChunkSizeLimitBytes <= 0 {
		opts.ChunkSizeLimitBytes = 23 * 1024 * 1024
	}
	return &Handler{
		store:    store,
		media:    media,
		tool:     tool,
		provider: provider,
		opts:     opts,
		logger:   logging.NewComponentLogger(logger, "transcription"),
	}
}

// Run transcribes the asset and replaces its transcript.
func (h *Handler) Run(ctx context.Context, assetID string) error {
	ctx = services.WithStage(ctx, string(queue.KindTranscription))
	logger := logging.WithContext(ctx, h.logger)
	started := time.Now()

	asset, err := h.store.GetAsset(ctx, assetID)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, queue.ErrNotFound) {
			marker = services.ErrNotFound
		}
		return services.Wrap(marker, "transcription", "load asset", assetID, err)
	}

	if err := os.MkdirAll(h.opts.WorkDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "transcription", "work dir", h.opts.WorkDir, err)
	}
	workDir, err := os.MkdirTemp(h.opts.WorkDir, "transcription-"+textutil.SanitizeToken(assetID)+"-")
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcription", "work dir", "create job directory", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("work directory cleanup failed",
				logging.String("path", workDir),
				logging.Error(err),
				logging.String(logging.FieldEventType, "cleanup_failed"),
				logging.String(logging.FieldErrorHint, "remove the directory manually"),
			)
		}
	}()

	source, err := h.media.Download(ctx, asset.StoragePath, filepath.Join(workDir, "source"))
	if err != nil {
		return fmt.Errorf("download source: %w", err)
	}

	duration, err := h.tool.Duration(ctx, source)
	if err != nil {
		return err
	}
	if duration > 0 {
		if err := h.store.SetAssetDuration(ctx, assetID, duration); err != nil {
			return services.Wrap(services.ErrTransient, "transcription", "persist duration", "", err)
		}
	}

	audioPath := filepath.Join(workDir, "audio.mp3")
	if err := h.tool.Extract(ctx, source, audioPath); err != nil {
		return err
	}

	chunks, err := h.chunk(ctx, audioPath, filepath.Join(workDir, "chunks"))
	if err != nil {
		return err
	}
	logger.Info("transcribing audio",
		logging.String(logging.FieldAssetID, assetID),
		logging.Int("chunks", len(chunks)),
		logging.Float64("duration_seconds", duration),
	)

	var (
		collected []Utterance
		offset    float64
	)
	for i, chunk := range chunks {
		utterances, err := h.provider.Transcribe(ctx, chunk)
		if err != nil {
			return services.Wrap(services.ErrTransient, "transcription", "transcribe",
				fmt.Sprintf("chunk %d/%d", i+1, len(chunks)), err)
		}
		collected = append(collected, Shift(utterances, offset)...)
		if i < len(chunks)-1 {
			chunkDuration, err := h.tool.Duration(ctx, chunk)
			if err != nil {
				return err
			}
			offset += chunkDuration
		}
	}

	utterances := Normalize(collected)
	if err := h.store.DeleteTranscript(ctx, assetID); err != nil {
		return services.Wrap(services.ErrTransient, "transcription", "clear transcript", "", err)
	}
	if len(utterances) == 0 {
		logger.Info("no speech recognized; transcript left empty",
			logging.String(logging.FieldAssetID, assetID),
			logging.String(logging.FieldEventType, "transcript_empty"),
		)
		return nil
	}

	transcript, err := h.store.CreateTranscript(ctx, assetID, h.opts.Language, FullText(utterances))
	if err != nil {
		return services.Wrap(services.ErrTransient, "transcription", "create transcript", "", err)
	}
	segments := ToSegments(utterances)
	for start := 0; start < len(segments); start += h.opts.BatchSize {
		end := min(start+h.opts.BatchSize, len(segments))
		if err := h.store.InsertSegments(ctx, transcript.ID, assetID, segments[start:end]); err != nil {
			return services.Wrap(services.ErrTransient, "transcription", "insert segments",
				fmt.Sprintf("batch %d-%d", start, end), err)
		}
	}

	logger.Info("transcript stored",
		logging.String(logging.FieldAssetID, assetID),
		logging.Int("segments", len(segments)),
		logging.Duration("elapsed", time.Since(started)),
		logging.String(logging.FieldEventType, "transcript_stored"),
	)
	return nil
}

// chunk returns audioPath itself when it fits the provider limit, otherwise
// the split chunk files in order.
func (h *Handler) chunk(ctx context.Context, audioPath, chunkDir string) ([]string, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "transcription", "stat audio", "", err)
	}
	if info.Size() <= h.opts.ChunkSizeLimitBytes {
		return []string{audioPath}, nil
	}
	audioDuration, err := h.tool.Duration(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	seconds, err := audio.ChunkSeconds(info.Size(), audioDuration, h.opts.ChunkSizeLimitBytes, h.opts.SafetyMarginSeconds)
	if err != nil {
		return nil, err
	}
	return h.tool.Split(ctx, audioPath, chunkDir, seconds)
}

// HealthCheck pings the provider when it supports it.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Probe(ctx, string(queue.KindTranscription), h.provider)
}
