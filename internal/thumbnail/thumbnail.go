// Package thumbnail implements the thumbnail generation stage: one JPEG
// frame taken at a tenth of the asset's duration, stored next to the media
// and recorded on the asset.
package thumbnail

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cubby/internal/logging"
	"cubby/internal/mediastore"
	"cubby/internal/queue"
	"cubby/internal/services"
	"cubby/internal/stage"
	"cubby/internal/textutil"
)

// DefaultPrefix is the object key prefix for thumbnails.
const DefaultPrefix = "thumbnails"

// Store is the slice of the job store the stage needs.
type Store interface {
	GetAsset(ctx context.Context, id string) (*queue.Asset, error)
	SetAssetDuration(ctx context.Context, assetID string, seconds float64) error
	SetThumbnailPath(ctx context.Context, assetID, locator string) error
}

// FrameTool probes durations and grabs frames.
type FrameTool interface {
	Duration(ctx context.Context, path string) (float64, error)
	GrabFrame(ctx context.Context, src, dst string, atSeconds float64) error
}

// Handler runs the thumbnail stage.
type Handler struct {
	store   Store
	media   mediastore.Store
	tool    FrameTool
	workDir string
	prefix  string
	logger  *slog.Logger
}

// NewHandler wires the thumbnail stage. An empty prefix uses DefaultPrefix.
func NewHandler(store Store, media mediastore.Store, tool FrameTool, workDir, prefix string, logger *slog.Logger) *Handler {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Handler{
		store:   store,
		media:   media,
		tool:    tool,
		workDir: workDir,
		prefix:  prefix,
		logger:  logging.NewComponentLogger(logger, "thumbnail"),
	}
}

// Locator returns the object key for an asset's thumbnail.
func (h *Handler) Locator(asset *queue.Asset) string {
	return path.Join(h.prefix, textutil.SanitizeToken(asset.WorkspaceID), asset.ID+".jpg")
}

// Run grabs, uploads and records the thumbnail. Reruns overwrite the same key.
func (h *Handler) Run(ctx context.Context, assetID string) error {
	ctx = services.WithStage(ctx, string(queue.KindThumbnailGeneration))
	logger := logging.WithContext(ctx, h.logger)

	asset, err := h.store.GetAsset(ctx, assetID)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, queue.ErrNotFound) {
			marker = services.ErrNotFound
		}
		return services.Wrap(marker, "thumbnail_generation", "load asset", assetID, err)
	}

	if err := os.MkdirAll(h.workDir, 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, "thumbnail_generation", "work dir", h.workDir, err)
	}
	workDir, err := os.MkdirTemp(h.workDir, "thumbnail-"+textutil.SanitizeToken(assetID)+"-")
	if err != nil {
		return services.Wrap(services.ErrTransient, "thumbnail_generation", "work dir", "create job directory", err)
	}
	defer os.RemoveAll(workDir)

	source, err := h.media.Download(ctx, asset.StoragePath, filepath.Join(workDir, "source"))
	if err != nil {
		return err
	}

	duration := asset.DurationSeconds
	if duration <= 0 {
		duration, err = h.tool.Duration(ctx, source)
		if err != nil {
			return err
		}
		if duration > 0 {
			if err := h.store.SetAssetDuration(ctx, assetID, duration); err != nil {
				return services.Wrap(services.ErrTransient, "thumbnail_generation", "persist duration", "", err)
			}
		}
	}

	frame := filepath.Join(workDir, "thumbnail.jpg")
	if err := h.tool.GrabFrame(ctx, source, frame, duration*0.1); err != nil {
		return err
	}
	locator := h.Locator(asset)
	if err := h.media.Upload(ctx, frame, locator, "image/jpeg"); err != nil {
		return err
	}
	if err := h.store.SetThumbnailPath(ctx, assetID, locator); err != nil {
		return services.Wrap(services.ErrTransient, "thumbnail_generation", "record path", locator, err)
	}

	logger.Info("thumbnail stored",
		logging.String("locator", locator),
		logging.Float64("at_seconds", duration*0.1),
		logging.String(logging.FieldEventType, "thumbnail_stored"),
	)
	return nil
}

// HealthCheck reports the media store reachability when the backend can be pinged.
func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	var err error
	if pinger, ok := h.media.(mediastore.Pinger); ok {
		err = pinger.Ping(ctx)
	}
	return stage.Report(string(queue.KindThumbnailGeneration), err)
}
