package mediastore

import (
	"context"
	"fmt"
	"path"
	"strings"

	"cubby/internal/config"
	"cubby/internal/services"
)

// Store downloads source media and uploads derived artifacts.
type Store interface {
	// Download fetches locator into destDir and returns the local file path.
	Download(ctx context.Context, locator, destDir string) (string, error)
	// Upload stores localPath under locator.
	Upload(ctx context.Context, localPath, locator, contentType string) error
	// Name identifies the backend in logs.
	Name() string
}

// Pinger is implemented by backends that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New builds the backend selected by storage.backend.
func New(cfg config.Storage) (Store, error) {
	switch cfg.Backend {
	case config.BackendS3:
		return NewS3(cfg)
	case config.BackendLocal, "":
		return NewLocal(cfg.LocalRoot)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "mediastore", "new", fmt.Sprintf("unsupported backend %q", cfg.Backend), nil)
	}
}

// CleanLocator normalizes a locator and rejects keys that escape the root.
func CleanLocator(locator string) (string, error) {
	trimmed := strings.TrimSpace(strings.ReplaceAll(locator, "\\", "/"))
	if trimmed == "" {
		return "", services.Wrap(services.ErrValidation, "mediastore", "locator", "empty locator", nil)
	}
	cleaned := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	for _, part := range strings.Split(trimmed, "/") {
		if part == ".." {
			return "", services.Wrap(services.ErrValidation, "mediastore", "locator", fmt.Sprintf("locator %q escapes the store root", locator), nil)
		}
	}
	if cleaned == "" || cleaned == "." {
		return "", services.Wrap(services.ErrValidation, "mediastore", "locator", fmt.Sprintf("locator %q names the store root", locator), nil)
	}
	return cleaned, nil
}

// ContentTypeFor guesses a MIME type from the locator extension.
func ContentTypeFor(locator string) string {
	switch strings.ToLower(path.Ext(locator)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	case ".mp3":
		return "audio/mpeg"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
