package mediastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cubby/internal/fileutil"
	"cubby/internal/services"
)

// Local stores objects as files below Root.
type Local struct {
	Root string
}

// NewLocal returns a Local store rooted at root.
func NewLocal(root string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "mediastore", "local", "storage.local_root is required", nil)
	}
	return &Local{Root: root}, nil
}

func (l *Local) Name() string { return "local" }

// Download copies Root/locator into destDir, keeping the base name.
func (l *Local) Download(ctx context.Context, locator, destDir string) (string, error) {
	key, err := CleanLocator(locator)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src := filepath.Join(l.Root, filepath.FromSlash(key))
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "mediastore", "download", fmt.Sprintf("object %q missing", key), err)
		}
		return "", services.Wrap(services.ErrTransient, "mediastore", "download", "stat object", err)
	}
	dst := filepath.Join(destDir, path.Base(key))
	if err := fileutil.CopyFile(src, dst); err != nil {
		return "", services.Wrap(services.ErrTransient, "mediastore", "download", "copy object", err)
	}
	return dst, nil
}

// Upload atomically copies localPath to Root/locator after a size check.
func (l *Local) Upload(ctx context.Context, localPath, locator, _ string) error {
	key, err := CleanLocator(locator)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(l.Root, filepath.FromSlash(key))
	if _, err := fileutil.CopyAtomic(localPath, dst); err != nil {
		return services.Wrap(services.ErrTransient, "mediastore", "upload", fmt.Sprintf("store %q", key), err)
	}
	return nil
}

// Ping checks that the root directory exists.
func (l *Local) Ping(_ context.Context) error {
	info, err := os.Stat(l.Root)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "mediastore", "ping", "stat root", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "mediastore", "ping", fmt.Sprintf("%s is not a directory", l.Root), nil)
	}
	return nil
}
