package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"cubby/internal/config"
	"cubby/internal/queue"
)

// WriteUpload places size bytes of placeholder media at the asset's storage
// path below the local media root and returns the absolute file path.
func WriteUpload(t testing.TB, cfg *config.Config, asset *queue.Asset, size int) string {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	target := filepath.Join(cfg.Storage.LocalRoot, filepath.FromSlash(asset.StoragePath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", asset.StoragePath, err)
	}
	if err := os.WriteFile(target, bytes.Repeat([]byte{0x42}, size), 0o644); err != nil {
		t.Fatalf("write upload %s: %v", asset.StoragePath, err)
	}
	return target
}
