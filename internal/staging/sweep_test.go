package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cubby/internal/logging"
)

func mkdirAged(t *testing.T, root, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", name, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func TestCleanStaleInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanStale(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q, got %+v", dir, result)
		}
	}
}

func TestCleanStaleRemovesOnlyOldScratchDirectories(t *testing.T) {
	root := t.TempDir()
	old := mkdirAged(t, root, "transcription-asset1-123", 2*time.Hour)
	recent := mkdirAged(t, root, "thumbnail-asset2-456", time.Minute)
	foreign := mkdirAged(t, root, "operator-notes", 48*time.Hour)

	result := CleanStale(context.Background(), root, time.Hour, nil)
	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("expected only %s removed, got %v", old, result.Removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("old scratch dir should be gone, stat err=%v", err)
	}
	for _, keep := range []string{recent, foreign} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("%s should remain: %v", keep, err)
		}
	}
}

func TestCleanStaleStopsOnCanceledContext(t *testing.T) {
	root := t.TempDir()
	mkdirAged(t, root, "thumbnail-a-1", 2*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := CleanStale(ctx, root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("expected nothing removed after cancel, got %v", result.Removed)
	}
}

func TestListDirectoriesReportsSize(t *testing.T) {
	root := t.TempDir()
	dir := mkdirAged(t, root, "transcription-a-1", 0)
	if err := os.WriteFile(filepath.Join(dir, "audio.wav"), make([]byte, 2048), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "transcription-file"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirs, err := ListDirectories(root)
	if err != nil {
		t.Fatalf("ListDirectories: %v", err)
	}
	if len(dirs) != 1 {
		t.Fatalf("expected one scratch dir, got %+v", dirs)
	}
	if dirs[0].Name != "transcription-a-1" || dirs[0].Size != 2048 {
		t.Fatalf("unexpected entry %+v", dirs[0])
	}
}

func TestIsScratch(t *testing.T) {
	cases := map[string]bool{
		"transcription-x-1": true,
		"thumbnail-x-2":     true,
		"proxy-x":           false,
		"cubby.db":          false,
	}
	for name, want := range cases {
		if got := IsScratch(name); got != want {
			t.Errorf("IsScratch(%q) = %v, want %v", name, got, want)
		}
	}
}
