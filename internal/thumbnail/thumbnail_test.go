package thumbnail_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cubby/internal/logging"
	"cubby/internal/mediastore"
	"cubby/internal/queue"
	"cubby/internal/testsupport"
	"cubby/internal/thumbnail"
)

type fakeFrameTool struct {
	duration    float64
	probes      int
	grabbedAt   float64
	grabbedFrom string
}

func (f *fakeFrameTool) Duration(context.Context, string) (float64, error) {
	f.probes++
	return f.duration, nil
}

func (f *fakeFrameTool) GrabFrame(_ context.Context, src, dst string, at float64) error {
	f.grabbedFrom = filepath.Base(src)
	f.grabbedAt = at
	return os.WriteFile(dst, []byte("jpeg"), 0o644)
}

func TestRunUploadsFrameAtTenPercent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	asset, _ := testsupport.SeedAsset(t, store, "clip.mp4", queue.KindThumbnailGeneration)
	testsupport.WriteUpload(t, cfg, asset, 32)

	media, err := mediastore.NewLocal(cfg.Storage.LocalRoot)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	tool := &fakeFrameTool{duration: 120}
	h := thumbnail.NewHandler(store, media, tool, cfg.Paths.WorkDir, "", logging.NewNop())

	if err := h.Run(context.Background(), asset.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if tool.probes != 1 || tool.grabbedAt != 12 || tool.grabbedFrom != "clip.mp4" {
		t.Fatalf("unexpected tool use %+v", tool)
	}

	want := "thumbnails/ws-test/" + asset.ID + ".jpg"
	if _, err := os.Stat(filepath.Join(cfg.Storage.LocalRoot, filepath.FromSlash(want))); err != nil {
		t.Fatalf("expected uploaded thumbnail: %v", err)
	}
	updated, err := store.GetAsset(context.Background(), asset.ID)
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if updated.ThumbnailPath != want || updated.DurationSeconds != 120 {
		t.Fatalf("unexpected asset %+v", updated)
	}

	// The stored duration is reused on rerun.
	if err := h.Run(context.Background(), asset.ID); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if tool.probes != 1 {
		t.Fatalf("expected stored duration to be reused, probes=%d", tool.probes)
	}
	entries, err := os.ReadDir(cfg.Paths.WorkDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected work dir cleaned up, found %d entries", len(entries))
	}
}
