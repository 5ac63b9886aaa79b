package testsupport

import (
	"context"
	"testing"

	"cubby/internal/config"
	"cubby/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedAsset registers an asset stored at "uploads/<name>" with one pending
// job per kind.
func SeedAsset(t testing.TB, store *queue.Store, name string, kinds ...queue.JobKind) (*queue.Asset, []*queue.Job) {
	t.Helper()

	asset, jobs, err := store.RegisterAsset(context.Background(), queue.NewAsset{
		WorkspaceID: "ws-test",
		UserID:      "user-test",
		Filename:    name,
		StoragePath: "uploads/" + name,
	}, kinds...)
	if err != nil {
		t.Fatalf("store.RegisterAsset: %v", err)
	}
	return asset, jobs
}
