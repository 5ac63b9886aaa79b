package services_test

import (
	"context"
	"testing"

	"cubby/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithJobID(ctx, "job-42")
	ctx = services.WithAssetID(ctx, "asset-7")
	ctx = services.WithStage(ctx, "transcription")
	ctx = services.WithWorkerID(ctx, "host-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != "job-42" {
		t.Fatalf("unexpected job id: %v %v", id, ok)
	}
	if id, ok := services.AssetIDFromContext(ctx); !ok || id != "asset-7" {
		t.Fatalf("unexpected asset id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "transcription" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if worker, ok := services.WorkerIDFromContext(ctx); !ok || worker != "host-1" {
		t.Fatalf("unexpected worker id: %v %v", worker, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithJobID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected blank stage to be ignored")
	}
	if _, ok := services.JobIDFromContext(ctx); ok {
		t.Fatal("expected blank job id to be ignored")
	}
}
