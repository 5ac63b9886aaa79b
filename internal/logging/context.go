package logging

import (
	"context"
	"log/slog"

	"cubby/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldJobID identifies the job being processed.
	FieldJobID = "job_id"
	// FieldAssetID identifies the media asset a job belongs to.
	FieldAssetID = "asset_id"
	// FieldStage is the job kind being executed.
	FieldStage = "stage"
	// FieldWorkerID identifies the worker process holding a claim.
	FieldWorkerID = "worker_id"
	// FieldCorrelationID is the per-dispatch request identifier.
	FieldCorrelationID = "correlation_id"
	// FieldEventType classifies a log line for filtering (job_claimed, job_failed, ...).
	FieldEventType = "event_type"
	// FieldErrorHint is a short operator-facing next step.
	FieldErrorHint = "error_hint"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 5)
	if id, ok := services.JobIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if id, ok := services.AssetIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldAssetID, id))
	}
	if stage, ok := services.StageFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldStage, stage))
	}
	if worker, ok := services.WorkerIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorkerID, worker))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
