package services

import "context"

type contextKey string

const (
	jobIDKey     contextKey = "job_id"
	assetIDKey   contextKey = "asset_id"
	stageKey     contextKey = "stage"
	workerIDKey  contextKey = "worker_id"
	requestIDKey contextKey = "request_id"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if v, ok := ctx.Value(key).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithJobID annotates context with the job identifier.
func WithJobID(ctx context.Context, id string) context.Context {
	return withString(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, jobIDKey)
}

// WithAssetID annotates context with the media asset identifier.
func WithAssetID(ctx context.Context, id string) context.Context {
	return withString(ctx, assetIDKey, id)
}

// AssetIDFromContext extracts the media asset identifier if present.
func AssetIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, assetIDKey)
}

// WithStage annotates context with the job kind being executed.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithWorkerID annotates context with the claiming worker's identity.
func WithWorkerID(ctx context.Context, id string) context.Context {
	return withString(ctx, workerIDKey, id)
}

// WorkerIDFromContext returns the worker identity if present.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, workerIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}
