package stage

import (
	"context"
	"log/slog"

	"cubby/internal/logging"
	"cubby/internal/queue"
)

// Noop completes immediately. It stands in for kinds whose processing lives
// outside the worker (indexing is handled by the search service) or has not
// been built yet.
type Noop struct {
	Kind   queue.JobKind
	Logger *slog.Logger
}

// NewNoop returns a Noop handler for kind.
func NewNoop(kind queue.JobKind, logger *slog.Logger) *Noop {
	return &Noop{Kind: kind, Logger: logging.NewComponentLogger(logger, "stage")}
}

func (n *Noop) Run(ctx context.Context, assetID string) error {
	logging.WithContext(ctx, n.Logger).Info("no-op stage completed",
		logging.String(logging.FieldStage, string(n.Kind)),
		logging.String(logging.FieldAssetID, assetID),
		logging.String(logging.FieldEventType, "stage_noop"),
	)
	return nil
}

func (n *Noop) HealthCheck(context.Context) Health {
	return Report(string(n.Kind), nil)
}
