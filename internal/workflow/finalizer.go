package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"cubby/internal/config"
	"cubby/internal/logging"
	"cubby/internal/metrics"
	"cubby/internal/notifications"
	"cubby/internal/queue"
)

// DeriveAssetStatus returns the status an asset should have given its jobs.
// ok is false when the jobs do not settle the asset: none exist, or some are
// still pending or running without a failure being final yet.
func DeriveAssetStatus(jobs []*queue.Job) (queue.AssetStatus, bool) {
	if len(jobs) == 0 {
		return "", false
	}
	var complete, failed, open int
	for _, job := range jobs {
		switch job.Status {
		case queue.JobComplete:
			complete++
		case queue.JobFailed:
			failed++
		default:
			open++
		}
	}
	switch {
	case complete == len(jobs):
		return queue.AssetReady, true
	case failed > 0 && open == 0:
		return queue.AssetFailed, true
	default:
		return "", false
	}
}

// Finalizer settles an asset's status after one of its jobs concludes.
type Finalizer struct {
	store    *queue.Store
	logger   *slog.Logger
	notifier notifications.Service
}

// NewFinalizer returns a Finalizer backed by store.
func NewFinalizer(store *queue.Store, logger *slog.Logger) *Finalizer {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finalizer{store: store, logger: logger, notifier: notifications.NewService(config.Notifications{})}
}

// Finalize recomputes the asset status. The write only happens when the
// status changes, so calling it repeatedly is harmless.
func (f *Finalizer) Finalize(ctx context.Context, assetID string) (queue.AssetStatus, bool, error) {
	jobs, err := f.store.ListJobsForAsset(ctx, assetID)
	if err != nil {
		return "", false, fmt.Errorf("finalize %s: %w", assetID, err)
	}
	status, ok := DeriveAssetStatus(jobs)
	if !ok {
		return "", false, nil
	}
	changed, err := f.store.UpdateAssetStatus(ctx, assetID, status)
	if err != nil {
		return "", false, fmt.Errorf("finalize %s: %w", assetID, err)
	}
	if changed {
		metrics.ObserveAssetTransition(string(status))
		logging.WithContext(ctx, f.logger).Info("asset finalized",
			logging.String(logging.FieldAssetID, assetID),
			logging.String("status", string(status)),
			logging.String(logging.FieldEventType, "asset_finalized"),
		)
		f.notify(ctx, assetID, status, jobs)
	}
	return status, changed, nil
}

// Sweep finalizes up to limit assets whose jobs have all concluded but whose
// status was never settled, for instance because the store failed right after
// the last outcome was written. It returns how many assets changed status.
func (f *Finalizer) Sweep(ctx context.Context, limit int) (int, error) {
	ids, err := f.store.ListUnsettledAssets(ctx, limit)
	if err != nil {
		return 0, fmt.Errorf("sweep unsettled assets: %w", err)
	}
	settled := 0
	for _, id := range ids {
		_, changed, err := f.Finalize(ctx, id)
		if err != nil {
			return settled, err
		}
		if changed {
			settled++
		}
	}
	if settled > 0 {
		logging.WarnWithContext(f.logger, "settled assets left unfinalized", "asset_sweep",
			logging.Int("count", settled),
			logging.String(logging.FieldErrorHint, "an earlier finalize failed; check job store connectivity"),
		)
	}
	return settled, nil
}

// notify pushes the settled status. Delivery failures are logged only.
func (f *Finalizer) notify(ctx context.Context, assetID string, status queue.AssetStatus, jobs []*queue.Job) {
	asset, err := f.store.GetAsset(ctx, assetID)
	if err != nil {
		f.logger.Debug("notification skipped", logging.String(logging.FieldAssetID, assetID), logging.Error(err))
		return
	}
	if status == queue.AssetReady {
		err = f.notifier.NotifyAssetReady(ctx, asset)
	} else {
		err = f.notifier.NotifyAssetFailed(ctx, asset, lastFailure(jobs))
	}
	if err != nil {
		logging.WarnWithContext(f.logger, "asset notification failed", "notification_failed",
			logging.String(logging.FieldAssetID, assetID),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		)
	}
}

func lastFailure(jobs []*queue.Job) string {
	var latest *queue.Job
	for _, job := range jobs {
		if job.Status != queue.JobFailed {
			continue
		}
		if latest == nil || job.UpdatedAt.After(latest.UpdatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return ""
	}
	return string(latest.Kind) + ": " + latest.LastError
}
