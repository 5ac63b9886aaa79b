package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cubby/internal/logging"
	"cubby/internal/metrics"
	"cubby/internal/queue"
)

// startHeartbeat refreshes the job's heartbeat until the returned stop
// function is called. A zero interval disables it.
func (m *Manager) startHeartbeat(ctx context.Context, job *queue.Job) func() {
	if m.heartbeatInterval <= 0 {
		return func() {}
	}
	hbCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go m.heartbeatLoop(hbCtx, &wg, job)
	return func() {
		cancel()
		wg.Wait()
	}
}

func (m *Manager) heartbeatLoop(ctx context.Context, wg *sync.WaitGroup, job *queue.Job) {
	defer wg.Done()
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "scheduler-heartbeat")))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := m.store.UpdateHeartbeat(ctx, job.ID, job.ClaimToken)
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				return
			case errors.Is(err, queue.ErrClaimLost):
				logging.WarnWithContext(logger, "heartbeat stopped; claim no longer held", "heartbeat_claim_lost",
					logging.String(logging.FieldErrorHint, "the job was reclaimed as stale; its outcome will be discarded"),
				)
				return
			default:
				logging.WarnWithContext(logger, "heartbeat update failed", "heartbeat_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check job store connectivity"),
				)
			}
		}
	}
}

// ReclaimStale returns running jobs with a stale heartbeat to pending, or to
// failed when their attempt budget is spent, and finalizes their assets.
func (m *Manager) ReclaimStale(ctx context.Context) (int, error) {
	if m.heartbeatTimeout <= 0 {
		return 0, nil
	}
	stale, err := m.store.ListStaleRunning(ctx, m.heartbeatTimeout)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}
	reclaimed := 0
	for _, job := range stale {
		reason := fmt.Sprintf("heartbeat from %s older than %s; worker presumed dead", job.ClaimedBy, m.heartbeatTimeout)
		status, err := m.store.ReclaimJob(ctx, job, m.maxAttempts, reason)
		if errors.Is(err, queue.ErrClaimLost) {
			continue
		}
		if err != nil {
			return reclaimed, fmt.Errorf("reclaim job %s: %w", job.ID, err)
		}
		reclaimed++
		metrics.ObserveReclaim()
		logging.WarnWithContext(m.logger, "reclaimed stale job", "job_reclaimed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldAssetID, job.AssetID),
			logging.String("claimed_by", job.ClaimedBy),
			logging.String("status", string(status)),
			logging.String(logging.FieldErrorHint, "a worker stopped heartbeating; check for crashed processes"),
		)
		if _, _, err := m.finalizer.Finalize(ctx, job.AssetID); err != nil {
			return reclaimed, err
		}
	}
	if reclaimed > 0 {
		if err := m.notifier.NotifyJobsReclaimed(ctx, reclaimed); err != nil {
			m.logger.Warn("reclaim notification failed", logging.Error(err),
				logging.String(logging.FieldEventType, "notification_failed"),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"))
		}
	}
	return reclaimed, nil
}
