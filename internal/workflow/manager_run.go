package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/lthibault/jitterbug/v2"

	"cubby/internal/logging"
	"cubby/internal/metrics"
	"cubby/internal/stage"
)

// ErrAlreadyRunning is returned when Run is called on a running Manager.
var ErrAlreadyRunning = errors.New("scheduler already running")

// Run ticks until ctx is cancelled. It ticks again immediately after running
// a job and otherwise waits a jittered poll interval. A candidate with no
// registered handler stops the loop with stage.ErrUnknownKind.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)
	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	ticker := jitterbug.New(m.pollInterval, &jitterbug.Norm{Stdev: m.pollJitter})
	defer ticker.Stop()

	m.logger.Info("scheduler started",
		logging.String(logging.FieldWorkerID, m.workerID),
		logging.Duration("poll_interval", m.pollInterval),
		logging.Int("max_attempts", m.maxAttempts),
		logging.String(logging.FieldEventType, "scheduler_start"),
	)
	defer m.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stop"))

	for {
		if ctx.Err() != nil {
			return nil
		}

		if _, err := m.ReclaimStale(ctx); err != nil && ctx.Err() == nil {
			logging.WarnWithContext(m.logger, "reclaim stale jobs failed; stuck jobs may remain", "reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check job store connectivity"),
			)
		}

		result, err := m.Tick(ctx)
		if err != nil {
			if errors.Is(err, stage.ErrUnknownKind) {
				logging.ErrorWithContext(m.logger, "candidate has no registered handler; stopping", "unknown_kind",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "deploy a worker that registers every job kind"),
				)
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			logging.ErrorWithContext(m.logger, "scheduler tick failed", "tick_failed",
				logging.Error(err),
				logging.Duration("retry_in", m.errorRetry),
				logging.String(logging.FieldErrorHint, "check job store connectivity"),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(m.errorRetry):
			}
			continue
		}
		if result.Result == metrics.TickRan {
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Running reports whether Run is active.
func (m *Manager) Running() bool { return m.running.Load() }
