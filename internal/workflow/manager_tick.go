package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cubby/internal/logging"
	"cubby/internal/metrics"
	"cubby/internal/queue"
	"cubby/internal/services"
	"cubby/internal/stage"
)

// TickResult describes what a single tick did.
type TickResult struct {
	// Result is one of the metrics.Tick* values.
	Result string
	// Job is the claimed job, set when Result is metrics.TickRan.
	Job *queue.Job
	// Status is the job status written after the handler returned.
	Status queue.JobStatus
	// Err is the handler error, if any. It never aborts the loop.
	Err error
}

// Tick runs at most one job. It returns an error only for bookkeeping
// failures and for a candidate whose kind has no handler; handler failures
// are recorded on the job and reported through TickResult.Err.
func (m *Manager) Tick(ctx context.Context) (TickResult, error) {
	if !m.ticking.CompareAndSwap(false, true) {
		metrics.ObserveTick(metrics.TickSkipped)
		return TickResult{Result: metrics.TickSkipped}, nil
	}
	defer m.ticking.Store(false)

	result, err := m.tick(ctx)
	if err != nil {
		result.Result = metrics.TickError
		m.setLastError(err)
	}
	metrics.ObserveTick(result.Result)
	m.mu.Lock()
	m.lastTick = time.Now()
	m.mu.Unlock()
	return result, err
}

func (m *Manager) tick(ctx context.Context) (TickResult, error) {
	if _, err := m.finalizer.Sweep(ctx, m.window); err != nil {
		return TickResult{}, err
	}
	candidates, err := m.store.ListCandidates(ctx, m.window, m.maxAttempts)
	if err != nil {
		return TickResult{}, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return TickResult{Result: metrics.TickIdle}, nil
	}
	SortByPriority(candidates)
	next := candidates[0]
	if _, ok := m.registry.Lookup(next.Kind); !ok {
		return TickResult{}, fmt.Errorf("%w: %q on job %s", stage.ErrUnknownKind, next.Kind, next.ID)
	}

	job, err := m.store.Claim(ctx, next.ID, m.maxAttempts, m.workerID)
	if err != nil {
		return TickResult{}, fmt.Errorf("claim job %s: %w", next.ID, err)
	}
	if job == nil {
		m.logger.Debug("claim lost to another worker", logging.String(logging.FieldJobID, next.ID))
		return TickResult{Result: metrics.TickConflict}, nil
	}
	metrics.ObserveClaim(string(job.Kind))

	// Past the claim the job belongs to this worker; shutdown must not
	// interrupt the handler or the outcome write.
	return m.runJob(context.WithoutCancel(ctx), job)
}

func (m *Manager) runJob(ctx context.Context, job *queue.Job) (TickResult, error) {
	ctx = services.WithJobID(ctx, job.ID)
	ctx = services.WithAssetID(ctx, job.AssetID)
	ctx = services.WithStage(ctx, string(job.Kind))
	ctx = services.WithWorkerID(ctx, m.workerID)
	logger := logging.WithContext(ctx, m.logger)

	changed, err := m.store.MarkAssetProcessing(ctx, job.AssetID)
	if err != nil {
		return TickResult{}, fmt.Errorf("mark asset processing: %w", err)
	}
	if changed {
		metrics.ObserveAssetTransition(string(queue.AssetProcessing))
	}
	m.setLastJob(job)

	logger.Info("job started",
		logging.Int("attempt", job.Attempts),
		logging.Int("max_attempts", m.maxAttempts),
		logging.String(logging.FieldEventType, "job_start"),
	)
	started := time.Now()
	runErr := m.execute(ctx, job)
	elapsed := time.Since(started)

	status := queue.JobComplete
	var errMsg string
	if runErr != nil {
		errMsg = runErr.Error()
		status = queue.JobPending
		if job.Attempts >= m.maxAttempts {
			status = queue.JobFailed
		}
	}

	if err := m.store.UpdateJobOutcome(ctx, job, status, errMsg); err != nil {
		if errors.Is(err, queue.ErrClaimLost) {
			logging.WarnWithContext(logger, "job outcome discarded; claim no longer held", "claim_lost",
				logging.String("status", string(status)),
				logging.String(logging.FieldErrorHint, "the job was reclaimed after its heartbeat went stale; raise heartbeat_timeout_seconds"),
			)
			return TickResult{Result: metrics.TickRan, Job: job, Err: runErr}, nil
		}
		return TickResult{}, fmt.Errorf("record outcome for job %s: %w", job.ID, err)
	}
	job.Status = status
	m.setLastJob(job)
	metrics.ObserveOutcome(string(job.Kind), string(status), elapsed)

	switch status {
	case queue.JobComplete:
		logger.Info("job completed",
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldEventType, "job_complete"),
		)
	case queue.JobPending:
		logging.WarnWithContext(logger, "job failed; will retry", "job_retry",
			logging.Error(runErr),
			logging.String("error_kind", services.Kind(runErr)),
			logging.String("error_source", services.StageOf(runErr)),
			logging.Int("attempt", job.Attempts),
			logging.Duration("elapsed", elapsed),
			logging.String(logging.FieldErrorHint, "transient failures are retried until max_attempts"),
		)
	default:
		logging.ErrorWithContext(logger, "job failed; attempts exhausted", "job_failed",
			logging.Error(runErr),
			logging.String("error_kind", services.Kind(runErr)),
			logging.String("error_source", services.StageOf(runErr)),
			logging.Int("attempt", job.Attempts),
			logging.String(logging.FieldErrorHint, "inspect last_error and run `cubby jobs retry` once fixed"),
		)
	}
	if runErr != nil {
		m.setLastError(runErr)
	}

	if _, _, err := m.finalizer.Finalize(ctx, job.AssetID); err != nil {
		return TickResult{Result: metrics.TickRan, Job: job, Status: status, Err: runErr}, err
	}
	return TickResult{Result: metrics.TickRan, Job: job, Status: status, Err: runErr}, nil
}

// execute dispatches the job under the job deadline with a heartbeat running.
func (m *Manager) execute(ctx context.Context, job *queue.Job) error {
	runCtx := ctx
	if m.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, m.jobTimeout)
		defer cancel()
	}

	stop := m.startHeartbeat(runCtx, job)
	err := m.registry.Dispatch(runCtx, job.Kind, job.AssetID)
	stop()

	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		err = services.Wrap(services.ErrTimeout, string(job.Kind), "run", fmt.Sprintf("exceeded job timeout %s", m.jobTimeout), err)
	}
	var panicErr *stage.PanicError
	if errors.As(err, &panicErr) {
		logging.ErrorWithContext(logging.WithContext(ctx, m.logger), "stage handler panicked", "stage_panic",
			logging.Any("panic", panicErr.Value),
			logging.String("stack", string(panicErr.Stack)),
			logging.String(logging.FieldErrorHint, "handler bug; the job is retried like any failure"),
		)
	}
	return err
}
