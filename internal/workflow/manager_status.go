package workflow

import (
	"context"
	"time"

	"cubby/internal/logging"
	"cubby/internal/queue"
	"cubby/internal/stage"
)

// StatusSummary is a point-in-time view of the worker.
type StatusSummary struct {
	WorkerID    string                  `json:"worker_id"`
	Running     bool                    `json:"running"`
	StartedAt   time.Time               `json:"started_at,omitzero"`
	LastTick    time.Time               `json:"last_tick,omitzero"`
	LastError   string                  `json:"last_error,omitempty"`
	LastJob     *queue.Job              `json:"last_job,omitempty"`
	JobCounts   map[queue.JobStatus]int `json:"job_counts"`
	StageHealth []stage.Health          `json:"stage_health,omitempty"`
}

// Status returns the latest scheduler information. Stage health checks are
// only run when withHealth is set because they may call remote services.
func (m *Manager) Status(ctx context.Context, withHealth bool) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{
		WorkerID:  m.workerID,
		Running:   m.running.Load(),
		StartedAt: m.startedAt,
		LastTick:  m.lastTick,
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		job := *m.lastJob
		summary.LastJob = &job
	}
	m.mu.RUnlock()

	counts, err := m.store.CountJobsByStatus(ctx)
	if err != nil {
		m.logger.Warn("failed to read job counts",
			logging.Error(err),
			logging.String(logging.FieldEventType, "status_counts_failed"),
			logging.String(logging.FieldErrorHint, "check job store connectivity"),
		)
	}
	summary.JobCounts = counts
	if withHealth {
		summary.StageHealth = m.registry.Health(ctx)
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		snapshot := *job
		m.lastJob = &snapshot
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}
