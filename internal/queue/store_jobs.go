package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func insertJob(ctx context.Context, tx *sql.Tx, s *Store, id, assetID string, kind JobKind, now string) error {
	if _, err := ParseJobKind(string(kind)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO jobs (
            id, asset_id, kind, status, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?)`),
		id, assetID, string(kind), string(JobPending), now, now,
	); err != nil {
		return fmt.Errorf("insert %s job: %w", kind, err)
	}
	return nil
}

// EnqueueJob adds a pending job for an existing asset. An asset that had
// already settled as ready or failed returns to processing.
func (s *Store) EnqueueJob(ctx context.Context, assetID string, kind JobKind) (*Job, error) {
	id := uuid.NewString()
	now := s.timestamp()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM assets WHERE id = ?`), assetID).Scan(&exists); err != nil {
			return fmt.Errorf("lookup asset: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
		}
		if err := insertJob(ctx, tx, s, id, assetID, kind, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE assets SET status = ?, updated_at = ?
            WHERE id = ? AND status IN (?, ?)`),
			string(AssetProcessing), now, assetID, string(AssetReady), string(AssetFailed),
		); err != nil {
			return fmt.Errorf("reopen asset: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}
	return s.GetJob(ctx, id)
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), s.q("SELECT "+jobColumns+" FROM jobs WHERE id = ?"), id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns jobs ordered by creation time, oldest first.
func (s *Store) ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error) {
	var (
		clauses []string
		args    []any
	)
	if len(filter.Status) > 0 {
		clauses = append(clauses, "status IN ("+makePlaceholders(len(filter.Status))+")")
		for _, status := range filter.Status {
			args = append(args, string(status))
		}
	}
	if id := strings.TrimSpace(filter.AssetID); id != "" {
		clauses = append(clauses, "asset_id = ?")
		args = append(args, id)
	}
	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	query := "SELECT " + jobColumns + " FROM jobs"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan jobs: %w", err)
	}
	return jobs, nil
}

// ListJobsForAsset returns every job of an asset.
func (s *Store) ListJobsForAsset(ctx context.Context, assetID string) ([]*Job, error) {
	return s.ListJobs(ctx, JobFilter{AssetID: assetID})
}

// CountJobsByStatus aggregates jobs per status.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[JobStatus]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()
	counts := make(map[JobStatus]int)
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan job count: %w", err)
		}
		counts[JobStatus(status)] = count
	}
	return counts, rows.Err()
}

// ListCandidates returns up to limit claimable jobs, oldest first.
func (s *Store) ListCandidates(ctx context.Context, limit, maxAttempts int) ([]*Job, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), s.q(
		"SELECT "+jobColumns+` FROM jobs
        WHERE status = ? AND attempts < ?
        ORDER BY created_at, id
        LIMIT ?`),
		string(JobPending), maxAttempts, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	return jobs, nil
}

// Claim atomically moves a pending job to running, increments its attempt
// count and stamps a fresh claim token. A nil job with a nil error means
// another worker won the claim or the attempt budget is spent.
func (s *Store) Claim(ctx context.Context, jobID string, maxAttempts int, workerID string) (*Job, error) {
	ctx = ensureContext(ctx)
	now := s.timestamp()
	beat, err := s.heartbeatTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	token := uuid.NewString()
	var claimed *Job
	err = retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, s.q(`UPDATE jobs
        SET status = ?, attempts = attempts + 1, updated_at = ?,
            claim_token = ?, claimed_by = ?, heartbeat_at = ?
        WHERE id = ? AND status = ? AND attempts < ?
        RETURNING `+jobColumns),
			string(JobRunning), now, token, nullableString(workerID), formatTime(beat),
			jobID, string(JobPending), maxAttempts,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return err
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return claimed, nil
}

// UpdateJobOutcome records the result of a run. The write only lands while the
// job is still running under the caller's claim token; otherwise ErrClaimLost
// is returned and nothing changes.
func (s *Store) UpdateJobOutcome(ctx context.Context, job *Job, status JobStatus, errMsg string) error {
	if job == nil {
		return errors.New("update job outcome: job required")
	}
	switch status {
	case JobComplete, JobPending, JobFailed:
	default:
		return fmt.Errorf("update job outcome: invalid target status %q", status)
	}
	var lastError any
	if status != JobComplete {
		lastError = nullableString(TruncateError(errMsg))
	}
	n, err := s.execAffected(ctx,
		`UPDATE jobs
        SET status = ?, last_error = ?, updated_at = ?, claim_token = NULL, heartbeat_at = NULL
        WHERE id = ? AND status = ? AND claim_token = ?`,
		string(status), lastError, s.timestamp(),
		job.ID, string(JobRunning), job.ClaimToken,
	)
	if err != nil {
		return fmt.Errorf("update job outcome: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", job.ID, ErrClaimLost)
	}
	return nil
}

// UpdateHeartbeat refreshes heartbeat_at for a job still held under token.
func (s *Store) UpdateHeartbeat(ctx context.Context, jobID, token string) error {
	beat, err := s.heartbeatTime(ctx)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	n, err := s.execAffected(ctx,
		`UPDATE jobs SET heartbeat_at = ?, updated_at = ? WHERE id = ? AND status = ? AND claim_token = ?`,
		formatTime(beat), s.timestamp(), jobID, string(JobRunning), token,
	)
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrClaimLost)
	}
	return nil
}

// ListStaleRunning returns running jobs whose last heartbeat is older than
// olderThan, measured against the database clock.
func (s *Store) ListStaleRunning(ctx context.Context, olderThan time.Duration) ([]*Job, error) {
	now, err := s.heartbeatTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), s.q(
		"SELECT "+jobColumns+` FROM jobs
        WHERE status = ? AND COALESCE(heartbeat_at, updated_at) < ?
        ORDER BY updated_at, id`),
		string(JobRunning), formatTime(now.Add(-olderThan)),
	)
	if err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, fmt.Errorf("scan stale jobs: %w", err)
	}
	return jobs, nil
}

// ReclaimJob returns a stale running job to pending, or to failed when its
// attempts are spent. The update is fenced on the job's claim token so a
// heartbeat that raced in keeps the job with its owner.
func (s *Store) ReclaimJob(ctx context.Context, job *Job, maxAttempts int, reason string) (JobStatus, error) {
	if job == nil {
		return "", errors.New("reclaim job: job required")
	}
	ctx = ensureContext(ctx)
	var status string
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(ctx, s.q(`UPDATE jobs
        SET status = CASE WHEN attempts >= ? THEN ? ELSE ? END,
            last_error = ?, updated_at = ?, claim_token = NULL, heartbeat_at = NULL
        WHERE id = ? AND status = ? AND claim_token = ?
        RETURNING status`),
			maxAttempts, string(JobFailed), string(JobPending),
			nullableString(TruncateError(reason)), s.timestamp(),
			job.ID, string(JobRunning), job.ClaimToken,
		)
		return row.Scan(&status)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("job %s: %w", job.ID, ErrClaimLost)
	}
	if err != nil {
		return "", fmt.Errorf("reclaim job: %w", err)
	}
	return JobStatus(status), nil
}

// RetryFailed moves failed jobs back to pending with a fresh attempt budget
// and reopens their assets. With no ids every failed job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	ctx = ensureContext(ctx)
	now := s.timestamp()
	var affected int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		scope := "status = ?"
		args := []any{string(JobFailed)}
		if len(ids) > 0 {
			scope += " AND id IN (" + makePlaceholders(len(ids)) + ")"
			for _, id := range ids {
				args = append(args, id)
			}
		}

		assetArgs := append([]any{string(AssetProcessing), now}, args...)
		if _, err := tx.ExecContext(ctx, s.q(`UPDATE assets SET status = ?, updated_at = ?
            WHERE id IN (SELECT asset_id FROM jobs WHERE `+scope+`)`), assetArgs...); err != nil {
			return fmt.Errorf("reopen assets: %w", err)
		}

		jobArgs := append([]any{string(JobPending), now}, args...)
		res, err := tx.ExecContext(ctx, s.q(`UPDATE jobs
            SET status = ?, attempts = 0, last_error = NULL, claim_token = NULL,
                claimed_by = NULL, heartbeat_at = NULL, updated_at = ?
            WHERE `+scope), jobArgs...)
		if err != nil {
			return fmt.Errorf("reset jobs: %w", err)
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return affected, nil
}
