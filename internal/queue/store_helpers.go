package queue

import (
	"database/sql"
	"strings"

	"cubby/internal/textutil"
)

const jobColumns = "id, asset_id, kind, status, attempts, last_error, claim_token, claimed_by, heartbeat_at, created_at, updated_at"

const assetColumns = "id, workspace_id, user_id, filename, storage_path, status, duration_seconds, file_size_bytes, thumbnail_path, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job        Job
		kind       string
		status     string
		lastError  sql.NullString
		claimToken sql.NullString
		claimedBy  sql.NullString
		heartbeat  sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&job.ID,
		&job.AssetID,
		&kind,
		&status,
		&job.Attempts,
		&lastError,
		&claimToken,
		&claimedBy,
		&heartbeat,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.Kind = JobKind(kind)
	job.Status = JobStatus(status)
	job.LastError = lastError.String
	job.ClaimToken = claimToken.String
	job.ClaimedBy = claimedBy.String
	job.HeartbeatAt = parseTime(heartbeat)
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	return &job, nil
}

func scanAsset(scanner rowScanner) (*Asset, error) {
	var (
		asset      Asset
		status     string
		duration   sql.NullFloat64
		thumbnail  sql.NullString
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)
	if err := scanner.Scan(
		&asset.ID,
		&asset.WorkspaceID,
		&asset.UserID,
		&asset.Filename,
		&asset.StoragePath,
		&status,
		&duration,
		&asset.FileSizeBytes,
		&thumbnail,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	asset.Status = AssetStatus(status)
	asset.DurationSeconds = duration.Float64
	asset.ThumbnailPath = thumbnail.String
	asset.CreatedAt = parseTime(createdRaw)
	asset.UpdatedAt = parseTime(updatedRaw)
	return &asset, nil
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	defer rows.Close()
	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// TruncateError trims an error message to MaxErrorLength runes.
func TruncateError(message string) string {
	return textutil.TruncateRunes(strings.TrimSpace(message), MaxErrorLength)
}
