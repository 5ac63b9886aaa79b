package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// RegisterAsset inserts an uploaded asset together with one pending job per
// kind in a single transaction.
func (s *Store) RegisterAsset(ctx context.Context, in NewAsset, kinds ...JobKind) (*Asset, []*Job, error) {
	if strings.TrimSpace(in.Filename) == "" {
		return nil, nil, errors.New("register asset: filename required")
	}
	if strings.TrimSpace(in.StoragePath) == "" {
		return nil, nil, errors.New("register asset: storage path required")
	}
	assetID := strings.TrimSpace(in.ID)
	if assetID == "" {
		assetID = uuid.NewString()
	}
	now := s.timestamp()
	jobIDs := make([]string, 0, len(kinds))

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		jobIDs = jobIDs[:0]
		if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO assets (
            id, workspace_id, user_id, filename, storage_path, status,
            file_size_bytes, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			assetID,
			strings.TrimSpace(in.WorkspaceID),
			strings.TrimSpace(in.UserID),
			strings.TrimSpace(in.Filename),
			strings.TrimSpace(in.StoragePath),
			string(AssetUploaded),
			in.FileSizeBytes,
			now,
			now,
		); err != nil {
			return fmt.Errorf("insert asset: %w", err)
		}
		for _, kind := range kinds {
			id := uuid.NewString()
			if err := insertJob(ctx, tx, s, id, assetID, kind, now); err != nil {
				return err
			}
			jobIDs = append(jobIDs, id)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("register asset: %w", err)
	}

	asset, err := s.GetAsset(ctx, assetID)
	if err != nil {
		return nil, nil, err
	}
	jobs := make([]*Job, 0, len(jobIDs))
	for _, id := range jobIDs {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		jobs = append(jobs, job)
	}
	return asset, jobs, nil
}

// GetAsset fetches an asset by id.
func (s *Store) GetAsset(ctx context.Context, id string) (*Asset, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), s.q("SELECT "+assetColumns+" FROM assets WHERE id = ?"), id)
	asset, err := scanAsset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return asset, nil
}

// ListAssets returns assets newest first, optionally filtered by status.
func (s *Store) ListAssets(ctx context.Context, limit int, statuses ...AssetStatus) ([]*Asset, error) {
	query := "SELECT " + assetColumns + " FROM assets"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at DESC, id"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()
	var assets []*Asset
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// ListUnsettledAssets returns ids of uploaded or processing assets whose jobs
// have all concluded. Normally the finalizer settles these as the last job
// finishes; a row here means that write never landed.
func (s *Store) ListUnsettledAssets(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT a.id FROM assets a
        WHERE a.status IN (?, ?)
          AND EXISTS (SELECT 1 FROM jobs j WHERE j.asset_id = a.id)
          AND NOT EXISTS (SELECT 1 FROM jobs j WHERE j.asset_id = a.id AND j.status IN (?, ?))
        ORDER BY a.updated_at, a.id`
	args := []any{string(AssetUploaded), string(AssetProcessing), string(JobPending), string(JobRunning)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list unsettled assets: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unsettled asset: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateAssetStatus writes status only when it differs from the stored value.
// changed reports whether a row was modified.
func (s *Store) UpdateAssetStatus(ctx context.Context, assetID string, status AssetStatus) (bool, error) {
	n, err := s.execAffected(ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE id = ? AND status <> ?`,
		string(status), s.timestamp(), assetID, string(status),
	)
	if err != nil {
		return false, fmt.Errorf("update asset status: %w", err)
	}
	return n > 0, nil
}

// MarkAssetProcessing moves an uploaded asset to processing. Assets in any
// other status are left alone.
func (s *Store) MarkAssetProcessing(ctx context.Context, assetID string) (bool, error) {
	n, err := s.execAffected(ctx,
		`UPDATE assets SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(AssetProcessing), s.timestamp(), assetID, string(AssetUploaded),
	)
	if err != nil {
		return false, fmt.Errorf("mark asset processing: %w", err)
	}
	return n > 0, nil
}

// SetAssetDuration records the probed media duration.
func (s *Store) SetAssetDuration(ctx context.Context, assetID string, seconds float64) error {
	n, err := s.execAffected(ctx,
		`UPDATE assets SET duration_seconds = ?, updated_at = ? WHERE id = ?`,
		seconds, s.timestamp(), assetID,
	)
	if err != nil {
		return fmt.Errorf("set asset duration: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	return nil
}

// SetThumbnailPath records the media store locator of the asset thumbnail.
func (s *Store) SetThumbnailPath(ctx context.Context, assetID, locator string) error {
	n, err := s.execAffected(ctx,
		`UPDATE assets SET thumbnail_path = ?, updated_at = ? WHERE id = ?`,
		nullableString(locator), s.timestamp(), assetID,
	)
	if err != nil {
		return fmt.Errorf("set thumbnail path: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("asset %s: %w", assetID, ErrNotFound)
	}
	return nil
}
