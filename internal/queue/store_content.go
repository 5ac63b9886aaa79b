package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"cubby/internal/textutil"
)

// DeleteTranscript removes the asset's transcript header and every segment.
func (s *Store) DeleteTranscript(ctx context.Context, assetID string) error {
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM transcript_segments WHERE asset_id = ?`), assetID); err != nil {
			return fmt.Errorf("delete segments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM transcripts WHERE asset_id = ?`), assetID); err != nil {
			return fmt.Errorf("delete transcript: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete transcript: %w", err)
	}
	return nil
}

// CreateTranscript inserts the transcript header for an asset.
func (s *Store) CreateTranscript(ctx context.Context, assetID, language, fullText string) (*Transcript, error) {
	transcript := &Transcript{
		ID:       uuid.NewString(),
		AssetID:  assetID,
		Language: strings.TrimSpace(language),
		FullText: fullText,
	}
	now := s.now()
	if _, err := s.execWithRetry(ctx,
		`INSERT INTO transcripts (id, asset_id, language, full_text, created_at) VALUES (?, ?, ?, ?, ?)`,
		transcript.ID, assetID, nullableString(transcript.Language), fullText, formatTime(now),
	); err != nil {
		return nil, fmt.Errorf("create transcript: %w", err)
	}
	transcript.CreatedAt = now
	return transcript, nil
}

// GetTranscript fetches the header for an asset.
func (s *Store) GetTranscript(ctx context.Context, assetID string) (*Transcript, error) {
	var (
		transcript Transcript
		language   sql.NullString
		fullText   sql.NullString
		createdRaw sql.NullString
	)
	err := s.db.QueryRowContext(ensureContext(ctx), s.q(
		`SELECT id, asset_id, language, full_text, created_at FROM transcripts WHERE asset_id = ?`), assetID,
	).Scan(&transcript.ID, &transcript.AssetID, &language, &fullText, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transcript for %s: %w", assetID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transcript: %w", err)
	}
	transcript.Language = language.String
	transcript.FullText = fullText.String
	transcript.CreatedAt = parseTime(createdRaw)
	return &transcript, nil
}

// InsertSegments writes one batch of segments in a single transaction. Missing
// ids and timecodes are filled in.
func (s *Store) InsertSegments(ctx context.Context, transcriptID, assetID string, segments []Segment) error {
	if len(segments) == 0 {
		return nil
	}
	ctx = ensureContext(ctx)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO transcript_segments (
            id, transcript_id, asset_id, seq, start_seconds, end_seconds,
            start_timecode, end_timecode, text
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, seg := range segments {
			id := seg.ID
			if id == "" {
				id = uuid.NewString()
			}
			startTC := seg.StartTimecode
			if startTC == "" {
				startTC = textutil.FormatTimecode(seg.StartSeconds)
			}
			endTC := seg.EndTimecode
			if endTC == "" {
				endTC = textutil.FormatTimecode(seg.EndSeconds)
			}
			if _, err := stmt.ExecContext(ctx,
				id, transcriptID, assetID, seg.Seq, seg.StartSeconds, seg.EndSeconds,
				startTC, endTC, seg.Text,
			); err != nil {
				return fmt.Errorf("segment %d: %w", seg.Seq, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert segments: %w", err)
	}
	return nil
}

// ListSegments returns an asset's segments ordered by start time.
func (s *Store) ListSegments(ctx context.Context, assetID string) ([]Segment, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), s.q(`SELECT
            id, transcript_id, asset_id, seq, start_seconds, end_seconds,
            start_timecode, end_timecode, text
        FROM transcript_segments WHERE asset_id = ?
        ORDER BY start_seconds, seq`), assetID)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()
	var segments []Segment
	for rows.Next() {
		var seg Segment
		if err := rows.Scan(
			&seg.ID, &seg.TranscriptID, &seg.AssetID, &seg.Seq,
			&seg.StartSeconds, &seg.EndSeconds,
			&seg.StartTimecode, &seg.EndTimecode, &seg.Text,
		); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// ReplaceLabels deletes the asset's labels and inserts labels in one transaction.
func (s *Store) ReplaceLabels(ctx context.Context, assetID string, labels []Label) error {
	ctx = ensureContext(ctx)
	now := s.timestamp()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM labels WHERE asset_id = ?`), assetID); err != nil {
			return fmt.Errorf("delete labels: %w", err)
		}
		if len(labels) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, s.q(`INSERT INTO labels (
            id, asset_id, workspace_id, name, confidence, start_seconds, end_seconds,
            start_timecode, end_timecode, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, label := range labels {
			id := label.ID
			if id == "" {
				id = uuid.NewString()
			}
			if _, err := stmt.ExecContext(ctx,
				id, assetID, label.WorkspaceID, label.Name, label.Confidence,
				label.StartSeconds, label.EndSeconds,
				textutil.FormatTimecode(label.StartSeconds), textutil.FormatTimecode(label.EndSeconds),
				now,
			); err != nil {
				return fmt.Errorf("insert label %q: %w", label.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace labels: %w", err)
	}
	return nil
}

// ListLabels returns an asset's labels ordered by start time.
func (s *Store) ListLabels(ctx context.Context, assetID string) ([]Label, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), s.q(`SELECT
            id, asset_id, workspace_id, name, confidence, start_seconds, end_seconds,
            start_timecode, end_timecode, created_at
        FROM labels WHERE asset_id = ?
        ORDER BY start_seconds, name`), assetID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()
	var labels []Label
	for rows.Next() {
		var (
			label      Label
			createdRaw sql.NullString
		)
		if err := rows.Scan(
			&label.ID, &label.AssetID, &label.WorkspaceID, &label.Name, &label.Confidence,
			&label.StartSeconds, &label.EndSeconds,
			&label.StartTimecode, &label.EndTimecode, &createdRaw,
		); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		label.CreatedAt = parseTime(createdRaw)
		labels = append(labels, label)
	}
	return labels, rows.Err()
}
