package queue

import (
	"fmt"
	"strings"
	"time"
)

// JobKind names the stage a job runs.
type JobKind string

const (
	KindTranscription       JobKind = "transcription"
	KindLabelGeneration     JobKind = "label_generation"
	KindThumbnailGeneration JobKind = "thumbnail_generation"
	KindIndexing            JobKind = "indexing"
	KindProxyGeneration     JobKind = "proxy_generation"
)

var allKinds = []JobKind{
	KindTranscription,
	KindLabelGeneration,
	KindThumbnailGeneration,
	KindIndexing,
	KindProxyGeneration,
}

// JobKinds returns every known job kind.
func JobKinds() []JobKind {
	return append([]JobKind(nil), allKinds...)
}

// ParseJobKind validates a kind name.
func ParseJobKind(value string) (JobKind, error) {
	normalized := JobKind(strings.ToLower(strings.TrimSpace(value)))
	for _, kind := range allKinds {
		if kind == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown job kind %q", value)
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobComplete JobStatus = "complete"
	JobFailed   JobStatus = "failed"
)

// ParseJobStatus validates a job status name.
func ParseJobStatus(value string) (JobStatus, error) {
	switch status := JobStatus(strings.ToLower(strings.TrimSpace(value))); status {
	case JobPending, JobRunning, JobComplete, JobFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown job status %q", value)
	}
}

// IsTerminal reports whether no further transitions happen without operator action.
func (s JobStatus) IsTerminal() bool {
	return s == JobComplete || s == JobFailed
}

// AssetStatus is derived from the asset's jobs once any exist.
type AssetStatus string

const (
	AssetUploaded   AssetStatus = "uploaded"
	AssetProcessing AssetStatus = "processing"
	AssetReady      AssetStatus = "ready"
	AssetFailed     AssetStatus = "failed"
)

// MaxErrorLength bounds LastError in runes.
const MaxErrorLength = 2000

// Job is a unit of work against one asset.
type Job struct {
	ID          string    `json:"id"`
	AssetID     string    `json:"asset_id"`
	Kind        JobKind   `json:"kind"`
	Status      JobStatus `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	ClaimToken  string    `json:"-"`
	ClaimedBy   string    `json:"claimed_by,omitempty"`
	HeartbeatAt time.Time `json:"heartbeat_at,omitzero"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Asset is an uploaded media file.
type Asset struct {
	ID              string      `json:"id"`
	WorkspaceID     string      `json:"workspace_id"`
	UserID          string      `json:"user_id,omitempty"`
	Filename        string      `json:"filename"`
	StoragePath     string      `json:"storage_path"`
	Status          AssetStatus `json:"status"`
	DurationSeconds float64     `json:"duration_seconds,omitempty"`
	FileSizeBytes   int64       `json:"file_size_bytes,omitempty"`
	ThumbnailPath   string      `json:"thumbnail_path,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Transcript is the per-asset header owning the segments.
type Transcript struct {
	ID        string
	AssetID   string
	Language  string
	FullText  string
	CreatedAt time.Time
}

// Segment is one timed transcript line.
type Segment struct {
	ID            string
	TranscriptID  string
	AssetID       string
	Seq           int
	StartSeconds  float64
	EndSeconds    float64
	StartTimecode string
	EndTimecode   string
	Text          string
}

// Label is a named time range produced by label generation.
type Label struct {
	ID            string
	AssetID       string
	WorkspaceID   string
	Name          string
	Confidence    float64
	StartSeconds  float64
	EndSeconds    float64
	StartTimecode string
	EndTimecode   string
	CreatedAt     time.Time
}

// NewAsset describes an asset to register.
type NewAsset struct {
	ID            string
	WorkspaceID   string
	UserID        string
	Filename      string
	StoragePath   string
	FileSizeBytes int64
}

// JobFilter narrows ListJobs.
type JobFilter struct {
	Status  []JobStatus
	AssetID string
	Kind    JobKind
	Limit   int
}
