// Package staging sweeps scratch directories that stage handlers leave in
// the work directory when a worker dies mid-job.
package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cubby/internal/logging"
)

// DefaultMaxAge is how long a scratch directory may sit untouched before the
// sweeper treats it as abandoned.
const DefaultMaxAge = 24 * time.Hour

// scratchPrefixes names the directories stage handlers create with
// os.MkdirTemp. Anything else in the work directory is left alone.
var scratchPrefixes = []string{"transcription-", "thumbnail-"}

// SweepResult lists what a sweep removed and what it failed to remove.
type SweepResult struct {
	Removed []string
	Errors  []SweepError
}

// SweepError pairs a directory path with its removal error.
type SweepError struct {
	Path  string
	Error error
}

// IsScratch reports whether name looks like a stage scratch directory.
func IsScratch(name string) bool {
	for _, prefix := range scratchPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// CleanStale removes scratch directories under workDir whose modification
// time is older than maxAge.
func CleanStale(ctx context.Context, workDir string, maxAge time.Duration, logger *slog.Logger) SweepResult {
	result := SweepResult{}
	if logger == nil {
		logger = logging.NewNop()
	}

	dirs, err := ListDirectories(workDir)
	if err != nil {
		result.Errors = append(result.Errors, SweepError{Path: workDir, Error: err})
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, dir := range dirs {
		if ctx != nil && ctx.Err() != nil {
			break
		}
		if !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, SweepError{Path: dir.Path, Error: err})
			logging.WarnWithContext(logger, "failed to remove stale scratch directory", "scratch_cleanup_failed",
				logging.String("path", dir.Path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.work_dir permissions"),
			)
			continue
		}
		result.Removed = append(result.Removed, dir.Path)
		logger.Info("removed stale scratch directory",
			logging.String("path", dir.Path),
			logging.Duration("age", time.Since(dir.ModTime).Round(time.Second)),
			logging.String(logging.FieldEventType, "scratch_cleanup"),
		)
	}
	return result
}

// DirInfo describes one scratch directory.
type DirInfo struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// ListDirectories returns the scratch directories under workDir. A missing
// or empty workDir yields no entries.
func ListDirectories(workDir string) ([]DirInfo, error) {
	workDir = strings.TrimSpace(workDir)
	if workDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(workDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() || !IsScratch(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		path := filepath.Join(workDir, entry.Name())
		dirs = append(dirs, DirInfo{
			Name:    entry.Name(),
			Path:    path,
			ModTime: info.ModTime(),
			Size:    dirSize(path),
		})
	}
	return dirs, nil
}

// dirSize is best effort; unreadable entries are skipped.
func dirSize(path string) int64 {
	var size int64
	_ = filepath.WalkDir(path, func(_ string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return size
}
