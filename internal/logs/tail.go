package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cubby/internal/config"
	"cubby/internal/logging"
)

// DefaultPollInterval is how often Follow checks the file for new lines.
const DefaultPollInterval = 250 * time.Millisecond

// WorkerLogPath returns the log file cubbyd writes under paths.log_dir.
func WorkerLogPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "cubbyd.log")
}

// Filter keeps lines that mention the given asset or job id. Both the console
// (key=value) and JSON encodings are recognized.
type Filter struct {
	AssetID string
	JobID   string
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	return fieldMatches(line, logging.FieldAssetID, f.AssetID) && fieldMatches(line, logging.FieldJobID, f.JobID)
}

func fieldMatches(line, key, value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return true
	}
	return strings.Contains(line, key+"="+value) || strings.Contains(line, `"`+key+`":"`+value+`"`)
}

// Tail returns the last limit lines that pass filter, plus the file offset to
// resume following from. A missing file yields no lines and offset 0.
func Tail(path string, limit int, filter Filter) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	offset, err := scanLines(file, func(line string) {
		if !filter.Match(line) {
			return
		}
		ring[idx] = line
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	})
	if err != nil {
		return nil, 0, err
	}

	lines := make([]string, 0, count)
	start := 0
	if count == limit {
		start = idx
	}
	for i := 0; i < count; i++ {
		lines = append(lines, ring[(start+i)%limit])
	}
	return lines, offset, nil
}

// Follow polls path from offset and hands every new line that passes filter
// to emit until ctx is done. A truncated or rotated file restarts from the
// beginning.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, filter Filter, emit func(string)) error {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		next, err := readFrom(path, offset, filter, emit)
		if err != nil {
			return err
		}
		offset = next
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, filter Filter, emit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	end, err := scanLines(file, func(line string) {
		if filter.Match(line) {
			emit(line)
		}
	})
	if err != nil {
		return offset, err
	}
	return offset + end, nil
}

// scanLines feeds complete lines to fn and returns the number of bytes
// consumed. A trailing partial line is left for the next read.
func scanLines(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return consumed, nil
		}
		if err != nil {
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		fn(strings.TrimRight(line, "\r\n"))
	}
}
