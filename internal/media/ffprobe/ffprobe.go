package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Result holds the duration entries ffprobe reports for a file.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

type Format struct {
	Duration string `json:"duration"`
}

// ErrNoDuration is returned when neither the container nor any stream
// reports a usable duration.
var ErrNoDuration = errors.New("ffprobe: no duration reported")

// Runner executes a command and returns its combined output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs the command through os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

var probeArgs = []string{
	"-v", "error", "-hide_banner",
	"-show_entries", "format=duration:stream=codec_type,duration",
	"-of", "json",
}

// Inspect runs binary (default "ffprobe") against path through run.
func Inspect(ctx context.Context, run Runner, binary, path string) (Result, error) {
	if run == nil {
		run = ExecRunner
	}
	if binary = strings.TrimSpace(binary); binary == "" {
		binary = "ffprobe"
	}
	if path = strings.TrimSpace(path); path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	args := append(append([]string(nil), probeArgs...), "--", path)
	output, err := run(ctx, binary, args...)
	if err != nil {
		return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}
	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// Duration returns the container duration in seconds. When the container
// omits it, the longest stream duration is used.
func (r Result) Duration() (float64, error) {
	if raw := strings.TrimSpace(r.Format.Duration); raw != "" && raw != "N/A" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil || d < 0 {
			return 0, fmt.Errorf("ffprobe: bad container duration %q", raw)
		}
		return d, nil
	}
	longest := -1.0
	for _, stream := range r.Streams {
		d, err := strconv.ParseFloat(strings.TrimSpace(stream.Duration), 64)
		if err == nil && d > longest {
			longest = d
		}
	}
	if longest < 0 {
		return 0, ErrNoDuration
	}
	return longest, nil
}
