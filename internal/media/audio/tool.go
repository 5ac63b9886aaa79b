package audio

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"cubby/internal/media/ffprobe"
	"cubby/internal/services"
)

// ChunkPattern is the file name pattern handed to the segment muxer.
const ChunkPattern = "chunk_%03d.mp3"

// Tool runs ffmpeg and ffprobe for the media stages.
type Tool struct {
	FFmpeg     string
	FFprobe    string
	SampleRate int
	Bitrate    string
	run        ffprobe.Runner
}

// NewTool returns a Tool using os/exec.
func NewTool(ffmpegBinary, ffprobeBinary string, sampleRate int, bitrate string) *Tool {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if strings.TrimSpace(bitrate) == "" {
		bitrate = "32k"
	}
	return &Tool{
		FFmpeg:     ffmpegBinary,
		FFprobe:    ffprobeBinary,
		SampleRate: sampleRate,
		Bitrate:    bitrate,
		run:        ffprobe.ExecRunner,
	}
}

// WithRunner swaps the command runner.
func (t *Tool) WithRunner(run ffprobe.Runner) *Tool {
	if run != nil {
		t.run = run
	}
	return t
}

// Extract writes a mono MP3 at the configured sample rate and bitrate.
func (t *Tool) Extract(ctx context.Context, src, dst string) error {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(t.SampleRate),
		"-b:a", t.Bitrate,
		"-f", "mp3",
		dst,
	}
	if output, err := t.run(ctx, t.FFmpeg, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "audio", "extract", strings.TrimSpace(string(output)), err)
	}
	return nil
}

// Split cuts src into chunkSeconds long pieces inside outDir and returns the
// chunk paths in playback order.
func (t *Tool) Split(ctx context.Context, src, outDir string, chunkSeconds int) ([]string, error) {
	if chunkSeconds <= 0 {
		return nil, services.Wrap(services.ErrValidation, "audio", "split", fmt.Sprintf("invalid chunk length %ds", chunkSeconds), nil)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create chunk dir: %w", err)
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", src,
		"-f", "segment",
		"-segment_time", strconv.Itoa(chunkSeconds),
		"-reset_timestamps", "1",
		"-c", "copy",
		filepath.Join(outDir, ChunkPattern),
	}
	if output, err := t.run(ctx, t.FFmpeg, args...); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "audio", "split", strings.TrimSpace(string(output)), err)
	}
	return ListChunks(outDir)
}

// ListChunks returns the chunk files in dir sorted by name.
func ListChunks(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read chunk dir: %w", err)
	}
	var chunks []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "chunk_") || !strings.HasSuffix(name, ".mp3") {
			continue
		}
		chunks = append(chunks, filepath.Join(dir, name))
	}
	sort.Strings(chunks)
	if len(chunks) == 0 {
		return nil, services.Wrap(services.ErrExternalTool, "audio", "split", "segment muxer produced no chunks", nil)
	}
	return chunks, nil
}

// GrabFrame writes one JPEG frame taken at atSeconds.
func (t *Tool) GrabFrame(ctx context.Context, src, dst string, atSeconds float64) error {
	if atSeconds < 0 || math.IsNaN(atSeconds) {
		atSeconds = 0
	}
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-ss", strconv.FormatFloat(atSeconds, 'f', 3, 64),
		"-i", src,
		"-frames:v", "1",
		"-q:v", "2",
		dst,
	}
	if output, err := t.run(ctx, t.FFmpeg, args...); err != nil {
		return services.Wrap(services.ErrExternalTool, "thumbnail", "grab frame", strings.TrimSpace(string(output)), err)
	}
	return nil
}

// Probe returns ffprobe metadata for path.
func (t *Tool) Probe(ctx context.Context, path string) (ffprobe.Result, error) {
	result, err := ffprobe.Inspect(ctx, t.run, t.FFprobe, path)
	if err != nil {
		return ffprobe.Result{}, services.Wrap(services.ErrExternalTool, "audio", "probe", filepath.Base(path), err)
	}
	return result, nil
}

// Duration probes path and returns its duration in seconds.
func (t *Tool) Duration(ctx context.Context, path string) (float64, error) {
	result, err := t.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	duration, err := result.Duration()
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, "audio", "probe", fmt.Sprintf("unusable duration for %s", filepath.Base(path)), err)
	}
	return duration, nil
}

// ChunkSeconds sizes segments so each stays under limitBytes:
// floor(limit / bytesPerSecond) - marginSeconds. A non-positive result is a
// validation error.
func ChunkSeconds(sizeBytes int64, durationSeconds float64, limitBytes int64, marginSeconds int) (int, error) {
	if sizeBytes <= 0 || durationSeconds <= 0 || limitBytes <= 0 {
		return 0, services.Wrap(services.ErrValidation, "audio", "chunk size",
			fmt.Sprintf("cannot size chunks (bytes=%d duration=%.3fs limit=%d)", sizeBytes, durationSeconds, limitBytes), nil)
	}
	bytesPerSecond := float64(sizeBytes) / durationSeconds
	seconds := int(math.Floor(float64(limitBytes)/bytesPerSecond)) - marginSeconds
	if seconds <= 0 {
		return 0, services.Wrap(services.ErrValidation, "audio", "chunk size",
			fmt.Sprintf("computed chunk length %ds is not positive (%.0f bytes/s)", seconds, bytesPerSecond), nil)
	}
	return seconds, nil
}
