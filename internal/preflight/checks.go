package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"cubby/internal/config"
	"cubby/internal/deps"
	"cubby/internal/mediastore"
	"cubby/internal/services/llm"
	"cubby/internal/services/retry"
	"cubby/internal/services/whisper"
	"cubby/internal/staging"
)

// Requirements lists the binaries the configured stages shell out to.
func Requirements(cfg *config.Config) []deps.Requirement {
	reqs := []deps.Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Required for audio extraction, chunking and thumbnails"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Required for duration probing"},
	}
	if cfg.Transcription.Provider == config.ProviderWhisperX {
		reqs = append(reqs, deps.Requirement{Name: "uvx", Command: "uvx", Description: "Required for local WhisperX transcription"})
	}
	return reqs
}

// CheckBinaries resolves every requirement on PATH.
func CheckBinaries(cfg *config.Config) []Result {
	statuses := deps.CheckBinaries(Requirements(cfg))
	results := make([]Result, len(statuses))
	for i, st := range statuses {
		detail := st.Path
		if !st.Available() {
			detail = st.Detail
		}
		results[i] = Result{Name: st.Name, Passed: st.Available(), Optional: st.Optional, Detail: detail}
	}
	return results
}

// CheckWorkDir creates the directory if needed and verifies it is writable
// with at least minFree bytes available.
func CheckWorkDir(name, path string, minFree uint64) Result {
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: create: %v)", path, err)}
	}
	info, err := os.Stat(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s free, need %s)", path, humanBytes(free), humanBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok, %s free)", path, humanBytes(free))}
}

// CheckAPIKey only verifies presence.
func CheckAPIKey(name, key string) Result {
	if strings.TrimSpace(key) == "" {
		return Result{Name: name, Detail: "missing"}
	}
	return Result{Name: name, Passed: true, Detail: "present"}
}

// CheckLLM verifies that the chat model is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt.
func CheckLLM(ctx context.Context, cfg config.Labeling) Result {
	const name = "Labeling LLM"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckWhisper verifies the transcription endpoint accepts the key.
func CheckWhisper(ctx context.Context, cfg config.Transcription) Result {
	const name = "Transcription API"
	if strings.TrimSpace(cfg.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := whisper.NewClient(whisper.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
	}, whisper.WithRetryPolicy(retry.Policy{MaxAttempts: 1}))
	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckMediaStore builds the configured backend and pings it.
func CheckMediaStore(ctx context.Context, cfg config.Storage) Result {
	name := "Media store"
	store, err := mediastore.New(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	name = fmt.Sprintf("Media store (%s)", store.Name())
	pinger, ok := store.(mediastore.Pinger)
	if !ok {
		return Result{Name: name, Passed: true, Detail: "configured"}
	}
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := pinger.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

func summarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (service unreachable)"
	}
	return err.Error()
}

// CheckScratch reports leftover stage scratch directories. It never fails;
// cubbyd sweeps abandoned ones at startup.
func CheckScratch(workDir string) Result {
	name := "Scratch directories"
	dirs, err := staging.ListDirectories(workDir)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: err.Error()}
	}
	if len(dirs) == 0 {
		return Result{Name: name, Passed: true, Optional: true, Detail: "none"}
	}
	var total int64
	for _, dir := range dirs {
		total += dir.Size
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%d left (%s)", len(dirs), humanBytes(uint64(total)))}
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
