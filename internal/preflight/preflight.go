package preflight

import (
	"context"
	"fmt"
	"strings"

	"cubby/internal/config"
	"cubby/internal/services"
)

// MinWorkDirFreeBytes is the free space required under paths.work_dir.
const MinWorkDirFreeBytes uint64 = 1 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunLocal runs the checks that need no network access. cubbyd refuses to
// start when any required one fails.
func RunLocal(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := CheckBinaries(cfg)
	results = append(results, CheckWorkDir("Work directory", cfg.Paths.WorkDir, MinWorkDirFreeBytes))
	results = append(results, CheckScratch(cfg.Paths.WorkDir))
	if cfg.Transcription.Provider != config.ProviderWhisperX {
		results = append(results, CheckAPIKey("Transcription API key", cfg.Transcription.APIKey))
	}
	results = append(results, CheckAPIKey("Labeling API key", cfg.Labeling.APIKey))
	return results
}

// RunRemote issues one health request per external service.
func RunRemote(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{CheckMediaStore(ctx, cfg.Storage)}
	if cfg.Transcription.Provider != config.ProviderWhisperX {
		results = append(results, CheckWhisper(ctx, cfg.Transcription))
	}
	results = append(results, CheckLLM(ctx, cfg.Labeling))
	return results
}

// Failures returns the required checks that did not pass.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Optional {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err summarizes required failures as a configuration error, or nil.
func Err(results []Result) error {
	failed := Failures(results)
	if len(failed) == 0 {
		return nil
	}
	parts := make([]string, len(failed))
	for i, r := range failed {
		parts[i] = fmt.Sprintf("%s: %s", r.Name, r.Detail)
	}
	return services.Wrap(services.ErrConfiguration, "preflight", "", strings.Join(parts, "; "), nil)
}
