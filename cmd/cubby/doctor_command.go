package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"cubby/internal/config"
	"cubby/internal/logging"
	"cubby/internal/preflight"
	"cubby/internal/queue"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, directories, API keys and the job store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			results := preflight.RunLocal(cfg)
			results = append(results, checkStore(cmd.Context(), cfg))
			writeSection(out, "Local", results, colorize)

			if remote {
				remoteResults := preflight.RunRemote(cmd.Context(), cfg)
				writeSection(out, "Remote", remoteResults, colorize)
				results = append(results, remoteResults...)
			}

			failed := preflight.Failures(results)
			fmt.Fprintln(out)
			if len(failed) == 0 {
				fmt.Fprintln(out, renderStatusLine("Summary", statusOK, "all checks passed", colorize))
				return nil
			}
			fmt.Fprintln(out, renderStatusLine("Summary", statusError, fmt.Sprintf("%d check(s) failed", len(failed)), colorize))
			return preflight.Err(results)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "Also call the LLM, transcription and media store endpoints")
	return cmd
}

func checkStore(ctx context.Context, cfg *config.Config) preflight.Result {
	name := fmt.Sprintf("Job store (%s)", cfg.Database.Driver)
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := queue.OpenContext(checkCtx, cfg, queue.WithLogger(logging.NewNop()))
	if err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	if err := store.Ping(checkCtx); err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	version, err := store.SchemaVersion(checkCtx)
	if err != nil {
		return preflight.Result{Name: name, Detail: err.Error()}
	}
	return preflight.Result{Name: name, Passed: true, Detail: fmt.Sprintf("schema version %d", version)}
}

func writeSection(out io.Writer, title string, results []preflight.Result, colorize bool) {
	for _, line := range renderSectionHeader(title, colorize) {
		fmt.Fprintln(out, line)
	}
	for _, r := range results {
		kind := statusOK
		switch {
		case r.Passed:
		case r.Optional:
			kind = statusWarn
		default:
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
}
