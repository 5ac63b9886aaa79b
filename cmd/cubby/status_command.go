package main

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"cubby/internal/config"
	"cubby/internal/daemonctl"
	"cubby/internal/queue"
	"cubby/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var (
		withHealth bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show worker state and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if cfg.Server.Enabled {
				summary, err := daemonctl.NewClient(cfg.Server.Bind).Status(cmd.Context(), withHealth)
				switch {
				case err == nil:
					if asJSON {
						return writeJSON(cmd, summary)
					}
					writeSummary(out, summary, colorize)
					return nil
				case !errors.Is(err, daemonctl.ErrUnreachable):
					return err
				}
			}

			workers, err := daemonctl.RunningWorkers(cfg)
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				counts, err := store.CountJobsByStatus(cmd.Context())
				if err != nil {
					return err
				}
				summary := &workflow.StatusSummary{Running: workers > 0, JobCounts: counts}
				if asJSON {
					return writeJSON(cmd, summary)
				}
				writeSummary(out, summary, colorize)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&withHealth, "health", false, "Ask the worker to run stage health checks")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func writeSummary(out io.Writer, summary *workflow.StatusSummary, colorize bool) {
	for _, line := range renderSectionHeader("Worker", colorize) {
		fmt.Fprintln(out, line)
	}
	if summary.Running {
		detail := summary.WorkerID
		if detail == "" {
			detail = "lock held locally"
		}
		fmt.Fprintln(out, renderStatusLine("cubbyd", statusOK, "running "+detail, colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("cubbyd", statusWarn, "not running", colorize))
	}
	if !summary.LastTick.IsZero() {
		fmt.Fprintln(out, renderStatusLine("Last tick", statusInfo, formatTime(summary.LastTick), colorize))
	}
	if summary.LastJob != nil {
		job := summary.LastJob
		fmt.Fprintln(out, renderStatusLine("Last job", statusInfo, fmt.Sprintf("%s %s (%s)", job.Kind, job.ID, job.Status), colorize))
	}
	if summary.LastError != "" {
		fmt.Fprintln(out, renderStatusLine("Last error", statusError, summary.LastError, colorize))
	}
	for _, h := range summary.StageHealth {
		kind := statusOK
		if !h.Ready {
			kind = statusError
		}
		fmt.Fprintln(out, renderStatusLine(h.Name, kind, h.Detail, colorize))
	}

	fmt.Fprintln(out)
	statuses := []queue.JobStatus{queue.JobPending, queue.JobRunning, queue.JobComplete, queue.JobFailed}
	for status := range summary.JobCounts {
		if !slices.Contains(statuses, status) {
			statuses = append(statuses, status)
		}
	}
	rows := make([][]string, 0, len(statuses))
	for _, status := range statuses {
		rows = append(rows, []string{string(status), fmt.Sprint(summary.JobCounts[status])})
	}
	fmt.Fprint(out, renderTable(out, []string{"Status", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight}))
}
