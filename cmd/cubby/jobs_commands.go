package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cubby/internal/config"
	"cubby/internal/queue"
	"cubby/internal/workflow"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage processing jobs",
	}
	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsEnqueueCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var (
		statuses []string
		assetID  string
		kind     string
		limit    int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in scheduling order",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := queue.JobFilter{AssetID: strings.TrimSpace(assetID), Limit: limit}
			for _, raw := range statuses {
				status, err := queue.ParseJobStatus(raw)
				if err != nil {
					return err
				}
				filter.Status = append(filter.Status, status)
			}
			if strings.TrimSpace(kind) != "" {
				parsed, err := queue.ParseJobKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = parsed
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.ListJobs(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				fmt.Fprint(out, renderJobsTable(out, jobs))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (pending, running, complete, failed)")
	cmd.Flags().StringVarP(&assetID, "asset", "a", "", "Only jobs for this asset")
	cmd.Flags().StringVarP(&kind, "kind", "k", "", "Only jobs of this kind")
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum jobs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newJobsEnqueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <asset-id> <kind>",
		Short: "Queue another job for an existing asset",
		Long:  "Queues a new pending job. An asset that already finished is reopened to processing.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := queue.ParseJobKind(args[1])
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				job, err := store.EnqueueJob(cmd.Context(), args[0], kind)
				if errors.Is(err, queue.ErrNotFound) {
					return fmt.Errorf("asset %s not found", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s for asset %s\n", job.Kind, job.ID, job.AssetID)
				return nil
			})
		},
	}
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Reset failed jobs to pending",
		Long:  "Resets the named failed jobs, or every failed job when none are named, with a fresh attempt budget.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(_ *config.Config, store *queue.Store) error {
				n, err := store.RetryFailed(cmd.Context(), args...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if n == 0 {
					fmt.Fprintln(out, "No failed jobs matched")
					return nil
				}
				fmt.Fprintf(out, "Reset %d failed job(s) to pending\n", n)
				return nil
			})
		},
	}
}

func renderJobsTable(out io.Writer, jobs []*queue.Job) string {
	sorted := append([]*queue.Job(nil), jobs...)
	workflow.SortByPriority(sorted)
	rows := make([][]string, 0, len(sorted))
	for _, job := range sorted {
		rows = append(rows, []string{
			job.ID,
			job.AssetID,
			string(job.Kind),
			string(job.Status),
			formatAttempts(job.Attempts),
			formatTime(job.UpdatedAt),
			truncateCell(job.LastError, 60),
		})
	}
	return renderTable(out,
		[]string{"ID", "Asset", "Kind", "Status", "Attempts", "Updated", "Last error"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func truncateCell(value string, limit int) string {
	value = strings.Join(strings.Fields(value), " ")
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
