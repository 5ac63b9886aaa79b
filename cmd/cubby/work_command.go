package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cubby/internal/config"
	"cubby/internal/daemonrun"
	"cubby/internal/logging"
	"cubby/internal/mediastore"
	"cubby/internal/notifications"
	"cubby/internal/metrics"
	"cubby/internal/queue"
	"cubby/internal/workflow"
)

func newWorkCommand(ctx *commandContext) *cobra.Command {
	var (
		once     bool
		logLevel string
		opts     daemonrun.Options
	)
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run the scheduler in the foreground",
		Long: "Without --once this runs the same worker as cubbyd.\n" +
			"With --once it reclaims stale jobs, runs a single scheduler tick and exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !once {
				opts.LogLevel = logLevel
				return daemonrun.Run(cmd.Context(), cfg, opts)
			}
			return ctx.withStore(cmd.Context(), func(cfg *config.Config, store *queue.Store) error {
				return runOnce(cmd, cfg, store, logLevel)
			})
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run one scheduler tick and exit")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.SkipPreflight, "skip-preflight", false, "Start even when local preflight checks fail")
	return cmd
}

func runOnce(cmd *cobra.Command, cfg *config.Config, store *queue.Store, logLevel string) error {
	level := cfg.Logging.Level
	if strings.TrimSpace(logLevel) != "" {
		level = logLevel
	}
	logger, err := logging.New(logging.Options{Format: cfg.Logging.Format, Level: level, Writer: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	media, err := mediastore.New(cfg.Storage)
	if err != nil {
		return err
	}
	registry, err := daemonrun.BuildRegistry(cfg, store, media, logger)
	if err != nil {
		return err
	}
	manager := workflow.NewManager(cfg, store, registry, logger,
		workflow.WithNotifier(notifications.NewService(cfg.Notifications)))

	out := cmd.OutOrStdout()
	reclaimed, err := manager.ReclaimStale(cmd.Context())
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		fmt.Fprintf(out, "Reclaimed %d stale job(s)\n", reclaimed)
	}

	result, err := manager.Tick(cmd.Context())
	if err != nil {
		return err
	}
	switch result.Result {
	case metrics.TickIdle:
		fmt.Fprintln(out, "No eligible jobs")
	case metrics.TickConflict:
		fmt.Fprintln(out, "Another worker claimed the job first")
	case metrics.TickRan:
		fmt.Fprintf(out, "Ran %s job %s for asset %s: %s\n", result.Job.Kind, result.Job.ID, result.Job.AssetID, result.Status)
		if result.Err != nil {
			fmt.Fprintf(out, "  error: %v\n", result.Err)
		}
	default:
		fmt.Fprintf(out, "Tick result: %s\n", result.Result)
	}
	return nil
}
