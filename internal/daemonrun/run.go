// Package daemonrun assembles the worker process: logger, preflight, store,
// media store, stage registry, scheduler and daemon.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cubby/internal/config"
	"cubby/internal/daemon"
	"cubby/internal/deps"
	"cubby/internal/logging"
	"cubby/internal/mediastore"
	"cubby/internal/notifications"
	"cubby/internal/preflight"
	"cubby/internal/queue"
	"cubby/internal/staging"
	"cubby/internal/workflow"
)

// Options configures the worker process.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// SkipPreflight starts the worker even when local checks fail.
	SkipPreflight bool
}

// Run starts the worker and blocks until SIGINT/SIGTERM or a fatal error.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if level := strings.TrimSpace(opts.LogLevel); level != "" {
		logCfg.Logging.Level = level
	}
	logger, err := logging.NewFromConfig(&logCfg, "cubbyd")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	logDependencySnapshot(logger, cfg)
	staging.CleanStale(signalCtx, cfg.Paths.WorkDir, staging.DefaultMaxAge, logger)

	if !opts.SkipPreflight {
		results := preflight.RunLocal(cfg)
		for _, r := range preflight.Failures(results) {
			logging.ErrorWithContext(logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "run `cubby doctor` for the full report"),
			)
		}
		if err := preflight.Err(results); err != nil {
			return err
		}
	}

	store, err := queue.OpenContext(signalCtx, cfg, queue.WithLogger(logger))
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	media, err := mediastore.New(cfg.Storage)
	if err != nil {
		return err
	}

	registry, err := BuildRegistry(cfg, store, media, logger)
	if err != nil {
		return fmt.Errorf("build stage registry: %w", err)
	}

	manager := workflow.NewManager(cfg, store, registry, logger,
		workflow.WithNotifier(notifications.NewService(cfg.Notifications)))
	d, err := daemon.New(cfg, store, manager, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}

	logger.Info("cubbyd starting",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String(logging.FieldWorkerID, manager.WorkerID()),
		logging.String("media_store", media.Name()),
		logging.String("database_driver", cfg.Database.Driver),
	)
	if err := d.Run(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "cubbyd stopped with error", "daemon_failed", logging.Error(err))
		return err
	}
	logger.Info("cubbyd shut down", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, st := range deps.CheckBinaries(preflight.Requirements(cfg)) {
		key := strings.ToLower(st.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", st.Available()),
			logging.String(key+"_path", st.Path),
		)
	}
	attrs = append(attrs,
		logging.String("transcription_provider", cfg.Transcription.Provider),
		logging.Bool("transcription_key_present", strings.TrimSpace(cfg.Transcription.APIKey) != ""),
		logging.Bool("labeling_key_present", strings.TrimSpace(cfg.Labeling.APIKey) != ""),
		logging.Bool("notifications_enabled", cfg.Notifications.NtfyTopic != ""),
		logging.Bool("whisperx_cuda", cfg.Transcription.WhisperXCUDAEnabled),
		logging.String("work_dir", cfg.Paths.WorkDir),
		logging.Int("pid", os.Getpid()),
	)
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
