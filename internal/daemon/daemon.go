package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"cubby/internal/config"
	"cubby/internal/logging"
	"cubby/internal/queue"
	"cubby/internal/workflow"
)

// ErrInstanceRunning means another process already runs under this worker id.
var ErrInstanceRunning = errors.New("a cubbyd worker with this id is already running")

const (
	lockPrefix = "cubbyd-"
	lockSuffix = ".lock"
)

// Daemon ties the scheduler and the HTTP surface to one process lifetime.
type Daemon struct {
	cfg     *config.Config
	store   *queue.Store
	manager *workflow.Manager
	logger  *slog.Logger
	server  *Server

	lockPath string
	lock     *flock.Flock
}

// New constructs a daemon. The HTTP server is created only when
// server.enabled is set.
func New(cfg *config.Config, store *queue.Store, manager *workflow.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || manager == nil {
		return nil, errors.New("daemon requires config, store, and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	lockPath := LockPath(cfg, manager.WorkerID())
	d := &Daemon{
		cfg:      cfg,
		store:    store,
		manager:  manager,
		logger:   logger,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	if cfg.Server.Enabled {
		d.server = NewServer(cfg.Server.Bind, store, manager, logger)
	}
	return d, nil
}

// LockPath returns the lock file held by the worker with workerID. Each
// worker on a host holds its own, so several may share one config and store.
func LockPath(cfg *config.Config, workerID string) string {
	return filepath.Join(cfg.Paths.LogDir, lockPrefix+lockName(workerID)+lockSuffix)
}

// LockPattern matches every worker lock file under cfg's log directory.
func LockPattern(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, lockPrefix+"*"+lockSuffix)
}

func lockName(workerID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, workerID)
}

// Server returns the HTTP server, or nil when disabled.
func (d *Daemon) Server() *Server { return d.server }

// Run holds the worker lock and blocks until ctx is cancelled or the
// scheduler stops with an error.
func (d *Daemon) Run(ctx context.Context) error {
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", d.lockPath, err)
	}
	if !ok {
		return fmt.Errorf("%w (lock %s)", ErrInstanceRunning, d.lockPath)
	}
	defer func() {
		if err := d.lock.Unlock(); err != nil {
			logging.WarnWithContext(d.logger, "failed to release worker lock", "lock_release_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove "+d.lockPath+" if no worker is running"),
			)
			return
		}
		// Worker ids change per process, so released locks are not reused.
		_ = os.Remove(d.lockPath)
	}()

	d.logger.Info("cubbyd started",
		logging.String(logging.FieldWorkerID, d.manager.WorkerID()),
		logging.String("lock", d.lockPath),
		logging.Bool("http", d.server != nil),
		logging.String(logging.FieldEventType, "daemon_start"),
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return d.manager.Run(groupCtx)
	})
	if d.server != nil {
		group.Go(func() error {
			return d.server.Run(groupCtx)
		})
	}
	err = group.Wait()

	d.logger.Info("cubbyd stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	return err
}
