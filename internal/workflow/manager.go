package workflow

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"cubby/internal/config"
	"cubby/internal/logging"
	"cubby/internal/notifications"
	"cubby/internal/queue"
	"cubby/internal/stage"
)

// Manager schedules and runs jobs for one worker process.
type Manager struct {
	store     *queue.Store
	registry  *stage.Registry
	finalizer *Finalizer
	notifier  notifications.Service
	logger    *slog.Logger
	workerID  string

	pollInterval      time.Duration
	pollJitter        time.Duration
	errorRetry        time.Duration
	maxAttempts       int
	window            int
	jobTimeout        time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	ticking atomic.Bool
	running atomic.Bool

	mu        sync.RWMutex
	lastErr   error
	lastJob   *queue.Job
	lastTick  time.Time
	startedAt time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithWorkerID sets the id recorded on claimed jobs.
func WithWorkerID(id string) Option {
	return func(m *Manager) {
		if id != "" {
			m.workerID = id
		}
	}
}

// WithNotifier routes asset outcomes and stale reclaims to n.
func WithNotifier(n notifications.Service) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// NewManager builds a Manager from the scheduler settings in cfg.
func NewManager(cfg *config.Config, store *queue.Store, registry *stage.Registry, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	sched := cfg.Scheduler
	m := &Manager{
		store:             store,
		registry:          registry,
		logger:            logging.NewComponentLogger(logger, "scheduler"),
		workerID:          DefaultWorkerID(),
		notifier:          notifications.NewService(config.Notifications{}),
		pollInterval:      sched.PollInterval(),
		pollJitter:        sched.PollJitter(),
		errorRetry:        sched.ErrorRetryInterval(),
		maxAttempts:       sched.MaxAttempts,
		window:            sched.CandidateWindow,
		jobTimeout:        sched.JobTimeout(),
		heartbeatInterval: sched.HeartbeatInterval(),
		heartbeatTimeout:  sched.HeartbeatTimeout(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.maxAttempts <= 0 {
		m.maxAttempts = 3
	}
	if m.window <= 0 {
		m.window = 20
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 5 * time.Second
	}
	if m.errorRetry <= 0 {
		m.errorRetry = m.pollInterval
	}
	m.finalizer = NewFinalizer(store, m.logger)
	m.finalizer.notifier = m.notifier
	return m
}

// WorkerID returns the id this manager claims jobs under.
func (m *Manager) WorkerID() string { return m.workerID }

// DefaultWorkerID combines the host name, pid and a random suffix.
func DefaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + strconv.Itoa(os.Getpid()) + "-" + uuid.NewString()[:8]
}
