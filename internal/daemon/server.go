package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"cubby/internal/logging"
	"cubby/internal/metrics"
	"cubby/internal/workflow"
)

const (
	defaultBind             = "127.0.0.1:7488"
	gracefulShutdownTimeout = 5 * time.Second
)

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource supplies the scheduler snapshot for /status.
type StatusSource interface {
	Status(ctx context.Context, withHealth bool) workflow.StatusSummary
}

// Server is the worker's operational HTTP surface.
type Server struct {
	bind   string
	store  Pinger
	status StatusSource
	logger *slog.Logger

	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
}

// NewServer builds the router. An empty bind uses 127.0.0.1:7488.
func NewServer(bind string, store Pinger, status StatusSource, logger *slog.Logger) *Server {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		bind = defaultBind
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Server{bind: bind, store: store, status: status, logger: logger}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/readyz", s.handleReadyz)
	router.Get("/status", s.handleStatus)
	router.Handle("/metrics", metrics.Handler())
	return router
}

// Listen binds the listener without serving. Run calls it when needed.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return err
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or the configured bind before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()
		s.httpServer.SetKeepAlivesEnabled(false)
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", logging.String("address", listener.Addr().String()))
	err := s.httpServer.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, net.ErrClosed) {
		return err
	}
	<-done
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	render.PlainText(w, r, "ok")
}

type readyReply struct {
	Ready bool   `json:"ready"`
	Error string `json:"error,omitempty"`
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		render.Status(r, http.StatusServiceUnavailable)
		render.JSON(w, r, readyReply{Ready: false, Error: err.Error()})
		return
	}
	render.JSON(w, r, readyReply{Ready: true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	withHealth := r.URL.Query().Get("health") == "1"
	render.JSON(w, r, s.status.Status(r.Context(), withHealth))
}
