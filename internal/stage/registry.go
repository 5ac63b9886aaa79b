package stage

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"slices"
	"sort"
	"strings"
	"sync"

	"cubby/internal/queue"
)

var (
	// ErrUnknownKind means a job kind has no registered handler.
	ErrUnknownKind = errors.New("no handler registered for job kind")
	// ErrPanic marks an error recovered from a handler panic.
	ErrPanic = errors.New("stage handler panicked")
)

// PanicError carries the recovered value and stack of a handler panic.
type PanicError struct {
	Kind  queue.JobKind
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("%s handler panicked: %v", e.Kind, e.Value)
}

func (e *PanicError) Unwrap() error { return ErrPanic }

// Registry maps job kinds to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[queue.JobKind]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[queue.JobKind]Handler)}
}

// Register binds handler to kind. Registering a kind twice is an error.
func (r *Registry) Register(kind queue.JobKind, handler Handler) error {
	if handler == nil {
		return fmt.Errorf("register %s: nil handler", kind)
	}
	if _, err := queue.ParseJobKind(string(kind)); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[kind]; exists {
		return fmt.Errorf("register %s: handler already registered", kind)
	}
	r.handlers[kind] = handler
	return nil
}

// MustRegister is Register that panics on error. Used while wiring at boot.
func (r *Registry) MustRegister(kind queue.JobKind, handler Handler) {
	if err := r.Register(kind, handler); err != nil {
		panic(err)
	}
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind queue.JobKind) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, ok := r.handlers[kind]
	return handler, ok
}

// Kinds lists the registered kinds in name order.
func (r *Registry) Kinds() []queue.JobKind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]queue.JobKind, 0, len(r.handlers))
	for kind := range r.handlers {
		kinds = append(kinds, kind)
	}
	slices.Sort(kinds)
	return kinds
}

// Validate reports every kind in required that lacks a handler.
func (r *Registry) Validate(required ...queue.JobKind) error {
	var missing []string
	for _, kind := range required {
		if _, ok := r.Lookup(kind); !ok {
			missing = append(missing, string(kind))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("%w: %s", ErrUnknownKind, strings.Join(missing, ", "))
}

// Dispatch runs the handler for kind. A panic inside the handler is returned
// as a *PanicError.
func (r *Registry) Dispatch(ctx context.Context, kind queue.JobKind, assetID string) (err error) {
	handler, ok := r.Lookup(kind)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			err = &PanicError{Kind: kind, Value: recovered, Stack: debug.Stack()}
		}
	}()
	return handler.Run(ctx, assetID)
}

// Health collects readiness from handlers that implement HealthChecker.
func (r *Registry) Health(ctx context.Context) []Health {
	var results []Health
	for _, kind := range r.Kinds() {
		handler, _ := r.Lookup(kind)
		checker, ok := handler.(HealthChecker)
		if !ok {
			continue
		}
		results = append(results, checker.HealthCheck(ctx))
	}
	return results
}
