// Package notifications pushes asset outcomes to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the scheduler can call it unconditionally.
package notifications
