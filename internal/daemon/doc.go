// Package daemon runs the long-lived worker process.
//
// It holds a flock-based single-instance lock per log directory, runs the
// scheduler loop and, when enabled, a small operational HTTP surface
// (/healthz, /readyz, /status, /metrics) under one errgroup so either one
// failing stops the other. Cancelling the context lets the in-flight tick
// finish before Run returns.
package daemon
