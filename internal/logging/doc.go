// Package logging assembles structured slog loggers and formatting helpers used
// across the worker and CLI.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so stage code automatically tags log lines
// with job IDs, asset IDs, stages, and correlation IDs. The package also
// provides a no-op logger for tests and an adapter for the migration runner.
package logging
