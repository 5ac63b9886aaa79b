// Package metrics owns the Prometheus collectors exported by the worker.
//
// Collectors are registered on the default registry at init time so the
// daemon's /metrics handler and the package tests share one view. The
// StoreInterceptor wraps database drivers through sqlmw and records per
// operation latency for the job store.
package metrics
