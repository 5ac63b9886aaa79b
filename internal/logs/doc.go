// Package logs reads the worker log file for `cubby logs`: the last N lines,
// an optional asset or job filter, and a polling follow mode.
package logs
