package logging

import (
	"log/slog"
	"slices"
	"time"
)

type Attr = slog.Attr

func Any(key string, value any) Attr { return slog.Any(key, value) }

func Bool(key string, value bool) Attr { return slog.Bool(key, value) }

func Duration(key string, value time.Duration) Attr { return slog.Duration(key, value) }

func Float64(key string, value float64) Attr { return slog.Float64(key, value) }

func Int(key string, value int) Attr { return slog.Int(key, value) }

func String(key string, value string) Attr { return slog.String(key, value) }

func Error(err error) Attr {
	if err == nil {
		return slog.String("error", "<nil>")
	}
	return slog.Any("error", err)
}

// Args adapts attrs to the variadic ...any form slog.Logger methods take.
func Args(attrs ...Attr) []any {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return args
}

func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// NewComponentLogger tags every line from logger with component. A nil
// logger discards.
func NewComponentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return logger.With(String(FieldComponent, component))
}

// eventHints are the default operator hints for warn and error events that
// do not carry their own.
var eventHints = map[string]string{
	"job_failed":          "cubby jobs list --status failed shows last_error",
	"job_retry":           "the job returns to pending and runs again on a later tick",
	"job_reclaimed":       "a worker stopped heartbeating; check for crashed cubbyd processes",
	"claim_lost":          "another worker reclaimed the job; check scheduler.heartbeat_timeout_seconds",
	"heartbeat_failed":    "check database connectivity",
	"tick_failed":         "check database connectivity",
	"unknown_kind":        "register a handler for the kind or remove its jobs",
	"notification_failed": "check notifications.ntfy_topic",
}

// WarnWithContext logs a warning that always carries event_type and error_hint.
func WarnWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Warn(msg, Args(withEventDefaults(attrs, eventType)...)...)
}

// ErrorWithContext is WarnWithContext at error level.
func ErrorWithContext(logger *slog.Logger, msg, eventType string, attrs ...Attr) {
	if logger == nil {
		return
	}
	logger.Error(msg, Args(withEventDefaults(attrs, eventType)...)...)
}

func withEventDefaults(attrs []Attr, eventType string) []Attr {
	has := func(key string) bool {
		return slices.ContainsFunc(attrs, func(a Attr) bool { return a.Key == key })
	}
	if !has(FieldEventType) {
		attrs = append(attrs, String(FieldEventType, eventType))
	}
	if !has(FieldErrorHint) {
		hint, ok := eventHints[eventType]
		if !ok {
			hint = "check cubby logs for details"
		}
		attrs = append(attrs, String(FieldErrorHint, hint))
	}
	return attrs
}
