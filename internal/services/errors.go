package services

import (
	"context"
	"errors"
	"strings"
)

// Markers classify failures. Every stage failure is retried while attempts
// remain, so the marker only feeds log fields, metric labels and CLI output.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Error is a classified failure raised inside a stage or service.
type Error struct {
	Marker  error
	Stage   string
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Marker.Error())
	b.WriteString(": ")
	wrote := false
	for _, part := range []string{e.Stage, e.Op, e.Message} {
		if part == "" {
			continue
		}
		if wrote {
			b.WriteString(": ")
		}
		b.WriteString(part)
		wrote = true
	}
	if !wrote {
		b.WriteString("service failure")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the marker and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

// Wrap tags err with marker (ErrTransient when nil) and stage context.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:  marker,
		Stage:   strings.TrimSpace(stage),
		Op:      strings.TrimSpace(operation),
		Message: strings.TrimSpace(message),
		Err:     err,
	}
}

// Kind names the marker carried by err.
func Kind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
}

// StageOf returns the stage recorded on the outermost *Error in err's chain.
func StageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
