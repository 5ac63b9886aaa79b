package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

func newJSONHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return attr
			}
			switch attr.Key {
			case slog.TimeKey:
				return slog.String("ts", attr.Value.Time().UTC().Format(time.RFC3339Nano))
			case slog.LevelKey:
				return slog.String("level", strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					return slog.String(slog.SourceKey, shortSource(src.File, src.Line))
				}
			}
			return attr
		},
	})
}

// consoleHandler writes one line per record:
//
//	2026-01-02T15:04:05Z INFO scheduler[transcription]: job completed job_id=... k=v
//
// component and stage are lifted out of the attributes into the prefix.
// Attributes bound with WithAttrs are rendered once and reused.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Leveler
	addSource bool

	component string
	stage     string
	bound     []byte
	prefix    string
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	component, stage := h.component, h.stage
	var tail []byte
	r.Attrs(func(a slog.Attr) bool {
		tail = h.appendAttr(tail, h.prefix, a, &component, &stage)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	line := make([]byte, 0, 96+len(h.bound)+len(tail))
	line = ts.UTC().AppendFormat(line, time.RFC3339)
	line = append(line, ' ')
	line = append(line, levelLabel(r.Level)...)
	line = append(line, ' ')
	if component != "" || stage != "" {
		line = append(line, component...)
		if stage != "" {
			line = append(line, '[')
			line = append(line, stage...)
			line = append(line, ']')
		}
		line = append(line, ": "...)
	}
	if msg := strings.TrimSpace(r.Message); msg != "" {
		line = append(line, msg...)
	} else {
		line = append(line, "(no message)"...)
	}
	if h.addSource && r.PC != 0 {
		if src := r.Source(); src != nil {
			line = append(line, " ["...)
			line = append(line, shortSource(src.File, src.Line)...)
			line = append(line, ']')
		}
	}
	line = append(line, h.bound...)
	line = append(line, tail...)
	line = append(line, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line)
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.bound = append([]byte(nil), h.bound...)
	for _, a := range attrs {
		next.bound = next.appendAttr(next.bound, h.prefix, a, &next.component, &next.stage)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

// appendAttr renders a as " key=value", descending into groups. Top-level
// component and stage attributes fill the prefix slots instead, first one wins.
func (h *consoleHandler) appendAttr(buf []byte, prefix string, a slog.Attr, component, stage *string) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		inner := prefix
		if a.Key != "" {
			inner = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = h.appendAttr(buf, inner, ga, component, stage)
		}
		return buf
	}
	if prefix == "" {
		switch a.Key {
		case FieldComponent:
			if *component == "" {
				*component = valueString(a.Value)
			}
			return buf
		case FieldStage:
			if *stage == "" {
				*stage = valueString(a.Value)
			}
			return buf
		}
	}
	if a.Key == "" {
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	return appendValue(buf, a.Value)
}

func valueString(v slog.Value) string {
	if v.Kind() == slog.KindString {
		return v.String()
	}
	return fmt.Sprint(v.Any())
}

func appendValue(buf []byte, v slog.Value) []byte {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.AppendBool(buf, v.Bool())
	case slog.KindInt64:
		return strconv.AppendInt(buf, v.Int64(), 10)
	case slog.KindUint64:
		return strconv.AppendUint(buf, v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.AppendFloat(buf, v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return append(buf, v.Duration().String()...)
	case slog.KindTime:
		return v.Time().UTC().AppendFormat(buf, time.RFC3339)
	}
	var s string
	if err, ok := v.Any().(error); ok {
		s = err.Error()
	} else {
		s = valueString(v)
	}
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.AppendQuote(buf, s)
	}
	return append(buf, s...)
}

func shortSource(file string, line int) string {
	return filepath.Base(file) + ":" + strconv.Itoa(line)
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
