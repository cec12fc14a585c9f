package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// LogCallback is called when a new log entry is written.
// Used to publish log events without creating import cycles.
type LogCallback func(entry LogEntry)

// BufferHandler is a slog.Handler that writes to the global ring buffer
// and invokes the registered callback for each entry. The buffer and
// callback are resolved at handle time so handlers created before
// Initialize still participate.
type BufferHandler struct {
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewBufferHandler creates a handler that writes to the log ring buffer.
func NewBufferHandler(level slog.Leveler) *BufferHandler {
	return &BufferHandler{level: level}
}

// Enabled implements slog.Handler.
func (h *BufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle implements slog.Handler.
func (h *BufferHandler) Handle(_ context.Context, r slog.Record) error {
	mutex.RLock()
	buffer := logBuffer
	callback := logCallback
	mutex.RUnlock()

	if buffer == nil && callback == nil {
		return nil
	}

	attrs := make(map[string]any)
	module := "app"

	for _, a := range h.attrs {
		if a.Key == "module" {
			module = a.Value.String()
		} else {
			flattenAttr(attrs, h.groups, a)
		}
	}

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "module" {
			module = a.Value.String()
		} else {
			flattenAttr(attrs, h.groups, a)
		}
		return true
	})

	entry := LogEntry{
		Timestamp:  r.Time,
		Level:      levelToString(r.Level),
		Module:     module,
		Message:    r.Message,
		Attributes: attrs,
	}

	if buffer != nil {
		buffer.Write(entry)
	}
	if callback != nil {
		callback(entry)
	}
	return nil
}

// flattenAttr extracts a slog.Attr into a flat map with dot-notation keys.
func flattenAttr(attrs map[string]any, groups []string, a slog.Attr) {
	key := a.Key
	if len(groups) > 0 {
		key = strings.Join(groups, ".") + "." + key
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		for _, ga := range a.Value.Group() {
			flattenAttr(attrs, append(groups, a.Key), ga)
		}
	case slog.KindTime:
		attrs[key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		attrs[key] = a.Value.Duration().String()
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			attrs[key] = err.Error()
		} else {
			attrs[key] = a.Value.Any()
		}
	default:
		attrs[key] = a.Value.Any()
	}
}

// WithAttrs implements slog.Handler.
func (h *BufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &BufferHandler{level: h.level, attrs: newAttrs, groups: h.groups}
}

// WithGroup implements slog.Handler.
func (h *BufferHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, 0, len(h.groups)+1)
	newGroups = append(newGroups, h.groups...)
	newGroups = append(newGroups, name)
	return &BufferHandler{level: h.level, attrs: h.attrs, groups: newGroups}
}

// levelToString converts slog.Level to a lowercase string.
func levelToString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
