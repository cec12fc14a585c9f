package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/coreos/go-systemd/v22/journal"
)

// JournalHandler is a slog.Handler that sends logs to the systemd journal.
type JournalHandler struct {
	level slog.Leveler
	attrs []slog.Attr
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(level slog.Leveler) *JournalHandler {
	return &JournalHandler{level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *JournalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle sends the log record to the systemd journal.
func (h *JournalHandler) Handle(_ context.Context, r slog.Record) error {
	priority := mapLevelToPriority(r.Level)

	fields := map[string]string{
		"SYSLOG_IDENTIFIER": "procscope",
	}
	for _, attr := range h.attrs {
		addAttrToFields(fields, attr)
	}
	r.Attrs(func(attr slog.Attr) bool {
		addAttrToFields(fields, attr)
		return true
	})

	if err := journal.Send(r.Message, priority, fields); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to send to journal: %v\n", err)
		return err
	}
	return nil
}

// WithAttrs returns a new handler with additional attributes.
func (h *JournalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	newAttrs = append(newAttrs, h.attrs...)
	newAttrs = append(newAttrs, attrs...)
	return &JournalHandler{level: h.level, attrs: newAttrs}
}

// WithGroup returns the handler unchanged; group nesting is flattened
// into field names by addAttrToFields.
func (h *JournalHandler) WithGroup(_ string) slog.Handler {
	return h
}

// mapLevelToPriority maps slog levels to journal priorities.
func mapLevelToPriority(level slog.Level) journal.Priority {
	switch {
	case level >= slog.LevelError:
		return journal.PriErr
	case level >= slog.LevelWarn:
		return journal.PriWarning
	case level >= slog.LevelInfo:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

// addAttrToFields adds an slog attribute as an uppercase journal field.
func addAttrToFields(fields map[string]string, attr slog.Attr) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	key := strings.ToUpper(strings.ReplaceAll(attr.Key, ".", "_"))

	if attr.Value.Kind() == slog.KindGroup {
		for _, a := range attr.Value.Group() {
			sub := slog.Attr{Key: attr.Key + "_" + a.Key, Value: a.Value}
			addAttrToFields(fields, sub)
		}
		return
	}
	fields[key] = attr.Value.String()
}

// IsJournalAvailable checks if the systemd journal is available.
func IsJournalAvailable() bool {
	return journal.Enabled()
}
