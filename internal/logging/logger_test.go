package logging

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestRingBufferWrapAround(t *testing.T) {
	rb := NewRingBuffer(3)
	for i := 0; i < 5; i++ {
		rb.Write(LogEntry{Message: string(rune('a' + i)), Timestamp: time.Now()})
	}

	entries := rb.ReadAll()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	// Oldest two overwritten, order preserved
	want := []string{"c", "d", "e"}
	for i, e := range entries {
		if e.Message != want[i] {
			t.Errorf("entry %d = %q, want %q", i, e.Message, want[i])
		}
	}
}

func TestRingBufferEmpty(t *testing.T) {
	rb := NewRingBuffer(8)
	if entries := rb.ReadAll(); entries != nil {
		t.Errorf("expected nil for empty buffer, got %v", entries)
	}
	if rb.Count() != 0 {
		t.Errorf("expected count 0, got %d", rb.Count())
	}
}

func TestGetLoggerCachesPerModule(t *testing.T) {
	l1 := GetLogger("cache-test")
	l2 := GetLogger("cache-test")
	if l1 != l2 {
		t.Error("expected the same logger instance for the same module")
	}
}

func TestModuleLevelOverride(t *testing.T) {
	cfg := Config{
		Level:   "warn",
		Modules: map[string]string{"chatty": "debug"},
	}

	if got := moduleLevel(cfg, "chatty"); got != slog.LevelDebug {
		t.Errorf("module override level = %v, want debug", got)
	}
	if got := moduleLevel(cfg, "other"); got != slog.LevelWarn {
		t.Errorf("fallback level = %v, want warn", got)
	}
}

func TestApplyLevelsChangesExistingLogger(t *testing.T) {
	Initialize(Config{Level: "info", Format: "text"})
	GetLogger("levels-test")

	ApplyLevels(Config{Level: "info", Modules: map[string]string{"levels-test": "error"}})

	mutex.RLock()
	lv := moduleLevelVars["levels-test"]
	mutex.RUnlock()
	if lv == nil {
		t.Fatal("level var not registered")
	}
	if lv.Level() != slog.LevelError {
		t.Errorf("level after ApplyLevels = %v, want error", lv.Level())
	}
}

func TestBufferHandlerCapturesEntries(t *testing.T) {
	Initialize(Config{Level: "debug", Format: "text"})

	logger := GetLogger("buffer-test")
	logger.Info("captured message", "pid", 42)

	var found *LogEntry
	for _, e := range Buffer().ReadAll() {
		if e.Module == "buffer-test" && e.Message == "captured message" {
			found = &e
			break
		}
	}
	if found == nil {
		t.Fatal("entry not found in ring buffer")
	}
	if found.Attributes["pid"] != int64(42) {
		t.Errorf("pid attribute = %v, want 42", found.Attributes["pid"])
	}
}

type stubHandler struct {
	level   slog.Level
	err     error
	handled int
}

func (h *stubHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *stubHandler) Handle(context.Context, slog.Record) error {
	h.handled++
	return h.err
}
func (h *stubHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *stubHandler) WithGroup(string) slog.Handler      { return h }

func TestFanoutDeliversToEnabledSinks(t *testing.T) {
	quiet := &stubHandler{level: slog.LevelError}
	chatty := &stubHandler{level: slog.LevelDebug}
	f := fanout{sinks: []slog.Handler{quiet, chatty}}

	if !f.Enabled(context.Background(), slog.LevelInfo) {
		t.Fatal("fanout disabled while one sink accepts info")
	}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := f.Handle(context.Background(), r); err != nil {
		t.Fatal(err)
	}
	if quiet.handled != 0 || chatty.handled != 1 {
		t.Errorf("handled = %d/%d, want 0/1", quiet.handled, chatty.handled)
	}
}

func TestFanoutJoinsSinkErrors(t *testing.T) {
	sinkErr := errors.New("sink down")
	bad := &stubHandler{level: slog.LevelDebug, err: sinkErr}
	good := &stubHandler{level: slog.LevelDebug}
	f := fanout{sinks: []slog.Handler{bad, good}}

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "hello", 0)
	if err := f.Handle(context.Background(), r); !errors.Is(err, sinkErr) {
		t.Errorf("Handle error = %v, want to wrap sink error", err)
	}
	if good.handled != 1 {
		t.Error("failing sink must not stop delivery to the rest")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
