package export

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/avolkov/procscope/internal/session"
)

func sampleStream(rec *Recorder) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	rec.Observe(session.StartedEvent{PID: 100, Script: "job.py", Timestamp: now})
	rec.Observe(session.OutputEvent{Chunk: session.OutputChunk{
		Channel: "stdout", Text: "working", Seq: 1, Timestamp: now.Add(100 * time.Millisecond),
	}})
	rec.Observe(session.MetricsEvent{Sample: session.MetricSample{
		Elapsed: 0.5, MemoryMB: 12.345, CPUPercent: 150.2,
	}})
	rec.Observe(session.MetricsEvent{Sample: session.MetricSample{
		Elapsed: 1.0, MemoryMB: 13.0, CPUPercent: 50.0,
	}})
	rec.Observe(session.LogEvent{Severity: slog.LevelWarn, Message: "something odd", Timestamp: now.Add(time.Second)})
	rec.Observe(session.FinishedEvent{
		ExitCode:   3,
		StderrTail: []string{"Traceback", "ValueError"},
		Timestamp:  now.Add(2 * time.Second),
	})
}

func TestWriteCSV(t *testing.T) {
	rec := NewRecorder()
	sampleStream(rec)

	var sb strings.Builder
	if err := rec.WriteCSV(&sb); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimSpace(sb.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines: %q", len(lines), sb.String())
	}
	if lines[0] != "Time (s),Memory (MB),CPU (%)" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "0.50,12.35,150.20" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "1.00,13.00,50.00" {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestWriteReport(t *testing.T) {
	rec := NewRecorder()
	sampleStream(rec)

	var sb strings.Builder
	if err := rec.WriteReport(&sb); err != nil {
		t.Fatal(err)
	}
	out := sb.String()

	for _, want := range []string{
		"started job.py (pid 100)",
		"stdout: working",
		"WARN: something odd",
		"finished with exit code 3",
		"--- stderr tail ---",
		"Traceback",
		"ValueError",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReportOmitsTailOnCleanExit(t *testing.T) {
	rec := NewRecorder()
	rec.Observe(session.FinishedEvent{ExitCode: 0, Timestamp: time.Now()})

	var sb strings.Builder
	if err := rec.WriteReport(&sb); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(sb.String(), "stderr tail") {
		t.Errorf("clean exit should not carry a tail:\n%s", sb.String())
	}
}

func TestSamplesCopy(t *testing.T) {
	rec := NewRecorder()
	sampleStream(rec)

	s := rec.Samples()
	if len(s) != 2 {
		t.Fatalf("Samples() = %d entries", len(s))
	}
	s[0].MemoryMB = -1
	if rec.Samples()[0].MemoryMB == -1 {
		t.Error("Samples leaked internal slice")
	}

	fin, ok := rec.Finished()
	if !ok || fin.ExitCode != 3 {
		t.Errorf("Finished() = %+v, %v", fin, ok)
	}
}
