// Package export derives the persisted artifacts of a finished run
// from its event stream: a tabular metrics file and a line-oriented
// session report.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/avolkov/procscope/internal/session"
)

// Recorder accumulates a session's events for later export. Feed it
// every event via Observe, in stream order.
type Recorder struct {
	mu       sync.Mutex
	script   string
	started  time.Time
	samples  []session.MetricSample
	report   []string
	finished *session.FinishedEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Observe records one event. Safe for concurrent use so it can sit
// behind a manager observer.
func (r *Recorder) Observe(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case session.StartedEvent:
		r.script = e.Script
		r.started = e.Timestamp
		r.report = append(r.report, fmt.Sprintf("[%s] started %s (pid %d)",
			stamp(e.Timestamp), e.Script, e.PID))
	case session.OutputEvent:
		r.report = append(r.report, fmt.Sprintf("[%s] %s: %s",
			stamp(e.Chunk.Timestamp), e.Chunk.Channel, e.Chunk.Text))
	case session.LogEvent:
		r.report = append(r.report, fmt.Sprintf("[%s] %s: %s",
			stamp(e.Timestamp), e.Severity, e.Message))
	case session.MetricsEvent:
		r.samples = append(r.samples, e.Sample)
	case session.FinishedEvent:
		fin := e
		r.finished = &fin
		r.report = append(r.report, fmt.Sprintf("[%s] finished with exit code %d",
			stamp(e.Timestamp), e.ExitCode))
		if len(e.ZombiePIDs) > 0 {
			r.report = append(r.report, fmt.Sprintf("[%s] WARNING: leaked processes: %v",
				stamp(e.Timestamp), e.ZombiePIDs))
		}
	}
}

// Samples returns a copy of the recorded metric sequence.
func (r *Recorder) Samples() []session.MetricSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.MetricSample, len(r.samples))
	copy(out, r.samples)
	return out
}

// Finished returns the terminal event, if recorded yet.
func (r *Recorder) Finished() (session.FinishedEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		return session.FinishedEvent{}, false
	}
	return *r.finished, true
}

// WriteCSV emits the metric samples as one row per tick.
func (r *Recorder) WriteCSV(w io.Writer) error {
	r.mu.Lock()
	samples := make([]session.MetricSample, len(r.samples))
	copy(samples, r.samples)
	r.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Time (s)", "Memory (MB)", "CPU (%)"}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.Elapsed, 'f', 2, 64),
			strconv.FormatFloat(s.MemoryMB, 'f', 2, 64),
			strconv.FormatFloat(s.CPUPercent, 'f', 2, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteReport emits the line-oriented session report: lifecycle and
// output lines in stream order, then the crash excerpt when the run
// failed.
func (r *Recorder) WriteReport(w io.Writer) error {
	r.mu.Lock()
	lines := make([]string, len(r.report))
	copy(lines, r.report)
	fin := r.finished
	r.mu.Unlock()

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	if fin != nil && fin.ExitCode != 0 && len(fin.StderrTail) > 0 {
		if _, err := fmt.Fprintln(w, "\n--- stderr tail ---"); err != nil {
			return err
		}
		for _, line := range fin.StderrTail {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

// SaveCSV writes the metrics table to path.
func (r *Recorder) SaveCSV(path string) error {
	return saveTo(path, r.WriteCSV)
}

// SaveReport writes the session report to path.
func (r *Recorder) SaveReport(path string) error {
	return saveTo(path, r.WriteReport)
}

func saveTo(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func stamp(t time.Time) string {
	return t.Format("15:04:05.000")
}
