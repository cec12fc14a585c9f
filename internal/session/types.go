package session

import (
	"log/slog"
	"time"
)

// LaunchSpec describes one target program run. Immutable once handed to
// the manager.
type LaunchSpec struct {
	// Script is the entry-point path of the target program.
	Script string
	// Args are passed to the target after the script path.
	Args []string
	// WorkDir is the child's working directory. Empty means the
	// script's containing directory.
	WorkDir string
	// ExtraPaths extend the child's PYTHONPATH after the discovered
	// package directories.
	ExtraPaths []string
	// Python overrides interpreter resolution when non-empty.
	Python string
	// ForceUTF8 forces UTF-8 I/O mode on the child.
	ForceUTF8 bool
}

// State is the session lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateLaunching
	StateRunning
	StateStopping
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLaunching:
		return "launching"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Config holds session timing and buffering knobs.
type Config struct {
	// SampleInterval is the resource sampling tick.
	SampleInterval time.Duration
	// GracefulTimeout bounds the wait between SIGINT and the forced
	// tree kill.
	GracefulTimeout time.Duration
	// ZombieGrace is how long after termination to wait before
	// scanning for leaked descendants.
	ZombieGrace time.Duration
	// DrainTimeout bounds how long output pipes may stay open after
	// the root has exited; an orphaned descendant holding the write
	// end gets cut off rather than stalling the Finished event.
	DrainTimeout time.Duration
	// StderrTailLines is how many trailing stderr lines the crash
	// excerpt keeps.
	StderrTailLines int
	// EventBuffer sizes the caller-facing event channel.
	EventBuffer int
}

// DefaultConfig returns the stock timing configuration.
func DefaultConfig() Config {
	return Config{
		SampleInterval:  500 * time.Millisecond,
		GracefulTimeout: 5 * time.Second,
		ZombieGrace:     400 * time.Millisecond,
		DrainTimeout:    time.Second,
		StderrTailLines: 40,
		EventBuffer:     256,
	}
}

// OutputChunk is one unit of child output from a single channel.
// Sequence numbers are per channel, start at 1, and have no gaps.
type OutputChunk struct {
	Channel   string
	Text      string
	Seq       uint64
	Timestamp time.Time
}

// MetricSample aggregates resources across the live process tree at one
// tick. CPUPercent is utilization since the previous tick and may
// exceed 100 on multi-core workloads.
type MetricSample struct {
	Elapsed    float64
	MemoryMB   float64
	CPUPercent float64
	Threads    int
	Children   int
	Timestamp  time.Time
}

// Event is the session's caller-facing event union. Exactly one
// FinishedEvent ends every stream; nothing follows it.
type Event interface {
	sessionEvent()
}

// StartedEvent is emitted once the child process exists.
type StartedEvent struct {
	PID       int
	Script    string
	Timestamp time.Time
}

// OutputEvent carries one chunk of child output.
type OutputEvent struct {
	Chunk OutputChunk
}

// MetricsEvent carries one resource sample.
type MetricsEvent struct {
	Sample MetricSample
}

// LogEvent carries a diagnostic message about the session itself, not
// child output.
type LogEvent struct {
	Severity  slog.Level
	Message   string
	Timestamp time.Time
}

// FinishedEvent is the terminal event. ZombiePIDs lists descendants
// still alive after termination plus the grace delay. StderrTail is a
// crash excerpt, populated only for non-zero exit codes.
type FinishedEvent struct {
	ExitCode   int
	ZombiePIDs []int
	StderrTail []string
	Timestamp  time.Time
}

func (StartedEvent) sessionEvent()  {}
func (OutputEvent) sessionEvent()   {}
func (MetricsEvent) sessionEvent()  {}
func (LogEvent) sessionEvent()      {}
func (FinishedEvent) sessionEvent() {}
