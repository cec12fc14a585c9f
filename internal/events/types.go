package events

// Event type constants for kelindar/event.
const (
	TypeSessionStarted uint32 = iota + 1
	TypeSessionOutput
	TypeSessionMetrics
	TypeSessionLog
	TypeSessionFinished
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// SessionStartedEvent is published when a monitored child process has
// been created by the OS.
type SessionStartedEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	PID       int    `json:"pid" example:"4242" doc:"Root process id of the monitored tree"`
	Script    string `json:"script" doc:"Entry-point path being monitored"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Launch timestamp"`
}

// Type returns the event type identifier for SessionStartedEvent.
func (e SessionStartedEvent) Type() uint32 { return TypeSessionStarted }

// SessionOutputEvent carries one chunk of child stdout or stderr.
type SessionOutputEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Channel   string `json:"channel" example:"stdout" doc:"Output channel: stdout or stderr"`
	Text      string `json:"text" doc:"Output text, one line per chunk"`
	Seq       int    `json:"seq" example:"17" doc:"Per-channel monotonic sequence number"`
}

// Type returns the event type identifier for SessionOutputEvent.
func (e SessionOutputEvent) Type() uint32 { return TypeSessionOutput }

// SessionMetricsEvent carries one aggregated resource sample across the
// monitored process tree.
type SessionMetricsEvent struct {
	SessionID  string  `json:"session_id" doc:"Session identifier"`
	Elapsed    float64 `json:"elapsed" example:"12.5" doc:"Seconds since launch"`
	MemoryMB   float64 `json:"memory_mb" example:"182.3" doc:"Resident memory summed across the tree"`
	CPUPercent float64 `json:"cpu_percent" example:"240.1" doc:"CPU utilization since the previous tick; may exceed 100 on multicore workloads"`
	Threads    int     `json:"threads" example:"12" doc:"Thread count summed across the tree"`
	Children   int     `json:"children" example:"3" doc:"Number of live descendant processes"`
}

// Type returns the event type identifier for SessionMetricsEvent.
func (e SessionMetricsEvent) Type() uint32 { return TypeSessionMetrics }

// SessionLogEvent is a diagnostic message generated by the monitoring
// core itself (environment warnings, stream faults, kill escalation).
type SessionLogEvent struct {
	SessionID string `json:"session_id" doc:"Session identifier"`
	Severity  string `json:"severity" example:"warn" doc:"Log severity"`
	Message   string `json:"message" doc:"Log message"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for SessionLogEvent.
func (e SessionLogEvent) Type() uint32 { return TypeSessionLog }

// SessionFinishedEvent is the terminal event of a session.
type SessionFinishedEvent struct {
	SessionID  string   `json:"session_id" doc:"Session identifier"`
	ExitCode   int      `json:"exit_code" example:"0" doc:"Child exit code; -1 when the launch itself failed"`
	ZombiePIDs []int    `json:"zombie_pids,omitempty" doc:"Tracked pids still alive after termination and grace period"`
	StderrTail []string `json:"stderr_tail,omitempty" doc:"Last stderr lines, present when exit code is non-zero"`
	Timestamp  string   `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Finish timestamp"`
}

// Type returns the event type identifier for SessionFinishedEvent.
func (e SessionFinishedEvent) Type() uint32 { return TypeSessionFinished }

// LogEntryEvent represents an application log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"session" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
