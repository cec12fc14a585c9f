package api

import (
	"strings"
	"time"

	"github.com/avolkov/procscope/internal/events"
	"github.com/avolkov/procscope/internal/metrics"
	"github.com/avolkov/procscope/internal/session"
)

// NewSessionObserver returns a manager observer that republishes core
// session events onto the bus for SSE delivery and keeps the
// Prometheus counters current. m may be nil.
func NewSessionObserver(bus *events.Bus, m *metrics.Metrics) session.Observer {
	return func(sessionID string, ev session.Event) {
		switch e := ev.(type) {
		case session.StartedEvent:
			if m != nil {
				m.SessionsStarted.Inc()
				m.ActiveSessions.Inc()
			}
			bus.Publish(events.SessionStartedEvent{
				SessionID: sessionID,
				PID:       e.PID,
				Script:    e.Script,
				Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			})
		case session.OutputEvent:
			if m != nil {
				m.OutputChunks.WithLabelValues(e.Chunk.Channel).Inc()
			}
			bus.Publish(events.SessionOutputEvent{
				SessionID: sessionID,
				Channel:   e.Chunk.Channel,
				Text:      e.Chunk.Text,
				Seq:       int(e.Chunk.Seq),
			})
		case session.MetricsEvent:
			if m != nil {
				m.SamplesTotal.Inc()
			}
			bus.Publish(events.SessionMetricsEvent{
				SessionID:  sessionID,
				Elapsed:    e.Sample.Elapsed,
				MemoryMB:   e.Sample.MemoryMB,
				CPUPercent: e.Sample.CPUPercent,
				Threads:    e.Sample.Threads,
				Children:   e.Sample.Children,
			})
		case session.LogEvent:
			bus.Publish(events.SessionLogEvent{
				SessionID: sessionID,
				Severity:  strings.ToLower(e.Severity.String()),
				Message:   e.Message,
				Timestamp: e.Timestamp.Format(time.RFC3339Nano),
			})
		case session.FinishedEvent:
			if m != nil {
				if e.ExitCode == -1 {
					m.SessionsFailed.Inc()
				} else {
					m.ActiveSessions.Dec()
				}
				m.ZombiesDetected.Add(float64(len(e.ZombiePIDs)))
			}
			bus.Publish(events.SessionFinishedEvent{
				SessionID:  sessionID,
				ExitCode:   e.ExitCode,
				ZombiePIDs: e.ZombiePIDs,
				StderrTail: e.StderrTail,
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
			})
		}
	}
}
