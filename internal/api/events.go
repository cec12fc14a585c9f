package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/avolkov/procscope/internal/events"
)

var sessionEventTypes = map[string]any{
	"session-started":  events.SessionStartedEvent{},
	"session-output":   events.SessionOutputEvent{},
	"session-metrics":  events.SessionMetricsEvent{},
	"session-log":      events.SessionLogEvent{},
	"session-finished": events.SessionFinishedEvent{},
}

// registerSSERoutes registers the native Huma SSE endpoints: the global
// stream carrying all session events, and a per-session stream filtered
// to one session ID.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of session lifecycle, output, and metric events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sessionEventTypes, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		s.streamSessionEvents(ctx, send, "")
	})

	sse.Register(s.api, huma.Operation{
		OperationID: "session-events-stream",
		Method:      http.MethodGet,
		Path:        "/api/sessions/{id}/events",
		Summary:     "Session Event Stream",
		Description: "Real-time stream of events for a single session",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, sessionEventTypes, func(ctx context.Context, input *SessionIDInput, send sse.Sender) {
		if _, ok := s.manager.Get(input.ID); !ok {
			return
		}
		s.streamSessionEvents(ctx, send, input.ID)
	})
}

// streamSessionEvents subscribes to all session event types and relays
// them to the client until the connection closes. An empty sessionID
// means no filtering.
func (s *Server) streamSessionEvents(ctx context.Context, send sse.Sender, sessionID string) {
	eventCh := make(chan any, 64)

	unsubscribers := []func(){
		events.Bridge[events.SessionStartedEvent](s.bus, eventCh),
		events.Bridge[events.SessionOutputEvent](s.bus, eventCh),
		events.Bridge[events.SessionMetricsEvent](s.bus, eventCh),
		events.Bridge[events.SessionLogEvent](s.bus, eventCh),
		events.Bridge[events.SessionFinishedEvent](s.bus, eventCh),
	}
	defer func() {
		for _, unsub := range unsubscribers {
			unsub()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-eventCh:
			if sessionID != "" && eventSessionID(ev) != sessionID {
				continue
			}
			if err := send.Data(ev); err != nil {
				return
			}
		}
	}
}

func eventSessionID(ev any) string {
	switch e := ev.(type) {
	case events.SessionStartedEvent:
		return e.SessionID
	case events.SessionOutputEvent:
		return e.SessionID
	case events.SessionMetricsEvent:
		return e.SessionID
	case events.SessionLogEvent:
		return e.SessionID
	case events.SessionFinishedEvent:
		return e.SessionID
	default:
		return ""
	}
}
