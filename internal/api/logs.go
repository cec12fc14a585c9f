package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"

	"github.com/avolkov/procscope/internal/events"
	"github.com/avolkov/procscope/internal/logging"
)

// registerLogRoutes registers the daemon log streaming endpoint.
// Historical entries from the ring buffer are replayed first.
func (s *Server) registerLogRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "logs-stream",
		Method:      http.MethodGet,
		Path:        "/api/logs/stream",
		Summary:     "Log Stream",
		Description: "Real-time daemon log streaming via Server-Sent Events. Sends historical logs first, then streams new entries.",
		Tags:        []string{"logs"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"message": events.LogEntryEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		if buffer := logging.Buffer(); buffer != nil {
			for _, entry := range buffer.ReadAll() {
				ev := events.LogEntryEvent{
					Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
					Level:      entry.Level,
					Module:     entry.Module,
					Message:    entry.Message,
					Attributes: entry.Attributes,
				}
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}

		eventCh := make(chan any, 100)
		unsubscribe := events.Bridge[events.LogEntryEvent](s.bus, eventCh)
		defer unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-eventCh:
				if err := send.Data(ev); err != nil {
					return
				}
			}
		}
	})
}
