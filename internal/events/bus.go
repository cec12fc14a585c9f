package events

import (
	"github.com/kelindar/event"
)

// Bus wraps the kelindar/event dispatcher for in-process event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// Usage: bus.Publish(SessionStartedEvent{...})
func (b *Bus) Publish(ev Event) {
	// kelindar/event's generic Publish needs the concrete type
	switch e := ev.(type) {
	case SessionStartedEvent:
		event.Publish(b.dispatcher, e)
	case SessionOutputEvent:
		event.Publish(b.dispatcher, e)
	case SessionMetricsEvent:
		event.Publish(b.dispatcher, e)
	case SessionLogEvent:
		event.Publish(b.dispatcher, e)
	case SessionFinishedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function; the handler's
// parameter type determines which events it receives. Returns an
// unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e SessionFinishedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SessionStartedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionOutputEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionMetricsEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionLogEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SessionFinishedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
