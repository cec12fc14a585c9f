package events

import "github.com/kelindar/event"

// Bridge forwards events of type T from the bus onto ch and returns a
// cancel function. The send is non-blocking: when ch is full the event
// is discarded, so a stalled stream consumer cannot back up the bus.
func Bridge[T Event](bus *Bus, ch chan<- any) (cancel func()) {
	return event.Subscribe(bus.dispatcher, func(ev T) {
		select {
		case ch <- ev:
		default:
		}
	})
}
