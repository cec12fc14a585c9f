package logging

import (
	"sync"
	"time"
)

// LogEntry is one captured log line, shaped for JSON replay over the
// log endpoints.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      string         `json:"level"`
	Module     string         `json:"module"`
	Message    string         `json:"message"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// RingBuffer retains the most recent log entries. Writes never block
// and never grow the buffer; once full, each write drops the oldest
// entry.
type RingBuffer struct {
	mu   sync.RWMutex
	buf  []LogEntry
	next int
	full bool
}

// NewRingBuffer allocates a buffer holding up to capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	return &RingBuffer{buf: make([]LogEntry, capacity)}
}

// Write records an entry, evicting the oldest one when full.
func (rb *RingBuffer) Write(entry LogEntry) {
	rb.mu.Lock()
	rb.buf[rb.next] = entry
	rb.next++
	if rb.next == len(rb.buf) {
		rb.next = 0
		rb.full = true
	}
	rb.mu.Unlock()
}

// ReadAll returns a copy of the retained entries, oldest first.
func (rb *RingBuffer) ReadAll() []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if !rb.full {
		if rb.next == 0 {
			return nil
		}
		return append([]LogEntry(nil), rb.buf[:rb.next]...)
	}

	out := make([]LogEntry, 0, len(rb.buf))
	out = append(out, rb.buf[rb.next:]...)
	return append(out, rb.buf[:rb.next]...)
}

// Count returns the number of retained entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	if rb.full {
		return len(rb.buf)
	}
	return rb.next
}
