package session

import "sync"

// LogBuffer carries ordered LogEvents from one runner to its observers.
//
// Append never blocks and never fails: capacity is unbounded, so a session
// nobody drains grows without limit until the process exits. Callers that
// keep sessions around for their full lifetime should drain periodically.
type LogBuffer struct {
	mu     sync.Mutex
	events []LogEvent
}

func NewLogBuffer() *LogBuffer {
	return &LogBuffer{}
}

// Append adds an event to the end of the buffer.
func (b *LogBuffer) Append(ev LogEvent) {
	b.mu.Lock()
	b.events = append(b.events, ev)
	b.mu.Unlock()
}

// Drain removes and returns all buffered events in emission order. Repeated
// drains never return the same event twice. Returns nil when empty.
func (b *LogBuffer) Drain() []LogEvent {
	b.mu.Lock()
	events := b.events
	b.events = nil
	b.mu.Unlock()
	return events
}

// Len reports the number of currently buffered events.
func (b *LogBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
