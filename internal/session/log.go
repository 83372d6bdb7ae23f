package session

import "time"

// LogEntry records one published event for diagnostics. Logic never reads it.
type LogEntry struct {
	Time  time.Time `json:"time"`
	Kind  EventKind `json:"kind"`
	State State     `json:"state"`
}

const defaultLogCapacity = 128

// eventLog is a bounded ring; the oldest entry is dropped first.
type eventLog struct {
	entries []LogEntry
	head    int
	full    bool
}

func newEventLog(capacity int) *eventLog {
	if capacity <= 0 {
		capacity = defaultLogCapacity
	}
	return &eventLog{entries: make([]LogEntry, capacity)}
}

func (l *eventLog) append(entry LogEntry) {
	l.entries[l.head] = entry
	l.head = (l.head + 1) % len(l.entries)
	if l.head == 0 {
		l.full = true
	}
}

// snapshot returns the retained entries, oldest first.
func (l *eventLog) snapshot() []LogEntry {
	if !l.full {
		out := make([]LogEntry, l.head)
		copy(out, l.entries[:l.head])
		return out
	}
	out := make([]LogEntry, 0, len(l.entries))
	out = append(out, l.entries[l.head:]...)
	out = append(out, l.entries[:l.head]...)
	return out
}
