package sinks

import (
	"context"
	"sync"

	"quantaverse/client/logging"
)

// memoryDefaultCapacity bounds the in-memory buffer. Session diagnostics only
// need the recent tail; an unbounded buffer would grow for the lifetime of
// the client process.
const memoryDefaultCapacity = 1024

// MemorySink retains the most recent events for tests and for the in-client
// diagnostics overlay. Once the capacity is reached the oldest events fall
// off.
type MemorySink struct {
	mu       sync.RWMutex
	capacity int
	events   []logging.Event
}

func NewMemorySink() *MemorySink {
	return NewMemorySinkWithCapacity(memoryDefaultCapacity)
}

func NewMemorySinkWithCapacity(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = memoryDefaultCapacity
	}
	return &MemorySink{capacity: capacity}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == s.capacity {
		copy(s.events, s.events[1:])
		s.events = s.events[:s.capacity-1]
	}
	s.events = append(s.events, cloneForMemory(event))
	return nil
}

func (s *MemorySink) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]logging.Event, len(s.events))
	copy(copied, s.events)
	return copied
}

// EventsOfType filters the retained events, oldest first.
func (s *MemorySink) EventsOfType(eventType logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []logging.Event
	for _, event := range s.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}

func cloneForMemory(event logging.Event) logging.Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]logging.EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}
