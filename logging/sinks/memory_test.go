package sinks

import (
	"testing"

	"quantaverse/client/logging"
)

func TestMemorySinkDropsOldestAtCapacity(t *testing.T) {
	sink := NewMemorySinkWithCapacity(3)
	for tick := uint64(1); tick <= 5; tick++ {
		if err := sink.Write(logging.Event{Type: "network.connected", Tick: tick}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	events := sink.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(events))
	}
	if events[0].Tick != 3 || events[2].Tick != 5 {
		t.Fatalf("expected ticks 3..5, got %d..%d", events[0].Tick, events[2].Tick)
	}
}

func TestMemorySinkEventsOfType(t *testing.T) {
	sink := NewMemorySink()
	sink.Write(logging.Event{Type: "network.connected", Tick: 1})
	sink.Write(logging.Event{Type: "network.disconnected", Tick: 2})
	sink.Write(logging.Event{Type: "network.connected", Tick: 3})

	matched := sink.EventsOfType("network.connected")
	if len(matched) != 2 {
		t.Fatalf("expected 2 matching events, got %d", len(matched))
	}
	if matched[1].Tick != 3 {
		t.Fatalf("expected last match at tick 3, got %d", matched[1].Tick)
	}
}
