package logging

import (
	"sort"
	"sync"
)

// Counter keys shared between the router and client components.
const (
	MetricEventsTotal   = "logging.events_total"
	MetricEventsDropped = "logging.events_dropped"

	MetricSessionPublished = "session.events_published"
	MetricSessionRejected  = "session.events_rejected"
	MetricSessionForced    = "session.forced_transitions"

	MetricRowsApplied         = "entities.rows_applied"
	MetricDuplicatesIgnored   = "entities.duplicates_ignored"
	MetricSpawnFailures       = "entities.spawn_failures"
	MetricPartitionDepartures = "entities.partition_departures"
)

// Metrics is a process-wide counter set. Writes are cheap enough for the
// per-event hot path; Snapshot is intended for diagnostics endpoints.
type Metrics struct {
	mu       sync.RWMutex
	counters map[string]uint64
}

func NewMetrics() *Metrics {
	return &Metrics{counters: make(map[string]uint64)}
}

func (m *Metrics) TelemetryAdd(key string, delta uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	m.counters[key] += delta
	m.mu.Unlock()
}

func (m *Metrics) TelemetryStore(key string, value uint64) {
	if m == nil || key == "" {
		return
	}
	m.mu.Lock()
	m.counters[key] = value
	m.mu.Unlock()
}

func (m *Metrics) Value(key string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[key]
}

// Snapshot returns the counters as a stable-ordered copy.
func (m *Metrics) Snapshot() []CounterSample {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	samples := make([]CounterSample, 0, len(m.counters))
	for key, value := range m.counters {
		samples = append(samples, CounterSample{Key: key, Value: value})
	}
	m.mu.RUnlock()
	sort.Slice(samples, func(i, j int) bool { return samples[i].Key < samples[j].Key })
	return samples
}

type CounterSample struct {
	Key   string `json:"key"`
	Value uint64 `json:"value"`
}
