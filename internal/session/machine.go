package session

import (
	"context"
	"sync"
	"time"

	"quantaverse/client/internal/telemetry"
	"quantaverse/client/logging"
	"quantaverse/client/logging/lifecycle"
)

// Handler receives dispatched events. Handlers run on the logical thread; a
// handler may publish further events (processed depth-first on the same call
// stack) and may subscribe or unsubscribe mid-dispatch.
type Handler func(Event)

// SubscriptionID identifies one registered handler for Unsubscribe.
type SubscriptionID uint64

// TickSource reports the current logical tick for log and event metadata.
type TickSource interface {
	CurrentTick() uint64
}

type tickFunc func() uint64

func (f tickFunc) CurrentTick() uint64 { return f() }

// Config carries the machine's collaborators.
type Config struct {
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Logger    telemetry.Logger
	Ticks     TickSource
	LogSize   int
}

// Machine owns the session lifecycle state. Events are validated against the
// per-state whitelist, dispatched to subscribers, then applied through the
// transition table. The state field is touched only from the logical thread;
// the one guarded region is the subscriber list, so handlers can mutate
// subscriptions while a dispatch is in flight.
type Machine struct {
	pub     logging.Publisher
	metrics telemetry.Metrics
	logger  telemetry.Logger
	ticks   TickSource

	state State
	ring  *eventLog

	subMu   sync.Mutex
	subs    map[EventKind][]subscription
	nextSub SubscriptionID
}

type subscription struct {
	id SubscriptionID
	fn Handler
}

// NewMachine constructs a machine in Disconnected.
func NewMachine(cfg Config) *Machine {
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = telemetry.NopMetrics()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(string, ...any) {})
	}
	ticks := cfg.Ticks
	if ticks == nil {
		ticks = tickFunc(func() uint64 { return 0 })
	}
	return &Machine{
		pub:     pub,
		metrics: metrics,
		logger:  logger,
		ticks:   ticks,
		state:   StateDisconnected,
		ring:    newEventLog(cfg.LogSize),
		subs:    make(map[EventKind][]subscription),
	}
}

// Current returns the lifecycle state.
func (m *Machine) Current() State {
	return m.state
}

// Log returns a copy of the retained diagnostic entries, oldest first.
func (m *Machine) Log() []LogEntry {
	return m.ring.snapshot()
}

// Subscribe registers a handler for one event kind.
func (m *Machine) Subscribe(kind EventKind, fn Handler) SubscriptionID {
	if fn == nil {
		return 0
	}
	m.subMu.Lock()
	defer m.subMu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs[kind] = append(m.subs[kind], subscription{id: id, fn: fn})
	return id
}

// Unsubscribe removes a previously registered handler. Unknown ids are a
// no-op, so teardown paths can call it blindly.
func (m *Machine) Unsubscribe(id SubscriptionID) {
	if id == 0 {
		return
	}
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for kind, subs := range m.subs {
		for i, sub := range subs {
			if sub.id == id {
				m.subs[kind] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish validates the event against the current state's whitelist, appends
// it to the diagnostic log, dispatches it, and applies any automatic
// transition. Returns false when the whitelist rejects the event; nothing is
// dispatched and the state is untouched in that case.
func (m *Machine) Publish(event Event) bool {
	return m.publish(event, true)
}

func (m *Machine) publish(event Event, allowTransition bool) bool {
	if !Permitted(m.state, event.Kind) {
		m.metrics.Add(logging.MetricSessionRejected, 1)
		lifecycle.PublishRejected(context.Background(), m.pub, m.ticks.CurrentTick(), lifecycle.PublishRejectedPayload{
			Kind:  event.Kind.String(),
			State: m.state.String(),
		})
		return false
	}

	m.metrics.Add(logging.MetricSessionPublished, 1)
	m.ring.append(LogEntry{Time: time.Now(), Kind: event.Kind, State: m.state})
	m.dispatch(event)

	if !allowTransition {
		return true
	}
	target, ok := eventTargets[event.Kind]
	if !ok || target == m.state || !CanTransition(m.state, target) {
		return true
	}
	m.commit(target, event.Kind.String(), false)
	return true
}

// SetState applies an explicit transition, validated against the table.
func (m *Machine) SetState(target State) bool {
	if !CanTransition(m.state, target) {
		m.logger.Printf("rejecting transition %s -> %s: not in transition table", m.state, target)
		return false
	}
	m.commit(target, "", false)
	return true
}

// ForceState transitions unconditionally. Reserved for process start and
// loss-of-invariant recovery such as a transport drop; StateChanged still
// fires so subscribers observe the move.
func (m *Machine) ForceState(target State) {
	if target == m.state {
		return
	}
	m.metrics.Add(logging.MetricSessionForced, 1)
	m.commit(target, "", true)
}

func (m *Machine) commit(target State, trigger string, forced bool) {
	from := m.state
	m.state = target
	lifecycle.StateChanged(context.Background(), m.pub, m.ticks.CurrentTick(), lifecycle.StateChangedPayload{
		From:    from.String(),
		To:      target.String(),
		Trigger: trigger,
		Forced:  forced,
	})
	// The StateChanged publish must not re-run the transition lookup for
	// itself, so it goes through the non-transitioning path.
	m.publish(Event{Kind: EventStateChanged, From: from, To: target}, false)
}

func (m *Machine) dispatch(event Event) {
	m.subMu.Lock()
	subs := append([]subscription(nil), m.subs[event.Kind]...)
	m.subMu.Unlock()

	for _, sub := range subs {
		m.invoke(sub, event)
	}
}

// invoke guards each handler individually so one failing subscriber cannot
// block delivery to the rest or corrupt machine state.
func (m *Machine) invoke(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Printf("handler %d panicked on %s: %v", sub.id, event.Kind, r)
		}
	}()
	sub.fn(event)
}
