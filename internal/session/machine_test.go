package session

import (
	"testing"

	"quantaverse/client/internal/telemetry"
	"quantaverse/client/logging"
)

func newTestMachine() (*Machine, *logging.Metrics) {
	metrics := logging.NewMetrics()
	return NewMachine(Config{Metrics: telemetry.WrapMetrics(metrics)}), metrics
}

func TestPublishHonorsWhitelist(t *testing.T) {
	for _, state := range States() {
		for _, kind := range EventKinds() {
			machine, _ := newTestMachine()
			machine.ForceState(state)

			dispatched := 0
			machine.Subscribe(kind, func(Event) { dispatched++ })

			accepted := machine.Publish(Event{Kind: kind})
			if accepted != Permitted(state, kind) {
				t.Fatalf("state %s kind %s: expected accepted=%v, got %v", state, kind, Permitted(state, kind), accepted)
			}
			if !accepted {
				if dispatched != 0 {
					t.Fatalf("state %s kind %s: rejected event reached %d handlers", state, kind, dispatched)
				}
				if machine.Current() != state {
					t.Fatalf("state %s kind %s: rejected event moved state to %s", state, kind, machine.Current())
				}
			}
		}
	}
}

func TestConnectionLostReachesDisconnectedFromEveryState(t *testing.T) {
	for _, state := range States() {
		machine, _ := newTestMachine()
		machine.ForceState(state)

		if !machine.Publish(Event{Kind: EventConnectionLost, Reason: "read error"}) {
			t.Fatalf("state %s: connection loss rejected", state)
		}
		if machine.Current() != StateDisconnected {
			t.Fatalf("state %s: expected disconnected after loss, got %s", state, machine.Current())
		}
	}
}

func TestHappyPathTransitions(t *testing.T) {
	steps := []struct {
		kind EventKind
		want State
	}{
		{EventConnectionStarted, StateConnecting},
		{EventConnectionEstablished, StateConnected},
		{EventSubscriptionReady, StateCheckingPlayer},
		{EventLoginRequired, StateWaitingForLogin},
		{EventLoginRequested, StateAuthenticating},
		{EventLoginSuccessful, StateAuthenticated},
		{EventEnterWorldRequested, StateCreatingPlayer},
		{EventLocalActorReady, StatePlayerReady},
		{EventWorldLoadStarted, StateLoadingWorld},
		{EventWorldLoadComplete, StateInGame},
	}

	machine, _ := newTestMachine()
	for _, step := range steps {
		if !machine.Publish(Event{Kind: step.kind}) {
			t.Fatalf("kind %s rejected in state %s", step.kind, machine.Current())
		}
		if machine.Current() != step.want {
			t.Fatalf("kind %s: expected state %s, got %s", step.kind, step.want, machine.Current())
		}
	}
}

func TestReconnectPathSkipsLogin(t *testing.T) {
	machine, _ := newTestMachine()
	machine.ForceState(StateCheckingPlayer)

	if !machine.Publish(Event{Kind: EventLocalActorRestored, ActorID: 7}) {
		t.Fatalf("actor restored rejected in checking_player")
	}
	if machine.Current() != StateCreatingPlayer {
		t.Fatalf("expected creating_player, got %s", machine.Current())
	}
	if !machine.Publish(Event{Kind: EventLocalActorReady, ActorID: 7}) {
		t.Fatalf("actor ready rejected in creating_player")
	}
	if machine.Current() != StatePlayerReady {
		t.Fatalf("expected player_ready, got %s", machine.Current())
	}
}

func TestStateChangedCarriesFromAndTo(t *testing.T) {
	machine, _ := newTestMachine()

	var observed []Event
	machine.Subscribe(EventStateChanged, func(event Event) {
		observed = append(observed, event)
	})

	machine.Publish(Event{Kind: EventConnectionStarted})
	machine.Publish(Event{Kind: EventConnectionEstablished})

	if len(observed) != 2 {
		t.Fatalf("expected 2 state changes, got %d", len(observed))
	}
	if observed[0].From != StateDisconnected || observed[0].To != StateConnecting {
		t.Fatalf("first change: expected disconnected->connecting, got %s->%s", observed[0].From, observed[0].To)
	}
	if observed[1].From != StateConnecting || observed[1].To != StateConnected {
		t.Fatalf("second change: expected connecting->connected, got %s->%s", observed[1].From, observed[1].To)
	}
}

func TestNestedPublishRunsDepthFirst(t *testing.T) {
	machine, _ := newTestMachine()

	machine.Subscribe(EventStateChanged, func(event Event) {
		if event.To == StateConnecting {
			machine.Publish(Event{Kind: EventConnectionEstablished})
		}
	})

	machine.Publish(Event{Kind: EventConnectionStarted})

	// The nested publish completed on the same call stack, so the outer
	// publish returns with the machine already two states ahead.
	if machine.Current() != StateConnected {
		t.Fatalf("expected connected after nested publish, got %s", machine.Current())
	}
}

func TestHandlerPanicDoesNotBlockOthers(t *testing.T) {
	machine, _ := newTestMachine()

	second := false
	machine.Subscribe(EventConnectionStarted, func(Event) { panic("boom") })
	machine.Subscribe(EventConnectionStarted, func(Event) { second = true })

	if !machine.Publish(Event{Kind: EventConnectionStarted}) {
		t.Fatalf("publish rejected")
	}
	if !second {
		t.Fatalf("second handler never ran after first panicked")
	}
	if machine.Current() != StateConnecting {
		t.Fatalf("expected connecting despite panic, got %s", machine.Current())
	}
}

func TestSubscribeDuringDispatch(t *testing.T) {
	machine, _ := newTestMachine()
	machine.ForceState(StateInGame)

	late := 0
	machine.Subscribe(EventWorldLoadStarted, func(Event) {
		machine.Subscribe(EventWorldLoadStarted, func(Event) { late++ })
	})

	machine.Publish(Event{Kind: EventWorldLoadStarted})
	if late != 0 {
		t.Fatalf("handler added mid-dispatch ran for the triggering event")
	}

	machine.ForceState(StateInGame)
	machine.Publish(Event{Kind: EventWorldLoadStarted})
	if late != 1 {
		t.Fatalf("expected late handler to run once, got %d", late)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	machine, _ := newTestMachine()

	calls := 0
	id := machine.Subscribe(EventConnectionLost, func(Event) { calls++ })

	machine.Publish(Event{Kind: EventConnectionLost})
	machine.Unsubscribe(id)
	machine.Publish(Event{Kind: EventConnectionLost})

	if calls != 1 {
		t.Fatalf("expected 1 call after unsubscribe, got %d", calls)
	}
}

func TestSetStateValidatesAgainstTable(t *testing.T) {
	machine, _ := newTestMachine()

	if machine.SetState(StateInGame) {
		t.Fatalf("disconnected -> in_game accepted by SetState")
	}
	if machine.Current() != StateDisconnected {
		t.Fatalf("rejected SetState moved state to %s", machine.Current())
	}
	if !machine.SetState(StateConnecting) {
		t.Fatalf("disconnected -> connecting rejected by SetState")
	}
}

func TestForceStateBypassesTable(t *testing.T) {
	machine, metrics := newTestMachine()

	machine.ForceState(StateInGame)
	if machine.Current() != StateInGame {
		t.Fatalf("expected in_game, got %s", machine.Current())
	}
	if got := metrics.Value(logging.MetricSessionForced); got != 1 {
		t.Fatalf("expected 1 forced transition, got %d", got)
	}
}

func TestRejectionCountsMetric(t *testing.T) {
	machine, metrics := newTestMachine()

	machine.Publish(Event{Kind: EventWorldLoadComplete})
	machine.Publish(Event{Kind: EventLoginRequested})

	if got := metrics.Value(logging.MetricSessionRejected); got != 2 {
		t.Fatalf("expected 2 rejections, got %d", got)
	}
}

func TestLogRingDropsOldest(t *testing.T) {
	machine := NewMachine(Config{LogSize: 3})

	// ConnectionLost is permitted in Disconnected and targets the current
	// state, so repeated publishes fill the ring without transitions.
	for i := 0; i < 5; i++ {
		machine.Publish(Event{Kind: EventConnectionLost})
	}

	entries := machine.Log()
	if len(entries) != 3 {
		t.Fatalf("expected 3 retained entries, got %d", len(entries))
	}
	for i, entry := range entries {
		if entry.Kind != EventConnectionLost {
			t.Fatalf("entry %d: expected connection_lost, got %s", i, entry.Kind)
		}
	}
}
