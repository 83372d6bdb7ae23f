package session

// EventKind is the closed set of lifecycle notifications the machine accepts.
// Dispatch is keyed by kind, not by runtime type.
type EventKind int

const (
	EventConnectionStarted EventKind = iota
	EventConnectionEstablished
	EventConnectionLost
	EventSubscriptionReady
	EventSubscriptionFailed
	EventLoginRequired
	EventLoginRequested
	EventLoginSuccessful
	EventLoginFailed
	EventRegistrationFailed
	EventSessionCreated
	EventEnterWorldRequested
	EventLocalActorCreated
	EventLocalActorRestored
	EventLocalActorReady
	EventWorldLoadStarted
	EventWorldLoadComplete
	EventStateChanged

	eventKindCount
)

func (k EventKind) String() string {
	switch k {
	case EventConnectionStarted:
		return "connection_started"
	case EventConnectionEstablished:
		return "connection_established"
	case EventConnectionLost:
		return "connection_lost"
	case EventSubscriptionReady:
		return "subscription_ready"
	case EventSubscriptionFailed:
		return "subscription_failed"
	case EventLoginRequired:
		return "login_required"
	case EventLoginRequested:
		return "login_requested"
	case EventLoginSuccessful:
		return "login_successful"
	case EventLoginFailed:
		return "login_failed"
	case EventRegistrationFailed:
		return "registration_failed"
	case EventSessionCreated:
		return "session_created"
	case EventEnterWorldRequested:
		return "enter_world_requested"
	case EventLocalActorCreated:
		return "local_actor_created"
	case EventLocalActorRestored:
		return "local_actor_restored"
	case EventLocalActorReady:
		return "local_actor_ready"
	case EventWorldLoadStarted:
		return "world_load_started"
	case EventWorldLoadComplete:
		return "world_load_complete"
	case EventStateChanged:
		return "state_changed"
	}
	return "unknown"
}

// isSystem reports whether the kind bypasses the per-state whitelist.
func (k EventKind) isSystem() bool {
	return k == EventStateChanged
}

// Event is one lifecycle notification. The payload fields form a small tagged
// union: only the fields relevant to the kind are populated.
type Event struct {
	Kind EventKind

	// Username carries the account a login/registration event was for.
	Username string
	// Reason carries failure text for the failure kinds.
	Reason string
	// ActorID carries the stable id for the local-actor kinds.
	ActorID uint64
	// From/To are populated on StateChanged only.
	From State
	To   State
}

// EventKinds returns every defined kind in declaration order.
func EventKinds() []EventKind {
	all := make([]EventKind, 0, int(eventKindCount))
	for k := EventKind(0); k < eventKindCount; k++ {
		all = append(all, k)
	}
	return all
}

// eventWhitelist lists the non-system kinds each state accepts.
// EventConnectionLost is appended to every row at init: the transport can
// drop in any phase.
var eventWhitelist = map[State][]EventKind{
	StateDisconnected:    {EventConnectionStarted},
	StateConnecting:      {EventConnectionEstablished},
	StateConnected:       {EventSubscriptionReady, EventSubscriptionFailed},
	StateCheckingPlayer:  {EventLoginRequired, EventLocalActorCreated, EventLocalActorRestored, EventLocalActorReady, EventSubscriptionFailed},
	StateWaitingForLogin: {EventLoginRequested, EventLoginFailed, EventRegistrationFailed},
	StateAuthenticating:  {EventLoginSuccessful, EventLoginFailed, EventRegistrationFailed, EventSessionCreated},
	StateAuthenticated:   {EventEnterWorldRequested, EventSessionCreated, EventLocalActorCreated, EventLocalActorRestored, EventLocalActorReady},
	StateCreatingPlayer:  {EventLocalActorCreated, EventLocalActorRestored, EventLocalActorReady},
	StatePlayerReady:     {EventWorldLoadStarted, EventLocalActorRestored},
	StateLoadingWorld:    {EventWorldLoadComplete},
	StateInGame:          {EventWorldLoadStarted, EventLocalActorRestored, EventLocalActorReady},
}

func init() {
	for state := range eventWhitelist {
		eventWhitelist[state] = append(eventWhitelist[state], EventConnectionLost)
	}
}

// Permitted reports whether the kind may be published while in state. System
// kinds are always permitted.
func Permitted(state State, kind EventKind) bool {
	if kind.isSystem() {
		return true
	}
	for _, candidate := range eventWhitelist[state] {
		if candidate == kind {
			return true
		}
	}
	return false
}

// eventTargets maps kinds to the state they drive the machine toward. A kind
// with no entry dispatches without transitioning.
var eventTargets = map[EventKind]State{
	EventConnectionStarted:     StateConnecting,
	EventConnectionEstablished: StateConnected,
	EventConnectionLost:        StateDisconnected,
	EventSubscriptionReady:     StateCheckingPlayer,
	EventLoginRequired:         StateWaitingForLogin,
	EventLoginRequested:        StateAuthenticating,
	EventLoginSuccessful:       StateAuthenticated,
	EventLoginFailed:           StateWaitingForLogin,
	EventSessionCreated:        StateAuthenticated,
	EventEnterWorldRequested:   StateCreatingPlayer,
	EventLocalActorCreated:     StateCreatingPlayer,
	EventLocalActorReady:       StatePlayerReady,
	EventLocalActorRestored:    StateCreatingPlayer,
	EventWorldLoadStarted:      StateLoadingWorld,
	EventWorldLoadComplete:     StateInGame,
}
