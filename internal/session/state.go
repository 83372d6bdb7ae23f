package session

// State is the single lifecycle phase the client is in. There is exactly one
// value per process, owned by the Machine and mutated only through validated
// transitions (or ForceState on loss-of-invariant recovery).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateCheckingPlayer
	StateWaitingForLogin
	StateAuthenticating
	StateAuthenticated
	StateCreatingPlayer
	StatePlayerReady
	StateLoadingWorld
	StateInGame

	stateCount
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateCheckingPlayer:
		return "checking_player"
	case StateWaitingForLogin:
		return "waiting_for_login"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateCreatingPlayer:
		return "creating_player"
	case StatePlayerReady:
		return "player_ready"
	case StateLoadingWorld:
		return "loading_world"
	case StateInGame:
		return "in_game"
	}
	return "unknown"
}

// transitionTable lists the states directly reachable from each state.
// Disconnected appears in every row: transport loss is the universal failure
// path and must be reachable no matter where the session is.
var transitionTable = map[State][]State{
	StateDisconnected:    {StateConnecting},
	StateConnecting:      {StateConnected, StateDisconnected},
	StateConnected:       {StateCheckingPlayer, StateDisconnected},
	StateCheckingPlayer:  {StateWaitingForLogin, StateCreatingPlayer, StatePlayerReady, StateDisconnected},
	StateWaitingForLogin: {StateAuthenticating, StateDisconnected},
	StateAuthenticating:  {StateAuthenticated, StateWaitingForLogin, StateDisconnected},
	StateAuthenticated:   {StateCreatingPlayer, StateDisconnected},
	StateCreatingPlayer:  {StatePlayerReady, StateDisconnected},
	StatePlayerReady:     {StateLoadingWorld, StateDisconnected},
	StateLoadingWorld:    {StateInGame, StateDisconnected},
	StateInGame:          {StateLoadingWorld, StateDisconnected},
}

// CanTransition reports whether target is directly reachable from current.
func CanTransition(current, target State) bool {
	for _, candidate := range transitionTable[current] {
		if candidate == target {
			return true
		}
	}
	return false
}

// States returns every defined state in declaration order.
func States() []State {
	all := make([]State, 0, int(stateCount))
	for s := State(0); s < stateCount; s++ {
		all = append(all, s)
	}
	return all
}
