package connection

import "fmt"

// State is the streamer lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSubscribed
	StateStreaming
	StateReconnecting
	StateShuttingDown
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateShuttingDown:
		return "shutting_down"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AcceptsTrades reports whether trades may be applied in this state.
func (s State) AcceptsTrades() bool {
	return s == StateSubscribed || s == StateStreaming
}

// Event drives a state change.
type Event int

const (
	EventStart          Event = iota // Run called
	EventOpened                      // socket open, auth sent
	EventAuthenticated               // auth_success received, subscribe sent
	EventTradeAccepted               // a trade was applied
	EventConnectionLost              // dial failed, socket closed, or auth rejected
	EventBackoffElapsed              // reconnect delay over
	EventShutdown                    // cancellation
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventOpened:
		return "opened"
	case EventAuthenticated:
		return "authenticated"
	case EventTradeAccepted:
		return "trade_accepted"
	case EventConnectionLost:
		return "connection_lost"
	case EventBackoffElapsed:
		return "backoff_elapsed"
	case EventShutdown:
		return "shutdown"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type transitionKey struct {
	from State
	on   Event
}

var transitions = map[transitionKey]State{
	{StateDisconnected, EventStart}: StateConnecting,

	{StateConnecting, EventOpened}:         StateAuthenticating,
	{StateConnecting, EventConnectionLost}: StateReconnecting,

	{StateAuthenticating, EventAuthenticated}:   StateSubscribed,
	{StateAuthenticating, EventConnectionLost}: StateReconnecting,

	{StateSubscribed, EventTradeAccepted}:  StateStreaming,
	{StateSubscribed, EventConnectionLost}: StateReconnecting,

	{StateStreaming, EventTradeAccepted}:  StateStreaming,
	{StateStreaming, EventConnectionLost}: StateReconnecting,

	{StateReconnecting, EventBackoffElapsed}: StateConnecting,
}

// Transition returns the state reached from s on e. Shutdown is accepted from
// every state; every other pair not in the table is an error and leaves the
// state unchanged.
func Transition(s State, e Event) (State, error) {
	if e == EventShutdown {
		return StateShuttingDown, nil
	}
	if next, ok := transitions[transitionKey{s, e}]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, s, e)
}
