package channel

import "github.com/joeycumines/go-netreactor/internal/atomicstate"

// State is the non-blocking client channel lifecycle table from spec.md
// §4.E, backed by the same lock-free CAS machine the reactor uses for
// LoopState.
type State uint32

const (
	StateUnregistered State = iota
	StateRegistering
	StateRegistered
	StateConnecting
	StateActive
	StateClosing
	StateUnregistering
	StateTerminal
)

func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateUnregistering:
		return "unregistering"
	case StateTerminal:
		return "terminal"
	default:
		return "unknown"
	}
}

func newState() *atomicstate.Machine[State] { return atomicstate.New(StateUnregistered) }
