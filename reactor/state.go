package reactor

import "github.com/joeycumines/go-netreactor/internal/atomicstate"

// LoopState is the lifecycle of a Loop, matching spec.md §4.C: a Loop is an
// EventExecutor with "running/shutting-down/shutdown/terminated" states,
// plus a pre-start Awake state and a Sleeping state while blocked in poll.
//
// Values are intentionally distinct from channel.State: the two lifecycles
// are independent machines that happen to share the atomicstate.Machine
// implementation, grounded on the teacher's state.go FastState.
type LoopState uint32

const (
	// StateAwake is the state of a constructed but not yet Run loop.
	StateAwake LoopState = iota
	// StateRunning is the state while the loop is actively ticking.
	StateRunning
	// StateSleeping is the state while blocked in the poller.
	StateSleeping
	// StateTerminating is the state after ShutdownGracefully/Shutdown is
	// called but before the loop goroutine has exited.
	StateTerminating
	// StateTerminated is the terminal state.
	StateTerminated
)

func (s LoopState) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

func newLoopState() *atomicstate.Machine[LoopState] {
	return atomicstate.New(StateAwake)
}
