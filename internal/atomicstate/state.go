// Package atomicstate provides a small lock-free CAS state machine shared by
// the reactor's Loop and the channel package's connection lifecycle.
//
// Both users follow the same shape: a handful of named states, irreversible
// once terminal, transitioned with a single compare-and-swap. Lifting it out
// of the reactor loop (where the teacher had it as FastState, specific to
// loop states) avoids writing the identical bit twice for Channel lifecycle.
package atomicstate

import "sync/atomic"

// Machine is a lock-free state holder for any small integer-backed state
// enum. The zero value is not ready for use; construct with New.
type Machine[T ~uint32] struct {
	v atomic.Uint32
}

// New creates a Machine starting in the given state.
func New[T ~uint32](initial T) *Machine[T] {
	m := &Machine[T]{}
	m.v.Store(uint32(initial))
	return m
}

// Load returns the current state.
func (m *Machine[T]) Load() T {
	return T(m.v.Load())
}

// Store unconditionally sets the state. Reserved for irreversible
// transitions (e.g. into a terminal state) where no competing writer can
// observe an intermediate value.
func (m *Machine[T]) Store(state T) {
	m.v.Store(uint32(state))
}

// TryTransition attempts a single CAS from "from" to "to". Returns true on
// success.
func (m *Machine[T]) TryTransition(from, to T) bool {
	return m.v.CompareAndSwap(uint32(from), uint32(to))
}

// TransitionAny attempts a CAS from any of validFrom to "to", returning true
// on the first one that succeeds.
func (m *Machine[T]) TransitionAny(validFrom []T, to T) bool {
	for _, from := range validFrom {
		if m.v.CompareAndSwap(uint32(from), uint32(to)) {
			return true
		}
	}
	return false
}
