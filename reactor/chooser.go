package reactor

import "sync/atomic"

// Chooser selects the next Loop from a Group for a newly registered channel.
// Matches spec.md §4.C's requirement that registration assignment be cheap
// and not require a lock over the full Loop slice.
type Chooser interface {
	Next() *Loop
}

// ChooserFactory builds a Chooser over a fixed slice of loops. Factories are
// stateless; the state lives in the Chooser they return.
type ChooserFactory func(loops []*Loop) Chooser

// powerOfTwoChooser uses a bitmask instead of modulus when len(loops) is a
// power of two, following the common reactor/executor-group optimization
// (the teacher's monorepo sibling packages use the same trick for worker
// selection): n&(n-1)==0 lets "idx & (len-1)" replace "idx % len".
type powerOfTwoChooser struct {
	loops []*Loop
	mask  uint64
	next  atomic.Uint64
}

func (c *powerOfTwoChooser) Next() *Loop {
	idx := c.next.Add(1) - 1
	return c.loops[idx&c.mask]
}

// modulusChooser is the fallback for non-power-of-two group sizes.
type modulusChooser struct {
	loops []*Loop
	next  atomic.Uint64
}

func (c *modulusChooser) Next() *Loop {
	idx := c.next.Add(1) - 1
	return c.loops[idx%uint64(len(c.loops))]
}

// NewRoundRobinChooser builds the default Chooser: round-robin, using a
// bitmask when len(loops) is a power of two and plain modulus otherwise.
func NewRoundRobinChooser(loops []*Loop) Chooser {
	n := len(loops)
	if n > 0 && n&(n-1) == 0 {
		cp := make([]*Loop, n)
		copy(cp, loops)
		return &powerOfTwoChooser{loops: cp, mask: uint64(n - 1)}
	}
	cp := make([]*Loop, n)
	copy(cp, loops)
	return &modulusChooser{loops: cp}
}
