package reactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLoops fabricates n distinct *Loop values with stable, distinguishable
// identities, without starting a poller — enough for Chooser, which only
// ever dereferences the slice index via Next().
func fakeLoops(n int) []*Loop {
	out := make([]*Loop, n)
	for i := range out {
		out[i] = &Loop{id: uint64(i) + 1}
	}
	return out
}

// TestChooser_PowerOfTwo is spec scenario 1's first half: 4 executors, the
// bitmask chooser on calls {0..7} returns indices {0,1,2,3,0,1,2,3}.
func TestChooser_PowerOfTwo(t *testing.T) {
	loops := fakeLoops(4)
	chooser := NewRoundRobinChooser(loops)

	want := []int{0, 1, 2, 3, 0, 1, 2, 3}
	for i, w := range want {
		got := chooser.Next()
		require.Same(t, loops[w], got, "call %d", i)
	}
}

// TestChooser_Modulus is spec scenario 1's second half: 3 executors (not a
// power of two), the same call sequence returns {0,1,2,0,1,2,0,1}.
func TestChooser_Modulus(t *testing.T) {
	loops := fakeLoops(3)
	chooser := NewRoundRobinChooser(loops)

	want := []int{0, 1, 2, 0, 1, 2, 0, 1}
	for i, w := range want {
		got := chooser.Next()
		require.Same(t, loops[w], got, "call %d", i)
	}
}

func TestChooser_PicksBitmaskOnlyForPowersOfTwo(t *testing.T) {
	_, isBitmask := NewRoundRobinChooser(fakeLoops(8)).(*powerOfTwoChooser)
	assert.True(t, isBitmask)

	_, isModulus := NewRoundRobinChooser(fakeLoops(5)).(*modulusChooser)
	assert.True(t, isModulus)
}
