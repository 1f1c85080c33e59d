package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWriteBuffer_WritabilityWatermarks is spec scenario 4: High=64KiB,
// Low=32KiB. Enqueuing 70KiB against a stalled peer (writes accept nothing)
// crosses the high watermark and fires the writability transition exactly
// once (to false); draining back below the low watermark fires it again
// (to true).
func TestWriteBuffer_WritabilityWatermarks(t *testing.T) {
	const high = 64 * 1024
	const low = 32 * 1024
	w := newWriteBuffer(high, low)
	require.True(t, w.IsWritable())

	payload := make([]byte, 70*1024)
	require.NoError(t, w.addMessage(payload, nil))
	w.addFlush()

	assert.False(t, w.IsWritable(), "pendingBytes exceeds high watermark")
	assert.True(t, w.ConsumeTransition(), "crossing the high watermark must latch a transition")
	assert.False(t, w.ConsumeTransition(), "the latch clears once consumed")

	// Stalled peer: the write accepts nothing, not an error (EAGAIN-style).
	drained, err := w.drainTo(func(p []byte) (int, error) { return 0, nil })
	require.NoError(t, err)
	assert.False(t, drained)
	assert.False(t, w.IsWritable())
	assert.False(t, w.ConsumeTransition(), "no bytes moved, no new transition")

	// Peer resumes and accepts everything down to 30KiB pending, crossing
	// below the low watermark.
	remaining := 70*1024 - 30*1024
	drained, err = w.drainTo(func(p []byte) (int, error) {
		n := remaining
		if n > len(p) {
			n = len(p)
		}
		remaining = 0
		return n, nil
	})
	require.NoError(t, err)
	assert.False(t, drained, "30KiB is still pending, short of fully draining the entry")
	assert.True(t, w.IsWritable(), "pendingBytes dropped to the low watermark")
	assert.True(t, w.ConsumeTransition())
}

func TestWriteBuffer_DrainWritesFlushedBytesAndEmptiesQueue(t *testing.T) {
	w := newWriteBuffer(DefaultWriteBufferHighWaterMark, DefaultWriteBufferLowWaterMark)
	require.NoError(t, w.addMessage([]byte("hello"), nil))
	w.addFlush()

	var written []byte
	drained, err := w.drainTo(func(p []byte) (int, error) {
		written = append(written, p...)
		return len(p), nil
	})
	require.NoError(t, err)
	assert.True(t, drained)
	assert.Equal(t, "hello", string(written))
	assert.True(t, w.isEmpty())
}

func TestWriteBuffer_RejectsUnsupportedMessageType(t *testing.T) {
	w := newWriteBuffer(DefaultWriteBufferHighWaterMark, DefaultWriteBufferLowWaterMark)
	err := w.addMessage(42, nil)
	assert.Error(t, err)
	assert.True(t, w.isEmpty())
}

func TestWriteBuffer_FailAllClearsQueueAndRestoresWritability(t *testing.T) {
	w := newWriteBuffer(DefaultWriteBufferHighWaterMark, DefaultWriteBufferLowWaterMark)
	require.NoError(t, w.addMessage([]byte("abc"), nil))
	w.addFlush()

	cause := assert.AnError
	w.failAll(cause)

	assert.True(t, w.isEmpty())
	assert.Equal(t, 0, w.pendingBytes)
	assert.True(t, w.IsWritable())
}
