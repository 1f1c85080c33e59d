package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteBuf_RetainReleaseRoundTrip(t *testing.T) {
	alloc := NewPooledAllocator()
	buf, err := alloc.Buffer(16, 0)
	require.NoError(t, err)

	_, err = buf.Retain()
	require.NoError(t, err)
	assert.EqualValues(t, 2, buf.RefCount())

	dropped, err := buf.Release()
	require.NoError(t, err)
	assert.False(t, dropped)
	assert.EqualValues(t, 1, buf.RefCount())

	dropped, err = buf.Release()
	require.NoError(t, err)
	assert.True(t, dropped)
	assert.EqualValues(t, 0, buf.RefCount())
}

// TestByteBuf_RefcountAbuse is spec scenario 5: a buffer at refcount 1,
// released twice, raises ErrIllegalRefCount on the second call and never
// double-frees (the pool recycle path in Release only runs once).
func TestByteBuf_RefcountAbuse(t *testing.T) {
	buf := newByteBuf(make([]byte, 8), 0, nil)

	dropped, err := buf.Release()
	require.NoError(t, err)
	assert.True(t, dropped)

	dropped, err = buf.Release()
	assert.ErrorIs(t, err, ErrIllegalRefCount)
	assert.False(t, dropped)
	assert.EqualValues(t, 0, buf.RefCount())
}

func TestByteBuf_ReleasedBufferRejectsAccess(t *testing.T) {
	buf := newByteBuf(make([]byte, 8), 0, nil)
	_, err := buf.Release()
	require.NoError(t, err)

	_, err = buf.WriteBytes([]byte("x"))
	assert.ErrorIs(t, err, ErrBufferReleased)

	_, err = buf.Retain()
	assert.ErrorIs(t, err, ErrBufferReleased)
}

func TestByteBuf_WriteReadRoundTrip(t *testing.T) {
	alloc := NewUnpooledAllocator()
	buf, err := alloc.Buffer(4, 64)
	require.NoError(t, err)

	n, err := buf.WriteBytes([]byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, 11, n)
	assert.Equal(t, 11, buf.ReadableBytes())

	out := make([]byte, 5)
	n, err = buf.ReadBytes(out)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(out))
	assert.Equal(t, 6, buf.ReadableBytes())

	buf.DiscardReadBytes()
	assert.Equal(t, 0, buf.ReaderIndex())
	assert.Equal(t, " world", string(buf.Bytes()))
}

func TestByteBuf_AllocatorRejectsOversizedInitialCapacity(t *testing.T) {
	alloc := NewPooledAllocator()
	_, err := alloc.Buffer(128, 64)
	assert.ErrorIs(t, err, ErrBufferTooLarge)
}

func TestByteBuf_WritableSliceAndAdvance(t *testing.T) {
	buf := newByteBuf(make([]byte, 0), 0, nil)
	slice, err := buf.WritableSlice(4)
	require.NoError(t, err)
	require.Len(t, slice, 4)
	copy(slice, []byte("abcd"))
	buf.Advance(4)
	assert.Equal(t, "abcd", string(buf.Bytes()))
}
