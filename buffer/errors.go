package buffer

import "errors"

// Sentinel errors for ByteBuf misuse, per spec.md §4.E/§7's ResourceError
// taxonomy (IllegalRefCount, BufferReleased, BufferTooLarge).
var (
	// ErrIllegalRefCount is returned by Retain/Release when the resulting
	// reference count would be invalid (e.g. releasing more times than
	// retained).
	ErrIllegalRefCount = errors.New("buffer: illegal reference count")

	// ErrBufferReleased is returned by any ByteBuf accessor once the
	// buffer's reference count has reached zero.
	ErrBufferReleased = errors.New("buffer: already released")

	// ErrBufferTooLarge is returned by the Allocator when a requested
	// capacity exceeds MaxCapacity.
	ErrBufferTooLarge = errors.New("buffer: requested capacity too large")
)
