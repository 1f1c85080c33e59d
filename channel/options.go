package channel

import (
	"time"

	"github.com/joeycumines/go-netreactor/buffer"
)

// Config is a channel's recognized configuration bag, per spec.md §6's
// "Configuration options" set. Unlike the teacher's options.go (closures
// resolved once at construction), Config is a plain mutable struct: channel
// options are read repeatedly over a channel's life (e.g. AutoRead is
// checked after every read batch), not just at construction.
type Config struct {
	// ConnectTimeout bounds how long a connect may remain pending before
	// failing with ConnectTimeout. Default 30s.
	ConnectTimeout time.Duration

	// WriteBufferHighWaterMark is the pending-bytes threshold above which
	// the write buffer reports not writable.
	WriteBufferHighWaterMark int

	// WriteBufferLowWaterMark is the pending-bytes threshold at or below
	// which the write buffer reports writable again, after having crossed
	// the high watermark. Must be <= WriteBufferHighWaterMark.
	WriteBufferLowWaterMark int

	// AutoRead, if true, re-issues a read request automatically after every
	// channelReadComplete. Default true.
	AutoRead bool

	// RecvBufferSizer decides the byte allocation size for each read
	// iteration, per spec.md §4.E's RecvByteBufAllocator.Handle.
	RecvBufferSizer RecvBufferSizer

	// Allocator is the ByteBufAllocator new inbound buffers are drawn from.
	Allocator buffer.Allocator
}

const (
	// DefaultConnectTimeout is spec.md §6's CONNECT_TIMEOUT_MILLIS default.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultWriteBufferHighWaterMark is a conservative default chosen to
	// match common 64 KiB socket buffer sizing.
	DefaultWriteBufferHighWaterMark = 64 * 1024

	// DefaultWriteBufferLowWaterMark is half of the default high watermark,
	// giving hysteresis between the two transitions.
	DefaultWriteBufferLowWaterMark = 32 * 1024
)

// DefaultConfig returns a Config populated with spec.md §6's documented
// defaults and a pooled allocator.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout:           DefaultConnectTimeout,
		WriteBufferHighWaterMark: DefaultWriteBufferHighWaterMark,
		WriteBufferLowWaterMark:  DefaultWriteBufferLowWaterMark,
		AutoRead:                 true,
		RecvBufferSizer:          NewAdaptiveRecvBufferSizer(),
		Allocator:                buffer.NewPooledAllocator(),
	}
}

// RecvBufferSizer decides how large a receive buffer to allocate for the
// next read iteration and whether the read loop should continue, matching
// spec.md §4.E's "RecvByteBufAllocator.Handle" role.
type RecvBufferSizer interface {
	// NextCapacity returns the buffer capacity to allocate for the next
	// read.
	NextCapacity() int
	// Record is called with the number of bytes actually read (n>0) or a
	// negative value when a read produced no bytes (end-of-stream, error or
	// would-block), to inform the next NextCapacity.
	Record(n int)
	// ContinueReading reports whether the read loop should attempt another
	// iteration in the current batch, given the last Record.
	ContinueReading() bool
}

// adaptiveRecvBufferSizer doubles its size after a read that filled the
// buffer and halves it after a read that filled less than half of it, a
// simplified version of Netty's AdaptiveRecvByteBufAllocator.
type adaptiveRecvBufferSizer struct {
	min, max, current int
	lastRead          int
}

// NewAdaptiveRecvBufferSizer returns a RecvBufferSizer that adapts its
// buffer size between 64B and 64KiB based on observed read sizes.
func NewAdaptiveRecvBufferSizer() RecvBufferSizer {
	return &adaptiveRecvBufferSizer{min: 64, max: 65536, current: 2048}
}

func (s *adaptiveRecvBufferSizer) NextCapacity() int { return s.current }

func (s *adaptiveRecvBufferSizer) Record(n int) {
	s.lastRead = n
	if n <= 0 {
		return
	}
	if n >= s.current {
		s.current *= 2
		if s.current > s.max {
			s.current = s.max
		}
	} else if n < s.current/2 {
		s.current /= 2
		if s.current < s.min {
			s.current = s.min
		}
	}
}

// ContinueReading reports true while the last read returned bytes and
// filled at least half of the next capacity (as adjusted by Record); a read
// that filled the buffer therefore always continues the batch.
func (s *adaptiveRecvBufferSizer) ContinueReading() bool {
	return s.lastRead > 0 && s.lastRead >= s.current/2
}
