package channel

import (
	"github.com/joeycumines/go-netreactor/buffer"
	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/pipeline"
	"github.com/joeycumines/go-netreactor/reactor"
)

// Addr is the narrow address contract pipeline.Unsafe's Bind/Connect speak
// (pipeline.Addr re-exported here so callers needn't import pipeline just
// to construct one).
type Addr = pipeline.Addr

// Channel is the public, asynchronous per-connection contract of spec.md
// §4.E/§6: every mutating operation returns (or accepts) a future/promise,
// and calls from outside the channel's own reactor goroutine are
// trampolined onto it. Channel is deliberately narrow — callers that need
// transport-specific knobs type-assert to the concrete type (e.g.
// *NonBlockingChannel).
type Channel interface {
	ID() ID
	Pipeline() *pipeline.Pipeline
	Config() *Config
	Allocator() buffer.Allocator
	Loop() *reactor.Loop
	State() State
	IsOpen() bool
	IsActive() bool
	IsWritable() bool
	LocalAddr() Addr
	RemoteAddr() Addr

	Register(loop *reactor.Loop) future.Future[struct{}]
	Bind(local Addr) future.Future[struct{}]
	Connect(remote, local Addr) future.Future[struct{}]
	Disconnect() future.Future[struct{}]
	Close() future.Future[struct{}]
	Deregister() future.Future[struct{}]
	Read()
	Write(msg any) future.Future[struct{}]
	Flush()
	WriteAndFlush(msg any) future.Future[struct{}]
}
