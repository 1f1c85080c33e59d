// Package pipeline implements the ordered handler chain a Channel drives
// inbound and outbound events through (spec.md §4.F). A Context wraps a
// handler with its position in the chain and its execution affinity;
// propagation walks the chain toward TAIL for inbound events and toward
// HEAD for outbound operations, skipping contexts whose handler doesn't
// implement the relevant capability (spec.md §9's capability-bit
// dispatch).
//
// Grounded structurally on the teacher's eventtarget.go (mutex-guarded
// registration table, doc-comment density, DispatchEvent-style fan-out)
// since the teacher has no pipeline of its own to adapt directly.
package pipeline

import "github.com/joeycumines/go-netreactor/future"

// Handler is any value added to a Pipeline. Most handlers implement
// Inbound, Outbound, or both; a handler implementing neither is legal but
// inert (it never receives an event).
type Handler any

// Inbound is implemented by handlers that react to events flowing from
// the channel toward user code: registration, lifecycle, reads, and
// errors.
type Inbound interface {
	ChannelRegistered(ctx *Context)
	ChannelUnregistered(ctx *Context)
	ChannelActive(ctx *Context)
	ChannelInactive(ctx *Context)
	ChannelRead(ctx *Context, msg any)
	ChannelReadComplete(ctx *Context)
	ChannelWritabilityChanged(ctx *Context)
	UserEventTriggered(ctx *Context, event any)
	ExceptionCaught(ctx *Context, cause error)
}

// Outbound is implemented by handlers that react to operations flowing
// from user code toward the channel: connection setup, writes, and
// teardown.
type Outbound interface {
	Bind(ctx *Context, localAddr Addr, promise future.Promise[struct{}])
	Connect(ctx *Context, remoteAddr, localAddr Addr, promise future.Promise[struct{}])
	Disconnect(ctx *Context, promise future.Promise[struct{}])
	Close(ctx *Context, promise future.Promise[struct{}])
	Deregister(ctx *Context, promise future.Promise[struct{}])
	Read(ctx *Context)
	Write(ctx *Context, msg any, promise future.Promise[struct{}])
	Flush(ctx *Context)
}

// HandlerLifecycle is implemented by handlers that want notice of their
// own addition/removal, independent of whether they're Inbound/Outbound.
type HandlerLifecycle interface {
	HandlerAdded(ctx *Context)
	HandlerRemoved(ctx *Context)
}

// Addr is a minimal network address, satisfied by net.Addr, kept narrow so
// pipeline doesn't need to import net for anything beyond this shape.
type Addr interface {
	Network() string
	String() string
}

// InboundAdapter provides no-op implementations of every Inbound method,
// for handlers that only care about one or two events — embed it the way
// Netty's ChannelInboundHandlerAdapter is embedded.
type InboundAdapter struct{}

func (InboundAdapter) ChannelRegistered(ctx *Context)         { ctx.FireChannelRegistered() }
func (InboundAdapter) ChannelUnregistered(ctx *Context)       { ctx.FireChannelUnregistered() }
func (InboundAdapter) ChannelActive(ctx *Context)             { ctx.FireChannelActive() }
func (InboundAdapter) ChannelInactive(ctx *Context)           { ctx.FireChannelInactive() }
func (InboundAdapter) ChannelRead(ctx *Context, msg any)      { ctx.FireChannelRead(msg) }
func (InboundAdapter) ChannelReadComplete(ctx *Context)       { ctx.FireChannelReadComplete() }
func (InboundAdapter) ChannelWritabilityChanged(ctx *Context) { ctx.FireChannelWritabilityChanged() }
func (InboundAdapter) UserEventTriggered(ctx *Context, event any) {
	ctx.FireUserEventTriggered(event)
}
func (InboundAdapter) ExceptionCaught(ctx *Context, cause error) { ctx.FireExceptionCaught(cause) }

// OutboundAdapter provides no-op pass-through implementations of every
// Outbound method.
type OutboundAdapter struct{}

func (OutboundAdapter) Bind(ctx *Context, localAddr Addr, promise future.Promise[struct{}]) {
	ctx.Bind(localAddr, promise)
}
func (OutboundAdapter) Connect(ctx *Context, remoteAddr, localAddr Addr, promise future.Promise[struct{}]) {
	ctx.Connect(remoteAddr, localAddr, promise)
}
func (OutboundAdapter) Disconnect(ctx *Context, promise future.Promise[struct{}]) {
	ctx.Disconnect(promise)
}
func (OutboundAdapter) Close(ctx *Context, promise future.Promise[struct{}]) { ctx.Close(promise) }
func (OutboundAdapter) Deregister(ctx *Context, promise future.Promise[struct{}]) {
	ctx.Deregister(promise)
}
func (OutboundAdapter) Read(ctx *Context) { ctx.Read() }
func (OutboundAdapter) Write(ctx *Context, msg any, promise future.Promise[struct{}]) {
	ctx.Write(msg, promise)
}
func (OutboundAdapter) Flush(ctx *Context) { ctx.Flush() }
