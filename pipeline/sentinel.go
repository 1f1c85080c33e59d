package pipeline

import (
	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/logging"
)

// Releasable is implemented by reference-counted messages (buffer.ByteBuf
// satisfies it). TAIL releases any such message that reaches it without
// having been consumed by a user handler, bounding leaks per spec.md
// §4.F.
type Releasable interface {
	Release() (bool, error)
}

// headHandler is HEAD's Outbound implementation: it terminates every
// outbound operation by calling the channel's Unsafe directly.
type headHandler struct{}

func (headHandler) Bind(ctx *Context, localAddr Addr, promise future.Promise[struct{}]) {
	ctx.pipeline.unsafe.Bind(localAddr, promise)
}
func (headHandler) Connect(ctx *Context, remoteAddr, localAddr Addr, promise future.Promise[struct{}]) {
	ctx.pipeline.unsafe.Connect(remoteAddr, localAddr, promise)
}
func (headHandler) Disconnect(ctx *Context, promise future.Promise[struct{}]) {
	ctx.pipeline.unsafe.Disconnect(promise)
}
func (headHandler) Close(ctx *Context, promise future.Promise[struct{}]) {
	ctx.pipeline.unsafe.Close(promise)
}
func (headHandler) Deregister(ctx *Context, promise future.Promise[struct{}]) {
	ctx.pipeline.unsafe.Deregister(promise)
}
func (headHandler) Read(ctx *Context) { ctx.pipeline.unsafe.BeginRead() }
func (headHandler) Write(ctx *Context, msg any, promise future.Promise[struct{}]) {
	ctx.pipeline.unsafe.Write(msg, promise)
}
func (headHandler) Flush(ctx *Context) { ctx.pipeline.unsafe.Flush() }

// tailHandler is TAIL's Inbound implementation: its defaults drop events
// silently rather than propagate further, since there is nothing past TAIL;
// channelRead releases unconsumed reference-counted messages and
// exceptionCaught logs the cause.
type tailHandler struct{}

func (tailHandler) ChannelRegistered(ctx *Context)   {}
func (tailHandler) ChannelUnregistered(ctx *Context) {}
func (tailHandler) ChannelActive(ctx *Context)       {}
func (tailHandler) ChannelInactive(ctx *Context)     {}
func (tailHandler) ChannelRead(ctx *Context, msg any) {
	if r, ok := msg.(Releasable); ok {
		if _, err := r.Release(); err != nil {
			logging.Get().Warning().Err(err).Log("pipeline: failed to release unconsumed message at tail")
		}
	}
}
func (tailHandler) ChannelReadComplete(ctx *Context)       {}
func (tailHandler) ChannelWritabilityChanged(ctx *Context) {}
func (tailHandler) UserEventTriggered(ctx *Context, event any) {}
func (tailHandler) ExceptionCaught(ctx *Context, cause error) {
	logging.Get().Warning().Err(cause).Log("pipeline: unhandled exception reached tail")
}
