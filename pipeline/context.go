package pipeline

import (
	"fmt"
	"sync/atomic"

	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/nerr"
)

// capability bits cached per Context so propagation can skip non-
// participating handlers in O(1), per spec.md §9.
type capability uint8

const (
	capInbound capability = 1 << iota
	capOutbound
)

// Context is a handler's position and execution environment within a
// Pipeline. Handlers observe events only through the Context passed to
// their callbacks; a Context is never shared between pipelines.
type Context struct {
	name     string
	pipeline *Pipeline
	handler  Handler
	inbound  Inbound
	outbound Outbound
	cap      capability
	executor future.Executor // nil: use the pipeline's channel executor

	initialized atomic.Bool // not used; Initializer keeps its own re-entry guard (Initializer.ran)

	prev, next *Context
}

// Name returns the handler's name within the pipeline.
func (c *Context) Name() string { return c.name }

// Handler returns the wrapped handler value.
func (c *Context) Handler() Handler { return c.handler }

// Pipeline returns the owning Pipeline.
func (c *Context) Pipeline() *Pipeline { return c.pipeline }

func (c *Context) exec() future.Executor {
	if c.executor != nil {
		return c.executor
	}
	return c.pipeline.unsafe.Executor()
}

// --- inbound propagation: walk toward TAIL ---

func (c *Context) nextInbound() *Context {
	for n := c.next; n != nil; n = n.next {
		if n.cap&capInbound != 0 {
			return n
		}
	}
	return nil
}

func (c *Context) invokeInbound(fn func(n *Context)) {
	n := c.nextInbound()
	if n == nil {
		return
	}
	n.exec().Submit(func() {
		defer recoverInto(n, "inbound handler panic")
		fn(n)
	})
}

// FireChannelRegistered propagates channelRegistered to the next inbound
// context.
func (c *Context) FireChannelRegistered() {
	c.invokeInbound(func(n *Context) { n.inbound.ChannelRegistered(n) })
}

// FireChannelUnregistered propagates channelUnregistered.
func (c *Context) FireChannelUnregistered() {
	c.invokeInbound(func(n *Context) { n.inbound.ChannelUnregistered(n) })
}

// FireChannelActive propagates channelActive.
func (c *Context) FireChannelActive() {
	c.invokeInbound(func(n *Context) { n.inbound.ChannelActive(n) })
}

// FireChannelInactive propagates channelInactive.
func (c *Context) FireChannelInactive() {
	c.invokeInbound(func(n *Context) { n.inbound.ChannelInactive(n) })
}

// FireChannelRead propagates a single read message.
func (c *Context) FireChannelRead(msg any) {
	c.invokeInbound(func(n *Context) { n.inbound.ChannelRead(n, msg) })
}

// FireChannelReadComplete propagates the end of a read batch.
func (c *Context) FireChannelReadComplete() {
	c.invokeInbound(func(n *Context) { n.inbound.ChannelReadComplete(n) })
}

// FireChannelWritabilityChanged propagates a writability transition.
func (c *Context) FireChannelWritabilityChanged() {
	c.invokeInbound(func(n *Context) { n.inbound.ChannelWritabilityChanged(n) })
}

// FireUserEventTriggered propagates a user-defined event.
func (c *Context) FireUserEventTriggered(event any) {
	c.invokeInbound(func(n *Context) { n.inbound.UserEventTriggered(n, event) })
}

// FireExceptionCaught propagates a caught exception, per spec.md §4.F's
// exception funnel: any handler panic/error surfaces here at the next
// inbound context, logged if it reaches TAIL.
func (c *Context) FireExceptionCaught(cause error) {
	c.invokeInbound(func(n *Context) { n.inbound.ExceptionCaught(n, cause) })
}

// --- outbound propagation: walk toward HEAD, terminating in Unsafe ---

func (c *Context) prevOutbound() *Context {
	for p := c.prev; p != nil; p = p.prev {
		if p.cap&capOutbound != 0 {
			return p
		}
	}
	return nil
}

// Bind propagates a bind operation toward HEAD.
func (c *Context) Bind(localAddr Addr, promise future.Promise[struct{}]) {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverIntoPromise(p, promise, "bind handler panic")
		p.outbound.Bind(p, localAddr, promise)
	})
}

// Connect propagates a connect operation toward HEAD.
func (c *Context) Connect(remoteAddr, localAddr Addr, promise future.Promise[struct{}]) {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverIntoPromise(p, promise, "connect handler panic")
		p.outbound.Connect(p, remoteAddr, localAddr, promise)
	})
}

// Disconnect propagates a disconnect operation toward HEAD.
func (c *Context) Disconnect(promise future.Promise[struct{}]) {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverIntoPromise(p, promise, "disconnect handler panic")
		p.outbound.Disconnect(p, promise)
	})
}

// Close propagates a close operation toward HEAD.
func (c *Context) Close(promise future.Promise[struct{}]) {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverIntoPromise(p, promise, "close handler panic")
		p.outbound.Close(p, promise)
	})
}

// Deregister propagates a deregister operation toward HEAD.
func (c *Context) Deregister(promise future.Promise[struct{}]) {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverIntoPromise(p, promise, "deregister handler panic")
		p.outbound.Deregister(p, promise)
	})
}

// Read propagates a read request toward HEAD.
func (c *Context) Read() {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverInto(p, "read handler panic")
		p.outbound.Read(p)
	})
}

// Write propagates a write toward HEAD. The message's ownership passes to
// the callee; HEAD hands it to the channel's Unsafe.
func (c *Context) Write(msg any, promise future.Promise[struct{}]) {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverIntoPromise(p, promise, "write handler panic")
		p.outbound.Write(p, msg, promise)
	})
}

// Flush propagates a flush toward HEAD.
func (c *Context) Flush() {
	p := c.prevOutbound()
	p.exec().Submit(func() {
		defer recoverInto(p, "flush handler panic")
		p.outbound.Flush(p)
	})
}

func recoverInto(ctx *Context, msg string) {
	if r := recover(); r != nil {
		ctx.FireExceptionCaught(panicToError(msg, r))
	}
}

func recoverIntoPromise(ctx *Context, promise future.Promise[struct{}], msg string) {
	if r := recover(); r != nil {
		// Outbound failures fail the associated promise only; they are
		// not injected into the inbound exceptionCaught path (spec.md §7).
		promise.TryFailure(panicToError(msg, r))
	}
}

func panicToError(msg string, r any) error {
	if err, ok := r.(error); ok {
		return nerr.Wrap(nerr.KindUnknown, msg, err)
	}
	return nerr.New(nerr.KindUnknown, fmt.Sprintf("%s: %v", msg, r))
}
