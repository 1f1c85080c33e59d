package pipeline

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-netreactor/future"
)

// Pipeline is the ordered chain of handlers a Channel drives its events
// through. A Pipeline is exclusively owned by its Channel and exclusively
// owns its chain of Contexts (spec.md §9's ownership model); Contexts and
// handlers hold only a non-owning reference back to it.
type Pipeline struct {
	unsafe Unsafe

	mu    sync.Mutex
	names map[string]*Context
	head  *Context
	tail  *Context
}

var anonymousNameCounter atomic.Uint64

// New constructs a Pipeline terminating outbound operations in unsafe.
// HEAD and TAIL are synthetic contexts: HEAD is outbound-only (it calls
// unsafe directly); TAIL is inbound-only (it logs exceptions, drops other
// events, and releases any reference-counted message that reaches it
// unconsumed).
func New(unsafe Unsafe) *Pipeline {
	p := &Pipeline{unsafe: unsafe, names: make(map[string]*Context)}

	head := &Context{name: "head", pipeline: p, handler: headHandler{}, cap: capOutbound}
	head.outbound = headHandler{}
	tail := &Context{name: "tail", pipeline: p, handler: tailHandler{}, cap: capInbound}
	tail.inbound = tailHandler{}

	head.next = tail
	tail.prev = head
	p.head, p.tail = head, tail
	return p
}

// FirstContext returns the context nearest HEAD that holds a user handler,
// or nil if the pipeline is empty.
func (p *Pipeline) FirstContext() *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.head.next == p.tail {
		return nil
	}
	return p.head.next
}

// LastContext returns the context nearest TAIL that holds a user handler,
// or nil if the pipeline is empty.
func (p *Pipeline) LastContext() *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tail.prev == p.head {
		return nil
	}
	return p.tail.prev
}

// Get returns the context registered under name, or nil.
func (p *Pipeline) Get(name string) *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.names[name]
}

// ContextOf returns the context wrapping handler, or nil if handler was
// never added (or has since been removed).
func (p *Pipeline) ContextOf(handler Handler) *Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	for c := p.head.next; c != p.tail; c = c.next {
		if c.handler == handler {
			return c
		}
	}
	return nil
}

func newContext(name string, handler Handler, executor future.Executor, pipeline *Pipeline) *Context {
	c := &Context{name: name, pipeline: pipeline, handler: handler, executor: executor}
	if in, ok := handler.(Inbound); ok {
		c.inbound = in
		c.cap |= capInbound
	}
	if out, ok := handler.(Outbound); ok {
		c.outbound = out
		c.cap |= capOutbound
	}
	return c
}

func autoName(handler Handler) string {
	return fmt.Sprintf("handler-%d-%T", anonymousNameCounter.Add(1), handler)
}

// AddFirst inserts handler immediately after HEAD. An empty name
// auto-generates one. executor may be nil to use the channel's own Loop.
func (p *Pipeline) AddFirst(name string, handler Handler, executor future.Executor) (*Context, error) {
	if name == "" {
		name = autoName(handler)
	}
	p.mu.Lock()
	if _, exists := p.names[name]; exists {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: duplicate handler name %q", name)
	}
	c := newContext(name, handler, executor, p)
	p.linkAfter(p.head, c)
	p.names[name] = c
	p.mu.Unlock()
	p.notifyAdded(c)
	return c, nil
}

// AddLast inserts handler immediately before TAIL.
func (p *Pipeline) AddLast(name string, handler Handler, executor future.Executor) (*Context, error) {
	if name == "" {
		name = autoName(handler)
	}
	p.mu.Lock()
	if _, exists := p.names[name]; exists {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: duplicate handler name %q", name)
	}
	c := newContext(name, handler, executor, p)
	p.linkAfter(p.tail.prev, c)
	p.names[name] = c
	p.mu.Unlock()
	p.notifyAdded(c)
	return c, nil
}

// AddBefore inserts handler immediately before the context named base.
func (p *Pipeline) AddBefore(base, name string, handler Handler, executor future.Executor) (*Context, error) {
	if name == "" {
		name = autoName(handler)
	}
	p.mu.Lock()
	baseCtx, ok := p.names[base]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: unknown context %q", base)
	}
	if _, exists := p.names[name]; exists {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: duplicate handler name %q", name)
	}
	c := newContext(name, handler, executor, p)
	p.linkAfter(baseCtx.prev, c)
	p.names[name] = c
	p.mu.Unlock()
	p.notifyAdded(c)
	return c, nil
}

// AddAfter inserts handler immediately after the context named base.
func (p *Pipeline) AddAfter(base, name string, handler Handler, executor future.Executor) (*Context, error) {
	if name == "" {
		name = autoName(handler)
	}
	p.mu.Lock()
	baseCtx, ok := p.names[base]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: unknown context %q", base)
	}
	if _, exists := p.names[name]; exists {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: duplicate handler name %q", name)
	}
	c := newContext(name, handler, executor, p)
	p.linkAfter(baseCtx, c)
	p.names[name] = c
	p.mu.Unlock()
	p.notifyAdded(c)
	return c, nil
}

// linkAfter must be called with p.mu held.
func (p *Pipeline) linkAfter(anchor, c *Context) {
	next := anchor.next
	anchor.next = c
	c.prev = anchor
	c.next = next
	next.prev = c
}

// Remove detaches the context registered under name (or wrapping handler,
// via ContextOf+Remove) from the pipeline, restoring the prior neighbor
// chain exactly.
func (p *Pipeline) Remove(name string) error {
	p.mu.Lock()
	c, ok := p.names[name]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("pipeline: unknown context %q", name)
	}
	c.prev.next = c.next
	c.next.prev = c.prev
	delete(p.names, name)
	p.mu.Unlock()
	p.notifyRemoved(c)
	return nil
}

// Replace swaps the context registered under name for a new handler,
// preserving its position.
func (p *Pipeline) Replace(name string, newName string, handler Handler, executor future.Executor) (*Context, error) {
	if newName == "" {
		newName = autoName(handler)
	}
	p.mu.Lock()
	old, ok := p.names[name]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("pipeline: unknown context %q", name)
	}
	c := newContext(newName, handler, executor, p)
	c.prev, c.next = old.prev, old.next
	old.prev.next = c
	old.next.prev = c
	delete(p.names, name)
	p.names[newName] = c
	p.mu.Unlock()
	p.notifyRemoved(old)
	p.notifyAdded(c)
	return c, nil
}

func (p *Pipeline) notifyAdded(c *Context) {
	if lc, ok := c.handler.(HandlerLifecycle); ok {
		c.exec().Submit(func() { lc.HandlerAdded(c) })
	}
	if init, ok := c.handler.(*Initializer); ok {
		init.maybeRun(c)
	}
}

func (p *Pipeline) notifyRemoved(c *Context) {
	if lc, ok := c.handler.(HandlerLifecycle); ok {
		c.exec().Submit(func() { lc.HandlerRemoved(c) })
	}
}

// --- pipeline-level inbound entry points (start at HEAD, walk to TAIL) ---

func (p *Pipeline) FireChannelRegistered()      { p.head.FireChannelRegistered() }
func (p *Pipeline) FireChannelUnregistered()    { p.head.FireChannelUnregistered() }
func (p *Pipeline) FireChannelActive()          { p.head.FireChannelActive() }
func (p *Pipeline) FireChannelInactive()        { p.head.FireChannelInactive() }
func (p *Pipeline) FireChannelRead(msg any)     { p.head.FireChannelRead(msg) }
func (p *Pipeline) FireChannelReadComplete()    { p.head.FireChannelReadComplete() }
func (p *Pipeline) FireChannelWritabilityChanged() { p.head.FireChannelWritabilityChanged() }
func (p *Pipeline) FireUserEventTriggered(event any) { p.head.FireUserEventTriggered(event) }
func (p *Pipeline) FireExceptionCaught(cause error) { p.head.FireExceptionCaught(cause) }

// --- pipeline-level outbound entry points (start at TAIL, walk to HEAD) ---

func (p *Pipeline) Bind(localAddr Addr, promise future.Promise[struct{}]) { p.tail.Bind(localAddr, promise) }
func (p *Pipeline) Connect(remoteAddr, localAddr Addr, promise future.Promise[struct{}]) {
	p.tail.Connect(remoteAddr, localAddr, promise)
}
func (p *Pipeline) Disconnect(promise future.Promise[struct{}]) { p.tail.Disconnect(promise) }
func (p *Pipeline) Close(promise future.Promise[struct{}])      { p.tail.Close(promise) }
func (p *Pipeline) Deregister(promise future.Promise[struct{}]) { p.tail.Deregister(promise) }
func (p *Pipeline) Read()                                       { p.tail.Read() }
func (p *Pipeline) Write(msg any, promise future.Promise[struct{}]) { p.tail.Write(msg, promise) }
func (p *Pipeline) Flush()                                      { p.tail.Flush() }

// WriteAndFlush combines Write and Flush, matching spec.md §4.E's
// writeAndFlush convenience operation.
func (p *Pipeline) WriteAndFlush(msg any, promise future.Promise[struct{}]) {
	p.tail.Write(msg, promise)
	p.tail.Flush()
}
