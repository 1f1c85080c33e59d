package pipeline

import (
	"testing"

	"github.com/joeycumines/go-netreactor/future"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inlineExecutor runs submitted work synchronously, making event ordering
// deterministic and assertable within a single goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Submit(fn func()) { fn() }

// fakeUnsafe is a minimal Unsafe test double: it records every outbound
// call it receives instead of touching a real socket.
type fakeUnsafe struct {
	registered bool
	calls      []string
}

func (u *fakeUnsafe) Executor() future.Executor { return inlineExecutor{} }
func (u *fakeUnsafe) Registered() bool           { return u.registered }
func (u *fakeUnsafe) Bind(Addr, future.Promise[struct{}])             { u.calls = append(u.calls, "bind") }
func (u *fakeUnsafe) Connect(Addr, Addr, future.Promise[struct{}])    { u.calls = append(u.calls, "connect") }
func (u *fakeUnsafe) Disconnect(future.Promise[struct{}])             { u.calls = append(u.calls, "disconnect") }
func (u *fakeUnsafe) Close(future.Promise[struct{}])                  { u.calls = append(u.calls, "close") }
func (u *fakeUnsafe) Deregister(future.Promise[struct{}])             { u.calls = append(u.calls, "deregister") }
func (u *fakeUnsafe) BeginRead()                                      { u.calls = append(u.calls, "beginRead") }
func (u *fakeUnsafe) Write(any, future.Promise[struct{}])             { u.calls = append(u.calls, "write") }
func (u *fakeUnsafe) Flush()                                          { u.calls = append(u.calls, "flush") }

// recordingHandler records every lifecycle/inbound event it observes, in
// order, onto a shared slice — used to assert firing order across a chain.
type recordingHandler struct {
	InboundAdapter
	name  string
	order *[]string
}

func (h *recordingHandler) HandlerAdded(ctx *Context)   { *h.order = append(*h.order, h.name+":added") }
func (h *recordingHandler) HandlerRemoved(ctx *Context) { *h.order = append(*h.order, h.name+":removed") }
func (h *recordingHandler) ChannelRegistered(ctx *Context) {
	*h.order = append(*h.order, h.name+":registered")
	ctx.FireChannelRegistered()
}
func (h *recordingHandler) ChannelActive(ctx *Context) {
	*h.order = append(*h.order, h.name+":active")
	ctx.FireChannelActive()
}

// TestPipeline_AddLastRemoveRoundTrip is the round-trip property from
// spec.md §8: adding a handler then removing it restores the exact prior
// neighbor chain (HEAD<->TAIL directly), and a subsequent add lands in the
// same position a fresh pipeline would have put it.
func TestPipeline_AddLastRemoveRoundTrip(t *testing.T) {
	p := New(&fakeUnsafe{})

	assert.Nil(t, p.FirstContext())
	assert.Nil(t, p.LastContext())

	var order []string
	h := &recordingHandler{name: "h", order: &order}
	ctx, err := p.AddLast("h", h, nil)
	require.NoError(t, err)
	require.NotNil(t, ctx)

	assert.Same(t, ctx, p.FirstContext())
	assert.Same(t, ctx, p.LastContext())
	assert.Same(t, ctx, p.Get("h"))
	assert.Same(t, ctx, p.ContextOf(h))

	require.NoError(t, p.Remove("h"))
	assert.Nil(t, p.FirstContext())
	assert.Nil(t, p.LastContext())
	assert.Nil(t, p.Get("h"))

	// A second handler, added after removal, must land exactly where the
	// first one did — proof the head/tail link was fully restored rather
	// than left pointing at the removed context.
	h2 := &recordingHandler{name: "h2", order: &order}
	ctx2, err := p.AddLast("h2", h2, nil)
	require.NoError(t, err)
	assert.Same(t, ctx2, p.FirstContext())
	assert.Same(t, ctx2, p.LastContext())

	assert.Equal(t, []string{"h:added", "h:removed", "h2:added"}, order)
}

func TestPipeline_DuplicateNameRejected(t *testing.T) {
	p := New(&fakeUnsafe{})
	_, err := p.AddLast("dup", &recordingHandler{name: "a", order: &[]string{}}, nil)
	require.NoError(t, err)
	_, err = p.AddLast("dup", &recordingHandler{name: "b", order: &[]string{}}, nil)
	assert.Error(t, err)
}

// TestPipeline_EventOrdering exercises the connect-success-style ordering
// guarantee: handlerAdded fires (synchronously, on add) strictly before
// channelRegistered, which fires strictly before channelActive.
func TestPipeline_EventOrdering(t *testing.T) {
	p := New(&fakeUnsafe{})
	var order []string
	h := &recordingHandler{name: "h", order: &order}
	_, err := p.AddLast("h", h, nil)
	require.NoError(t, err)

	p.FireChannelRegistered()
	p.FireChannelActive()

	assert.Equal(t, []string{"h:added", "h:registered", "h:active"}, order)
}

// TestPipeline_MultipleHandlersPreserveRegistrationOrder checks that
// inbound events visit handlers in the order they were added (HEAD-to-
// TAIL).
func TestPipeline_MultipleHandlersPreserveRegistrationOrder(t *testing.T) {
	p := New(&fakeUnsafe{})
	var order []string
	first := &recordingHandler{name: "first", order: &order}
	second := &recordingHandler{name: "second", order: &order}
	_, err := p.AddLast("first", first, nil)
	require.NoError(t, err)
	_, err = p.AddLast("second", second, nil)
	require.NoError(t, err)

	order = nil
	p.FireChannelRegistered()
	assert.Equal(t, []string{"first:registered", "second:registered"}, order)
}

func TestPipeline_WriteAndFlushReachesUnsafe(t *testing.T) {
	u := &fakeUnsafe{}
	p := New(u)
	p.WriteAndFlush([]byte("x"), nil)
	assert.Equal(t, []string{"write", "flush"}, u.calls)
}

func TestPipeline_CloseReachesUnsafe(t *testing.T) {
	u := &fakeUnsafe{}
	p := New(u)
	p.Close(nil)
	assert.Equal(t, []string{"close"}, u.calls)
}
