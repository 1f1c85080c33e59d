package pipeline

import (
	"sync/atomic"

	"github.com/joeycumines/go-netreactor/future"
)

// Initializer is the one-shot ChannelInitializer pattern from spec.md
// §4.F: a handler whose Init callback populates the pipeline, running
// exactly once (guarded by a CAS so a re-entrant add from within Init
// itself can't double-run), then removing itself.
type Initializer struct {
	InboundAdapter
	Init func(p *Pipeline)
	ran  atomic.Bool
}

// NewInitializer wraps init as a one-shot pipeline-populating handler.
func NewInitializer(init func(p *Pipeline)) *Initializer {
	return &Initializer{Init: init}
}

// ChannelRegistered runs Init if the channel has just registered and Init
// hasn't already run, then continues propagation.
func (h *Initializer) ChannelRegistered(ctx *Context) {
	h.run(ctx)
	ctx.FireChannelRegistered()
}

func (h *Initializer) run(ctx *Context) {
	if !h.ran.CompareAndSwap(false, true) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			ctx.FireExceptionCaught(panicToError("channel initializer panic", r))
			ctx.Close(future.New[struct{}](nil))
		}
		_ = ctx.pipeline.Remove(ctx.name)
	}()
	h.Init(ctx.pipeline)
}

// maybeRun runs Init immediately (on ctx's executor) if the channel is
// already registered by the time this handler was added, matching
// spec.md §4.F's "added after registration" case.
func (h *Initializer) maybeRun(ctx *Context) {
	if ctx.pipeline.unsafe.Registered() {
		ctx.exec().Submit(func() { h.run(ctx) })
	}
}
