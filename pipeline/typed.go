package pipeline

// TypedHandler matches inbound messages against a compile-time type T
// instead of the runtime reflective type assertion spec.md §9 calls out
// as the thing to replace: a generic handler where the compiler enforces
// the match. Messages that don't match T are forwarded unchanged.
type TypedHandler[T any] struct {
	InboundAdapter

	// OnMessage handles an inbound message once it has matched type T.
	OnMessage func(ctx *Context, msg T)

	// AutoRelease, if true, releases a matched message (if it implements
	// Releasable) after OnMessage returns, whether normally or via panic.
	AutoRelease bool
}

// ChannelRead implements Inbound: it type-asserts msg against T, invoking
// OnMessage on a match (auto-releasing afterward if configured) or
// forwarding the message unchanged otherwise. An unmatched message is
// never released by this handler.
func (h *TypedHandler[T]) ChannelRead(ctx *Context, msg any) {
	typed, ok := msg.(T)
	if !ok {
		ctx.FireChannelRead(msg)
		return
	}
	if h.AutoRelease {
		defer func() {
			if r, ok := any(typed).(Releasable); ok {
				_, _ = r.Release()
			}
		}()
	}
	h.OnMessage(ctx, typed)
}
