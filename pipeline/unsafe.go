package pipeline

import "github.com/joeycumines/go-netreactor/future"

// Unsafe is the channel-side contract the pipeline's HEAD context
// terminates outbound operations into, and TAIL's exception default logs
// against. Named for the teacher's spec's own "unsafe" vocabulary
// (spec.md §4.E): called only from the owning reactor's goroutine.
type Unsafe interface {
	// Executor returns the Loop (or other future.Executor) the owning
	// channel is affine to; Contexts default to this executor unless
	// constructed with an explicit override.
	Executor() future.Executor

	// Registered reports whether the channel has completed registration
	// with its reactor, used by Initializer to decide whether to run
	// immediately on addition or wait for channelRegistered.
	Registered() bool

	Bind(localAddr Addr, promise future.Promise[struct{}])
	Connect(remoteAddr, localAddr Addr, promise future.Promise[struct{}])
	Disconnect(promise future.Promise[struct{}])
	Close(promise future.Promise[struct{}])
	Deregister(promise future.Promise[struct{}])
	BeginRead()
	Write(msg any, promise future.Promise[struct{}])
	Flush()
}
