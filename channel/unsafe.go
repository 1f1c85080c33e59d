package channel

import (
	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/pipeline"
)

// unsafeImpl adapts NonBlockingChannel to pipeline.Unsafe. It exists as a
// distinct type (rather than methods directly on NonBlockingChannel)
// because the public Channel contract and pipeline.Unsafe both want a
// Connect/Disconnect/Close/... method name with different signatures
// (future-returning convenience vs promise-accepting internal contract);
// Go methods can't overload on signature, so HEAD talks to this adapter
// while user code talks to the Channel interface.
type unsafeImpl struct{ ch *NonBlockingChannel }

var _ pipeline.Unsafe = unsafeImpl{}

func (u unsafeImpl) Executor() future.Executor { return u.ch.loopExecutor() }

func (u unsafeImpl) Registered() bool { return u.ch.State() >= StateRegistered }

func (u unsafeImpl) Bind(localAddr pipeline.Addr, promise future.Promise[struct{}]) {
	u.ch.unsafeBind(localAddr, promise)
}

func (u unsafeImpl) Connect(remoteAddr, localAddr pipeline.Addr, promise future.Promise[struct{}]) {
	u.ch.unsafeConnect(remoteAddr, localAddr, promise)
}

func (u unsafeImpl) Disconnect(promise future.Promise[struct{}]) { u.ch.unsafeDisconnect(promise) }

func (u unsafeImpl) Close(promise future.Promise[struct{}]) { u.ch.unsafeClose(promise) }

func (u unsafeImpl) Deregister(promise future.Promise[struct{}]) { u.ch.unsafeDeregister(promise) }

func (u unsafeImpl) BeginRead() { u.ch.unsafeBeginRead() }

func (u unsafeImpl) Write(msg any, promise future.Promise[struct{}]) { u.ch.unsafeWrite(msg, promise) }

func (u unsafeImpl) Flush() { u.ch.unsafeFlush() }
