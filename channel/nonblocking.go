package channel

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/joeycumines/go-netreactor/buffer"
	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/internal/atomicstate"
	"github.com/joeycumines/go-netreactor/logging"
	"github.com/joeycumines/go-netreactor/nerr"
	"github.com/joeycumines/go-netreactor/pipeline"
	"github.com/joeycumines/go-netreactor/reactor"
)

// NonBlockingChannel is the concrete non-blocking client channel spec.md
// §4.E names explicitly (the state table's subject, and the sole client of
// §4.G's bootstrap). It owns one raw socket fd, multiplexed through
// whichever *reactor.Loop it is registered to.
//
// All of its unsafe* methods (invoked only via unsafeImpl, which in turn is
// only invoked from the pipeline's HEAD context) assume they run on the
// owning Loop's goroutine — the same single-threaded-affinity contract
// reactor.Loop and pipeline.Context both document.
type NonBlockingChannel struct {
	id   ID
	cfg  *Config
	pipe *pipeline.Pipeline
	alloc buffer.Allocator

	state *atomicstate.Machine[State]
	loop  *reactor.Loop

	fd           int
	fdRegistered bool
	local        Addr
	remote       Addr

	wbuf *writeBuffer

	connectMu         sync.Mutex
	connectPromise    future.Promise[struct{}]
	connectGeneration uint64

	readPending bool
	wasActive   bool

	closeOnce sync.Once
}

// NewNonBlockingClientChannel constructs an unregistered channel ready for
// Register then Connect. cfg may be nil to use DefaultConfig().
func NewNonBlockingClientChannel(cfg *Config) *NonBlockingChannel {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.RecvBufferSizer == nil {
		cfg.RecvBufferSizer = NewAdaptiveRecvBufferSizer()
	}
	if cfg.Allocator == nil {
		cfg.Allocator = buffer.NewPooledAllocator()
	}
	c := &NonBlockingChannel{
		id:    NewID(),
		cfg:   cfg,
		alloc: cfg.Allocator,
		state: newState(),
		fd:    -1,
		wbuf:  newWriteBuffer(cfg.WriteBufferHighWaterMark, cfg.WriteBufferLowWaterMark),
	}
	c.pipe = pipeline.New(unsafeImpl{ch: c})
	return c
}

func (c *NonBlockingChannel) ID() ID                        { return c.id }
func (c *NonBlockingChannel) Pipeline() *pipeline.Pipeline  { return c.pipe }
func (c *NonBlockingChannel) Config() *Config               { return c.cfg }
func (c *NonBlockingChannel) Allocator() buffer.Allocator   { return c.alloc }
func (c *NonBlockingChannel) Loop() *reactor.Loop           { return c.loop }
func (c *NonBlockingChannel) State() State                  { return c.state.Load() }
func (c *NonBlockingChannel) IsOpen() bool                   { return c.state.Load() < StateClosing }
func (c *NonBlockingChannel) IsActive() bool                 { return c.state.Load() == StateActive }
func (c *NonBlockingChannel) IsWritable() bool                { return c.wbuf.IsWritable() }
func (c *NonBlockingChannel) LocalAddr() Addr                { return c.local }
func (c *NonBlockingChannel) RemoteAddr() Addr               { return c.remote }

// loopExecutor returns the channel's executor once registered, or nil
// before (promises constructed pre-registration deliver listeners
// synchronously; see future.Promise's documented pre-completion affinity).
func (c *NonBlockingChannel) loopExecutor() future.Executor {
	if c.loop == nil {
		return nil
	}
	return c.loop.AsExecutor()
}

// Register attaches the channel to loop for the remainder of its life, per
// spec.md §4.E's Unregistered->Registering->Registered transition. It is
// the one Channel operation not routed through the pipeline (there is no
// HEAD to reach yet).
func (c *NonBlockingChannel) Register(loop *reactor.Loop) future.Future[struct{}] {
	promise := future.New[struct{}](loop.AsExecutor())
	if !c.state.TryTransition(StateUnregistered, StateRegistering) {
		promise.TryFailure(errIllegalState("register"))
		return promise
	}
	if err := loop.Submit(func() {
		c.loop = loop
		c.state.Store(StateRegistered)
		c.pipe.FireChannelRegistered()
		promise.TrySuccess(struct{}{})
	}); err != nil {
		c.state.Store(StateUnregistered)
		promise.TryFailure(err)
	}
	return promise
}

func (c *NonBlockingChannel) Bind(local Addr) future.Future[struct{}] {
	promise := future.New[struct{}](c.loopExecutor())
	c.pipe.Bind(local, promise)
	return promise
}

func (c *NonBlockingChannel) Connect(remote, local Addr) future.Future[struct{}] {
	promise := future.New[struct{}](c.loopExecutor())
	c.pipe.Connect(remote, local, promise)
	return promise
}

func (c *NonBlockingChannel) Disconnect() future.Future[struct{}] {
	promise := future.New[struct{}](c.loopExecutor())
	c.pipe.Disconnect(promise)
	return promise
}

func (c *NonBlockingChannel) Close() future.Future[struct{}] {
	promise := future.New[struct{}](c.loopExecutor())
	c.pipe.Close(promise)
	return promise
}

func (c *NonBlockingChannel) Deregister() future.Future[struct{}] {
	promise := future.New[struct{}](c.loopExecutor())
	c.pipe.Deregister(promise)
	return promise
}

func (c *NonBlockingChannel) Read() { c.pipe.Read() }

func (c *NonBlockingChannel) Write(msg any) future.Future[struct{}] {
	promise := future.New[struct{}](c.loopExecutor())
	c.pipe.Write(msg, promise)
	return promise
}

func (c *NonBlockingChannel) Flush() { c.pipe.Flush() }

func (c *NonBlockingChannel) WriteAndFlush(msg any) future.Future[struct{}] {
	promise := future.New[struct{}](c.loopExecutor())
	c.pipe.WriteAndFlush(msg, promise)
	return promise
}

// --- unsafe-contract implementations (pipeline HEAD callers only; always
// running on c.loop's goroutine) ---

func (c *NonBlockingChannel) unsafeBind(localAddr Addr, promise future.Promise[struct{}]) {
	tcpAddr, ok := localAddr.(*TCPAddr)
	if !ok {
		promise.TryFailure(nerr.New(nerr.KindUnresolvedAddress, "bind: localAddr must be *channel.TCPAddr"))
		return
	}
	if c.fd < 0 {
		sa, domain, err := tcpAddr.sockaddr()
		if err != nil {
			promise.TryFailure(nerr.Wrap(nerr.KindIO, "bind: resolve", err))
			return
		}
		if err := c.createSocket(domain); err != nil {
			promise.TryFailure(err)
			return
		}
		if err := unix.Bind(c.fd, sa); err != nil {
			promise.TryFailure(nerr.Wrap(nerr.KindIO, "bind", err))
			return
		}
	}
	c.local = tcpAddr
	promise.TrySuccess(struct{}{})
}

// unsafeConnect drives spec.md §4.E's connect protocol: at most one
// outstanding connect, synchronous-complete fast path, OP_CONNECT-interest
// plus timeout otherwise.
func (c *NonBlockingChannel) unsafeConnect(remoteAddr, localAddr Addr, promise future.Promise[struct{}]) {
	c.connectMu.Lock()
	if c.connectPromise != nil {
		c.connectMu.Unlock()
		promise.TryFailure(errIllegalState("connect: already pending"))
		return
	}
	if !c.state.TryTransition(StateRegistered, StateConnecting) {
		c.connectMu.Unlock()
		promise.TryFailure(errIllegalState("connect"))
		return
	}
	c.connectPromise = promise
	c.connectGeneration++
	generation := c.connectGeneration
	c.connectMu.Unlock()

	remote, ok := remoteAddr.(*TCPAddr)
	if !ok {
		c.failConnect(nerr.New(nerr.KindUnresolvedAddress, "connect: remoteAddr must be *channel.TCPAddr"))
		return
	}
	if local, ok := localAddr.(*TCPAddr); ok && local != nil {
		if err := c.bindLocalForConnect(local); err != nil {
			c.failConnect(err)
			return
		}
	}

	complete, err := c.doConnect(remote)
	if err != nil {
		c.failConnect(err)
		return
	}
	c.remote = remote

	if complete {
		c.connectMu.Lock()
		c.connectPromise = nil
		c.connectMu.Unlock()
		c.finishConnectActive()
		promise.TrySuccess(struct{}{})
		return
	}

	if err := c.armFD(reactor.EventWrite); err != nil {
		c.failConnect(nerr.Wrap(nerr.KindIO, "connect: arm OP_CONNECT", err))
		return
	}

	_ = c.loop.ScheduleTimer(c.cfg.ConnectTimeout, func() { c.onConnectTimeout(generation) })

	promise.AddListener(func(f future.Future[struct{}]) {
		if f.State() == future.Cancelled {
			c.onConnectCancelled(generation)
		}
	})
}

func (c *NonBlockingChannel) bindLocalForConnect(local *TCPAddr) error {
	sa, domain, err := local.sockaddr()
	if err != nil {
		return nerr.Wrap(nerr.KindIO, "connect: resolve local", err)
	}
	if c.fd < 0 {
		if err := c.createSocket(domain); err != nil {
			return err
		}
	}
	if err := unix.Bind(c.fd, sa); err != nil {
		return nerr.Wrap(nerr.KindIO, "connect: bind local", err)
	}
	c.local = local
	return nil
}

func (c *NonBlockingChannel) failConnect(err error) {
	c.connectMu.Lock()
	promise := c.connectPromise
	c.connectPromise = nil
	c.connectMu.Unlock()
	if promise != nil {
		promise.TryFailure(err)
	}
	c.state.Store(StateClosing)
	c.unsafeCloseInternal(err)
}

func (c *NonBlockingChannel) onConnectTimeout(generation uint64) {
	c.connectMu.Lock()
	if generation != c.connectGeneration || c.connectPromise == nil {
		c.connectMu.Unlock()
		return
	}
	promise := c.connectPromise
	c.connectPromise = nil
	c.connectMu.Unlock()
	promise.TryFailure(nerr.New(nerr.KindConnectTimeout, "connect: timed out"))
	c.unsafeCloseInternal(nerr.New(nerr.KindConnectTimeout, "connect: timed out"))
}

func (c *NonBlockingChannel) onConnectCancelled(generation uint64) {
	c.connectMu.Lock()
	if generation != c.connectGeneration {
		c.connectMu.Unlock()
		return
	}
	c.connectPromise = nil
	c.connectMu.Unlock()
	c.unsafeCloseInternal(nerr.New(nerr.KindCancellation, "connect: cancelled"))
}

// finishConnect handles an OP_CONNECT readiness callback: clear the
// interest, resolve the socket's pending error (if any), complete the
// connect promise, and fire channelActive.
func (c *NonBlockingChannel) finishConnect() {
	c.connectMu.Lock()
	promise := c.connectPromise
	c.connectPromise = nil
	c.connectMu.Unlock()
	if promise == nil {
		return // raced with timeout/cancel; already handled
	}

	if err := c.doFinishConnect(); err != nil {
		promise.TryFailure(err)
		c.unsafeCloseInternal(err)
		return
	}
	c.finishConnectActive()
	promise.TrySuccess(struct{}{})
}

func (c *NonBlockingChannel) finishConnectActive() {
	wasActive := c.wasActive
	c.state.Store(StateActive)
	c.wasActive = true
	if !c.fdRegistered {
		_ = c.armFD(0)
	}
	c.syncFDInterest()
	if !wasActive {
		c.pipe.FireChannelActive()
		if c.cfg.AutoRead {
			c.unsafeBeginRead()
		}
	}
}

func (c *NonBlockingChannel) unsafeDisconnect(promise future.Promise[struct{}]) {
	c.unsafeClose(promise)
}

func (c *NonBlockingChannel) unsafeClose(promise future.Promise[struct{}]) {
	c.closeOnce.Do(func() {
		c.unsafeCloseInternal(errClosed)
	})
	promise.TrySuccess(struct{}{})
}

// unsafeCloseInternal runs spec.md §4.E's close sequence: fail the pending
// connect promise (if any), drop the socket, drain the outbound buffer
// failing every promise, fire channelInactive, then deregister.
func (c *NonBlockingChannel) unsafeCloseInternal(cause error) {
	c.connectMu.Lock()
	pending := c.connectPromise
	c.connectPromise = nil
	c.connectMu.Unlock()
	if pending != nil {
		pending.TryFailure(errClosed)
	}

	wasActive := c.state.Load() == StateActive
	c.state.Store(StateClosing)

	if c.fdRegistered {
		_ = c.loop.UnregisterFD(c.fd)
		c.fdRegistered = false
	}
	if c.fd >= 0 {
		if err := closeSocket(c.fd); err != nil {
			logging.Get().Warning().Err(err).Log("channel: error closing socket")
		}
		c.fd = -1
	}

	c.wbuf.failAll(cause)

	if wasActive {
		c.pipe.FireChannelInactive()
	}

	c.state.Store(StateUnregistering)
	c.pipe.FireChannelUnregistered()
	c.state.Store(StateTerminal)
}

func (c *NonBlockingChannel) unsafeDeregister(promise future.Promise[struct{}]) {
	if c.fdRegistered {
		_ = c.loop.UnregisterFD(c.fd)
		c.fdRegistered = false
	}
	c.readPending = false
	c.state.Store(StateUnregistering)
	c.pipe.FireChannelUnregistered()
	c.state.Store(StateTerminal)
	promise.TrySuccess(struct{}{})
}

// unsafeBeginRead arms read interest; cleared automatically after a batch
// if AutoRead is false and no handler re-armed it (spec.md §4.E).
func (c *NonBlockingChannel) unsafeBeginRead() {
	if c.fd < 0 {
		return
	}
	c.readPending = true
	c.syncFDInterest()
}

func (c *NonBlockingChannel) syncFDInterest() {
	if !c.fdRegistered || c.fd < 0 {
		return
	}
	var ev reactor.IOEvents
	if c.readPending {
		ev |= reactor.EventRead
	}
	if c.wbuf.hasFlushable() {
		ev |= reactor.EventWrite
	}
	_ = c.loop.ModifyFD(c.fd, ev)
}

func (c *NonBlockingChannel) unsafeWrite(msg any, promise future.Promise[struct{}]) {
	if !c.IsOpen() {
		if promise != nil {
			promise.TryFailure(errClosed)
		}
		if r, ok := msg.(pipeline.Releasable); ok {
			_, _ = r.Release()
		}
		return
	}
	_ = c.wbuf.addMessage(msg, promise)
	if c.wbuf.ConsumeTransition() {
		c.pipe.FireChannelWritabilityChanged()
	}
}

func (c *NonBlockingChannel) unsafeFlush() {
	c.wbuf.addFlush()
	c.forceFlush()
}

// forceFlush drains as much of the flushable prefix as the kernel accepts
// right now, arming OP_WRITE for the remainder if any.
func (c *NonBlockingChannel) forceFlush() {
	if c.fd < 0 || !c.wbuf.hasFlushable() {
		c.syncFDInterest()
		return
	}
	_, err := c.wbuf.drainTo(func(p []byte) (int, error) { return writeSocket(c.fd, p) })
	if c.wbuf.ConsumeTransition() {
		c.pipe.FireChannelWritabilityChanged()
	}
	if err != nil {
		c.pipe.FireExceptionCaught(nerr.Wrap(nerr.KindIO, "write", err))
		c.unsafeCloseInternal(nerr.Wrap(nerr.KindIO, "write", err))
		return
	}
	c.syncFDInterest()
}

// --- raw fd / readiness glue ---

func (c *NonBlockingChannel) armFD(initial reactor.IOEvents) error {
	if c.fdRegistered {
		return c.loop.ModifyFD(c.fd, initial)
	}
	if err := c.loop.RegisterFD(c.fd, initial, c.onIOEvent); err != nil {
		return err
	}
	c.fdRegistered = true
	return nil
}

func (c *NonBlockingChannel) onIOEvent(events reactor.IOEvents) {
	if c.state.Load() == StateConnecting {
		c.finishConnect()
		return
	}
	if events&(reactor.EventError|reactor.EventHangup) != 0 {
		// surfaced through the ensuing read (EOF/error) rather than acted
		// on directly here; many readiness backends also set EventRead in
		// this case.
	}
	if events&reactor.EventWrite != 0 {
		c.forceFlush()
	}
	if events&reactor.EventRead != 0 {
		c.doReadLoop()
	}
}

// doReadLoop implements spec.md §4.E's read protocol: iterate while the
// RecvBufferSizer says to continue, firing channelRead per message and
// channelReadComplete once the batch ends.
func (c *NonBlockingChannel) doReadLoop() {
	sizer := c.cfg.RecvBufferSizer
	for {
		capacity := sizer.NextCapacity()
		buf, err := c.alloc.Buffer(capacity, 0)
		if err != nil {
			c.pipe.FireExceptionCaught(nerr.Wrap(nerr.KindIO, "allocate read buffer", err))
			return
		}
		slice, err := buf.WritableSlice(capacity)
		if err != nil {
			c.pipe.FireExceptionCaught(nerr.Wrap(nerr.KindIO, "size read buffer", err))
			return
		}
		n, rerr := readSocket(c.fd, slice)
		if n > 0 {
			buf.Advance(n)
			sizer.Record(n)
			c.pipe.FireChannelRead(buf)
		} else {
			_, _ = buf.Release()
			sizer.Record(-1)
		}

		if rerr != nil {
			if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
				break
			}
			c.pipe.FireChannelReadComplete()
			c.pipe.FireExceptionCaught(nerr.Wrap(nerr.KindIO, "read", rerr))
			c.unsafeCloseInternal(nerr.Wrap(nerr.KindIO, "read", rerr))
			return
		}
		if n == 0 {
			// end of stream
			c.pipe.FireChannelReadComplete()
			c.unsafeCloseInternal(errClosed)
			return
		}
		if !sizer.ContinueReading() {
			break
		}
	}
	c.pipe.FireChannelReadComplete()
	if !c.cfg.AutoRead {
		c.readPending = false
	}
	c.syncFDInterest()
}

func (c *NonBlockingChannel) createSocket(domain int) error {
	fd, err := unix.Socket(domain, unix.SOCK_STREAM, 0)
	if err != nil {
		return nerr.Wrap(nerr.KindIO, "socket", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return nerr.Wrap(nerr.KindIO, "set nonblocking", err)
	}
	c.fd = fd
	return nil
}

func (c *NonBlockingChannel) doConnect(remote *TCPAddr) (complete bool, err error) {
	sa, domain, err := remote.sockaddr()
	if err != nil {
		return false, nerr.Wrap(nerr.KindIO, "connect: resolve", err)
	}
	if c.fd < 0 {
		if err := c.createSocket(domain); err != nil {
			return false, err
		}
	}
	connErr := unix.Connect(c.fd, sa)
	switch connErr {
	case nil:
		return true, nil
	case unix.EINPROGRESS, unix.EALREADY:
		return false, nil
	case unix.ECONNREFUSED:
		return false, nerr.Wrap(nerr.KindConnectRefused, "connect refused", connErr)
	default:
		return false, nerr.Wrap(nerr.KindIO, "connect", connErr)
	}
}

func (c *NonBlockingChannel) doFinishConnect() error {
	errno, err := unix.GetsockoptInt(c.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return nerr.Wrap(nerr.KindIO, "getsockopt SO_ERROR", err)
	}
	if errno != 0 {
		e := unix.Errno(errno)
		if e == unix.ECONNREFUSED {
			return nerr.Wrap(nerr.KindConnectRefused, "connect refused", e)
		}
		return nerr.Wrap(nerr.KindIO, "connect failed", e)
	}
	return nil
}

func closeSocket(fd int) error { return unix.Close(fd) }

func readSocket(fd int, p []byte) (int, error) {
	n, err := unix.Read(fd, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func writeSocket(fd int, p []byte) (int, error) {
	n, err := unix.Write(fd, p)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return n, nil
		}
		return n, err
	}
	return n, nil
}
