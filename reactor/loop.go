package reactor

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/go-netreactor/future"
	"github.com/joeycumines/go-netreactor/internal/atomicstate"
	"github.com/joeycumines/go-netreactor/logging"
)

// timerEntry is a scheduled Task paired with its fire time, min-heap
// ordered, grounded on the teacher's loop.go timerHeap.
type timerEntry struct {
	when time.Time
	task Task
}

type timerHeap []timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(timerEntry)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

var loopIDCounter atomic.Uint64

// Loop is a single-threaded event executor: one goroutine multiplexes
// readiness polling with submitted Task execution, per spec.md §4.A/§4.D.
// All Channel and pipeline work registered with a Loop executes on that one
// goroutine, so handlers never need to synchronize against each other.
//
// Grounded on the teacher's loop.go Loop, trimmed of its fast-path/aux-job
// dual-queue optimization and JS-promise registry (see DESIGN.md) in favor
// of two plain task queues (internal and external) and a tick whose poll
// timeout is capped by ioRatio.
type Loop struct {
	id uint64

	state *atomicstate.Machine[LoopState]

	external taskQueue
	internal taskQueue

	timersMu sync.Mutex
	timers   timerHeap

	poller poller

	wakeReadFd, wakeWriteFd int
	wakePending             atomic.Bool

	loopGoroutineID atomic.Uint64
	loopDone        chan struct{}
	stopOnce        sync.Once
	closeOnce       sync.Once

	tickAnchorMu sync.RWMutex
	tickAnchor   time.Time
	tickCount    atomic.Uint64

	ioRatio int
	metrics *Metrics
}

// NewLoop constructs a Loop ready to Run. The returned Loop owns a wake-fd
// and a platform poller; call Shutdown or ShutdownGracefully to release
// them if Run is never called.
func NewLoop(opts ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	wakeRead, wakeWrite, err := createWakeFd()
	if err != nil {
		return nil, err
	}

	p := newPoller()
	if err := p.Init(); err != nil {
		_ = closeFD(wakeRead)
		if wakeWrite != wakeRead {
			_ = closeFD(wakeWrite)
		}
		return nil, err
	}

	l := &Loop{
		id:          loopIDCounter.Add(1),
		state:       newLoopState(),
		poller:      p,
		wakeReadFd:  wakeRead,
		wakeWriteFd: wakeWrite,
		loopDone:    make(chan struct{}),
		ioRatio:     cfg.ioRatio,
	}
	if cfg.metricsEnabled {
		l.metrics = newMetrics()
	}

	if err := p.RegisterFD(wakeRead, EventRead, func(IOEvents) {
		drainWakeFd(l.wakeReadFd)
		l.wakePending.Store(false)
	}); err != nil {
		_ = p.Close()
		_ = closeFD(wakeRead)
		if wakeWrite != wakeRead {
			_ = closeFD(wakeWrite)
		}
		return nil, err
	}

	return l, nil
}

// ID returns the Loop's process-unique identifier, for log correlation.
func (l *Loop) ID() uint64 { return l.id }

// State returns the current LoopState.
func (l *Loop) State() LoopState { return l.state.Load() }

// Metrics returns the Loop's counters, or nil if WithMetrics(true) was not
// passed to NewLoop.
func (l *Loop) Metrics() *Metrics { return l.metrics }

// isLoopThread reports whether the caller is running on this Loop's own
// goroutine.
func (l *Loop) isLoopThread() bool {
	id := l.loopGoroutineID.Load()
	return id != 0 && id == getGoroutineID()
}

// Run drives the Loop until ctx is cancelled or ShutdownGracefully/Shutdown
// completes its transition. Run must not be called from within the Loop's
// own goroutine (e.g. from a submitted Task) and must not be called more
// than once concurrently.
func (l *Loop) Run(ctx context.Context) error {
	if l.isLoopThread() {
		return ErrReentrantRun
	}
	if !l.state.TryTransition(StateAwake, StateRunning) {
		if l.state.Load() == StateTerminated {
			return ErrTerminated
		}
		return ErrAlreadyRunning
	}
	defer close(l.loopDone)

	l.loopGoroutineID.Store(getGoroutineID())
	defer l.loopGoroutineID.Store(0)

	l.tickAnchorMu.Lock()
	l.tickAnchor = time.Now()
	l.tickAnchorMu.Unlock()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			l.wake()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	for {
		select {
		case <-ctx.Done():
			l.finalize()
			return ctx.Err()
		default:
		}

		state := l.state.Load()
		if state == StateTerminating || state == StateTerminated {
			l.drainTasks()
			l.finalize()
			return nil
		}

		l.tick()
	}
}

// tick runs one iteration: due timers, then every queued task, then one I/O
// poll. ioRatio only caps how long that poll may block (see
// calculateIOTimeout); the task drain is not time-bounded, so ioRatio does
// not apportion wall-clock time between tasks and I/O.
func (l *Loop) tick() {
	budgetStart := time.Now()

	l.runTimers()
	processed := l.drainTasks()
	if l.metrics != nil {
		l.metrics.tasksProcessed.Add(uint64(processed))
	}

	ioTimeoutMs := l.calculateIOTimeout(budgetStart)

	// CAS rather than Store, so a concurrent StateTerminating set by
	// ShutdownGracefully is never overwritten.
	l.state.TryTransition(StateRunning, StateSleeping)
	n, err := l.poller.PollIO(ioTimeoutMs)
	l.state.TryTransition(StateSleeping, StateRunning)
	if err != nil {
		logging.Get().Err().Err(err).Log("reactor: poll error")
	}
	if l.metrics != nil && n > 0 {
		l.metrics.ioEventsDispatched.Add(uint64(n))
	}

	l.tickCount.Add(1)
	if l.metrics != nil {
		l.metrics.tickCount.Add(1)
	}
}

// calculateIOTimeout derives the PollIO timeout from ioRatio and whether
// timers/tasks are already pending: a pending timer caps the wait so it
// fires promptly; pending tasks make the poll non-blocking so the next
// tick can drain them without delay.
func (l *Loop) calculateIOTimeout(tickStart time.Time) int {
	if l.external.len() > 0 || l.internal.len() > 0 {
		return 0
	}

	timeoutMs := -1
	l.timersMu.Lock()
	if len(l.timers) > 0 {
		until := time.Until(l.timers[0].when)
		if until < 0 {
			until = 0
		}
		timeoutMs = int(until / time.Millisecond)
	}
	l.timersMu.Unlock()

	// ioRatio<100 reserves the complementary fraction for task draining by
	// capping how long a single poll may block even with nothing queued
	// yet, so a burst of Submits arriving mid-poll isn't starved.
	if l.ioRatio < 100 {
		capMs := time.Duration(100-l.ioRatio) * time.Millisecond
		if timeoutMs < 0 || time.Duration(timeoutMs)*time.Millisecond > capMs {
			timeoutMs = int(capMs / time.Millisecond)
		}
	}
	return timeoutMs
}

func (l *Loop) drainTasks() int {
	n := 0
	for _, t := range l.internal.drain() {
		l.safeExecute(t)
		n++
	}
	for _, t := range l.external.drain() {
		l.safeExecute(t)
		n++
	}
	return n
}

func (l *Loop) runTimers() {
	now := time.Now()
	for {
		l.timersMu.Lock()
		if len(l.timers) == 0 || l.timers[0].when.After(now) {
			l.timersMu.Unlock()
			return
		}
		entry := heap.Pop(&l.timers).(timerEntry)
		l.timersMu.Unlock()
		l.safeExecute(entry.task)
	}
}

func (l *Loop) safeExecute(t Task) {
	defer func() {
		if r := recover(); r != nil {
			logging.Get().Err().Interface("panic", r).Log("reactor: recovered panic in task")
		}
	}()
	t()
}

// Submit schedules fn for execution on the Loop's goroutine from any other
// goroutine. Returns ErrTerminated if the Loop has already shut down.
func (l *Loop) Submit(fn Task) error {
	if l.state.Load() == StateTerminated {
		return ErrTerminated
	}
	l.external.push(fn)
	l.wake()
	return nil
}

// SubmitInternal schedules fn ahead of externally-submitted tasks, for use
// by the Loop's own subsystems (e.g. a Channel re-arming its own read). It
// is safe to call from any goroutine, including the Loop's own.
func (l *Loop) SubmitInternal(fn Task) error {
	if l.state.Load() == StateTerminated {
		return ErrTerminated
	}
	l.internal.push(fn)
	l.wake()
	return nil
}

// ScheduleTimer arranges for fn to run on the Loop's goroutine no earlier
// than delay from now.
func (l *Loop) ScheduleTimer(delay time.Duration, fn Task) error {
	if l.state.Load() == StateTerminated {
		return ErrTerminated
	}
	l.timersMu.Lock()
	heap.Push(&l.timers, timerEntry{when: time.Now().Add(delay), task: fn})
	l.timersMu.Unlock()
	l.wake()
	return nil
}

// RegisterFD arms fd for readiness callbacks. cb is always invoked on the
// Loop's own goroutine.
func (l *Loop) RegisterFD(fd int, events IOEvents, cb IOCallback) error {
	return l.poller.RegisterFD(fd, events, cb)
}

// ModifyFD changes the readiness bitmask fd is watched for.
func (l *Loop) ModifyFD(fd int, events IOEvents) error {
	return l.poller.ModifyFD(fd, events)
}

// UnregisterFD disarms fd. The caller remains responsible for closing the
// descriptor; UnregisterFD only stops readiness delivery.
func (l *Loop) UnregisterFD(fd int) error {
	return l.poller.UnregisterFD(fd)
}

// wake ensures the Loop's goroutine returns promptly from a blocking
// PollIO, deduplicating redundant wake-ups the way the teacher's
// submitWakeup does via wakeUpSignalPending.
func (l *Loop) wake() {
	if l.wakePending.CompareAndSwap(false, true) {
		if err := signalWakeFd(l.wakeWriteFd); err != nil {
			l.wakePending.Store(false)
		}
	}
}

// ShutdownGracefully requests termination, allowing any already-queued
// tasks to drain, and returns a Future that completes once Run returns.
// Matches spec.md §4.C's quiet-period vocabulary at the Loop level; Group
// layers the multi-loop quiet-period protocol on top.
func (l *Loop) ShutdownGracefully() future.Future[struct{}] {
	prom := future.New[struct{}](l.AsExecutor())
	l.stopOnce.Do(func() {
		for {
			cur := l.state.Load()
			if cur == StateTerminated || cur == StateTerminating {
				break
			}
			if l.state.TryTransition(cur, StateTerminating) {
				if cur == StateAwake {
					l.state.Store(StateTerminated)
					l.finalize()
				} else {
					l.wake()
				}
				break
			}
		}
	})
	go func() {
		<-l.loopDoneOrTerminated()
		prom.TrySuccess(struct{}{})
	}()
	return prom
}

// loopDoneOrTerminated returns a channel closed once Run has returned, or
// immediately if the Loop never started running (the Awake->Terminated
// shortcut in ShutdownGracefully never runs Run, so loopDone never
// closes).
func (l *Loop) loopDoneOrTerminated() <-chan struct{} {
	if l.state.Load() == StateTerminated && l.loopGoroutineID.Load() == 0 {
		select {
		case <-l.loopDone:
		default:
			ch := make(chan struct{})
			close(ch)
			return ch
		}
	}
	return l.loopDone
}

// Shutdown requests termination and blocks until it completes or ctx is
// done.
func (l *Loop) Shutdown(ctx context.Context) error {
	fut := l.ShutdownGracefully()
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	done := make(chan struct{})
	fut.AddListener(func(future.Future[struct{}]) { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finalize releases the poller and wake-fd. Idempotent.
func (l *Loop) finalize() {
	l.closeOnce.Do(func() {
		l.state.Store(StateTerminated)
		_ = l.poller.Close()
		_ = closeFD(l.wakeReadFd)
		if l.wakeWriteFd != l.wakeReadFd {
			_ = closeFD(l.wakeWriteFd)
		}
	})
}

// AsExecutor adapts the Loop to future.Executor, so Promises owned by
// Channels/handlers registered with this Loop dispatch their pending
// listeners back onto it.
func (l *Loop) AsExecutor() future.Executor { return loopExecutor{l} }

type loopExecutor struct{ l *Loop }

func (e loopExecutor) Submit(fn func()) {
	if err := e.l.Submit(fn); err != nil {
		// Loop already terminated: nowhere affine left to run fn, so run
		// it inline rather than drop it silently.
		fn()
	}
}
