package reactor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joeycumines/go-netreactor/future"
)

// Group is an EventExecutorGroup: a fixed set of Loops, each run on its own
// goroutine, with a Chooser assigning new registrations round-robin across
// them (spec.md §4.C). Constructing a Group is the normal way to obtain
// Loops in this module; a lone Loop is mostly useful for tests.
type Group struct {
	loops   []*Loop
	chooser Chooser

	runWG sync.WaitGroup

	shutdownOnce sync.Once
	termination  future.Promise[struct{}]
}

// NewGroup constructs a Group of nThreads Loops, starts each on its own
// goroutine immediately, and returns once all are past construction. If
// any Loop fails to construct, already-constructed loops are shut down and
// joined before returning the error (spec.md §4.C's partial-construction
// rollback requirement).
func NewGroup(nThreads int, opts ...GroupOption) (*Group, error) {
	cfg, err := resolveGroupOptions(nThreads, opts)
	if err != nil {
		return nil, err
	}
	if cfg.nThreads <= 0 {
		cfg.nThreads = 1
	}

	g := &Group{
		termination: future.New[struct{}](nil),
	}

	for i := 0; i < cfg.nThreads; i++ {
		loop, err := NewLoop(cfg.loopOpts...)
		if err != nil {
			g.rollback()
			return nil, fmt.Errorf("%w: %w", ErrGroupConstructionFailed, err)
		}
		g.loops = append(g.loops, loop)
	}

	g.chooser = cfg.chooser(g.loops)

	for _, loop := range g.loops {
		loop := loop
		g.runWG.Add(1)
		go func() {
			defer g.runWG.Done()
			_ = loop.Run(context.Background())
		}()
	}

	return g, nil
}

// rollback shuts down and discards any loops already constructed, used
// when a later Loop in the batch fails to construct.
func (g *Group) rollback() {
	for _, loop := range g.loops {
		loop.finalize()
	}
	g.loops = nil
}

// Next returns the Loop the Chooser selects for the next registration.
func (g *Group) Next() *Loop { return g.chooser.Next() }

// Loops returns the Group's constituent Loops. The returned slice must not
// be modified.
func (g *Group) Loops() []*Loop { return g.loops }

// ShutdownGracefully requests termination of every Loop in the group. The
// returned Future completes once every Loop has terminated.
//
// The quiet period is a fixed wait, not a window that restarts on new
// activity: quietPeriod (capped by timeout) is waited once, then every Loop
// is asked to shut down within whatever remains of timeout.
func (g *Group) ShutdownGracefully(quietPeriod, timeout time.Duration) future.Future[struct{}] {
	g.shutdownOnce.Do(func() {
		go g.shutdownSequence(quietPeriod, timeout)
	})
	return g.termination
}

func (g *Group) shutdownSequence(quietPeriod, timeout time.Duration) {
	deadline := time.Now().Add(timeout)

	if quietPeriod > 0 {
		select {
		case <-time.After(quietPeriod):
		case <-time.After(time.Until(deadline)):
		}
	}

	remaining := time.Until(deadline)
	if remaining < 0 {
		remaining = 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), remaining)
	defer cancel()

	var wg sync.WaitGroup
	for _, loop := range g.loops {
		loop := loop
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = loop.Shutdown(ctx)
		}()
	}
	wg.Wait()
	g.runWG.Wait()

	g.termination.TrySuccess(struct{}{})
}

// TerminationFuture returns the Future that completes once a
// ShutdownGracefully call finishes. It stays pending until
// ShutdownGracefully has been called and every Loop has terminated.
func (g *Group) TerminationFuture() future.Future[struct{}] { return g.termination }
