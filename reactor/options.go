package reactor

// loopOptions holds configuration resolved at Loop construction.
type loopOptions struct {
	ioRatio        int
	metricsEnabled bool
}

// LoopOption configures a Loop. Follows the teacher's options.go shape: an
// option is a small closure-wrapping interface rather than a plain
// functional-option func, so that invalid configuration can be rejected at
// resolution time instead of silently clamped.
type LoopOption interface {
	applyLoop(*loopOptions) error
}

type loopOptionFunc func(*loopOptions) error

func (f loopOptionFunc) applyLoop(o *loopOptions) error { return f(o) }

// WithIORatio sets the Loop's ioRatio (1-100). Below 100 it caps how long a
// single poll may block, when no task is queued, at (100-ioRatio)
// milliseconds; at 100 there is no such cap. It does not bound the time
// spent draining the task queues. The default is 50.
func WithIORatio(ratio int) LoopOption {
	return loopOptionFunc(func(o *loopOptions) error {
		if ratio < 1 || ratio > 100 {
			return &IllegalStateError{Op: "WithIORatio", Cause: errRatioRange}
		}
		o.ioRatio = ratio
		return nil
	})
}

// WithMetrics enables the Loop's minimal on/off counter seam (TasksProcessed,
// IOEventsDispatched, TickCount), retrievable via Loop.Metrics. Disabled by
// default for zero overhead in the hot path.
func WithMetrics(enabled bool) LoopOption {
	return loopOptionFunc(func(o *loopOptions) error {
		o.metricsEnabled = enabled
		return nil
	})
}

func resolveLoopOptions(opts []LoopOption) (*loopOptions, error) {
	cfg := &loopOptions{ioRatio: defaultIORatio}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// GroupOption configures an executor Group.
type GroupOption interface {
	applyGroup(*groupOptions) error
}

type groupOptions struct {
	nThreads int
	chooser  ChooserFactory
	loopOpts []LoopOption
}

type groupOptionFunc func(*groupOptions) error

func (f groupOptionFunc) applyGroup(o *groupOptions) error { return f(o) }

// WithChooserFactory overrides the default round-robin/power-of-two chooser.
func WithChooserFactory(f ChooserFactory) GroupOption {
	return groupOptionFunc(func(o *groupOptions) error {
		o.chooser = f
		return nil
	})
}

// WithLoopOptions forwards options to every Loop the group constructs.
func WithLoopOptions(opts ...LoopOption) GroupOption {
	return groupOptionFunc(func(o *groupOptions) error {
		o.loopOpts = append(o.loopOpts, opts...)
		return nil
	})
}

func resolveGroupOptions(nThreads int, opts []GroupOption) (*groupOptions, error) {
	cfg := &groupOptions{
		nThreads: nThreads,
		chooser:  NewRoundRobinChooser,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyGroup(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
