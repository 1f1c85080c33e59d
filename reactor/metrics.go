package reactor

import "sync/atomic"

// Metrics is the minimal on/off counter seam described in SPEC_FULL.md's
// supplemented-features section: simple monotonic counts, no percentiles
// or rate tracking (the teacher's metrics.go/psquare.go TDigest-style
// instrumentation is out of scope here; see DESIGN.md). Enable via
// WithMetrics(true) on NewLoop, or WithLoopOptions(WithMetrics(true)) on
// NewGroup.
type Metrics struct {
	tasksProcessed     atomic.Uint64
	ioEventsDispatched atomic.Uint64
	tickCount          atomic.Uint64
}

func newMetrics() *Metrics { return &Metrics{} }

// TasksProcessed returns the cumulative count of Tasks the Loop has run.
func (m *Metrics) TasksProcessed() uint64 { return m.tasksProcessed.Load() }

// IOEventsDispatched returns the cumulative count of readiness callbacks
// the Loop has invoked.
func (m *Metrics) IOEventsDispatched() uint64 { return m.ioEventsDispatched.Load() }

// TickCount returns the number of loop iterations completed.
func (m *Metrics) TickCount() uint64 { return m.tickCount.Load() }
