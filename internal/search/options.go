package search

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	DefaultQuiescenceDepth = 8
	DefaultPollInterval    = 1024
	DefaultMoveTime        = time.Second
	maxSearchDepth         = MaxPly / 2
)

type Options struct {
	// HashMB sizes the transposition table; 0 derives it from system memory.
	HashMB           int
	DisableTT        bool
	Threads          int
	MultiPV          int
	QuiescenceDepth  int
	QuiescenceChecks bool
	// PollInterval is the number of nodes between deadline checks. It is
	// rounded up to a power of two.
	PollInterval uint64
	// Evaluator must be safe for concurrent use when Threads > 1.
	Evaluator   Evaluator
	NewOrderer  func() MoveOrderer
	OnIteration func(Info)
}

func (o Options) withDefaults() Options {
	if o.Threads <= 0 {
		o.Threads = 1
	}
	if o.MultiPV <= 0 {
		o.MultiPV = 1
	}
	if o.QuiescenceDepth <= 0 {
		o.QuiescenceDepth = DefaultQuiescenceDepth
	}
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	o.PollInterval = ceilPow2(o.PollInterval)
	if o.Evaluator == nil {
		o.Evaluator = MaterialEvaluator{}
	}
	if o.NewOrderer == nil {
		o.NewOrderer = func() MoveOrderer { return NewHistoryOrderer() }
	}
	return o
}

func ceilPow2(n uint64) uint64 {
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// Limits bound a single search. MoveTime is the hard budget: an iteration
// running past it is abandoned. SoftTime only stops new iterations from
// starting. With no limit set at all the search gets DefaultMoveTime.
type Limits struct {
	MoveTime time.Duration
	SoftTime time.Duration
	Depth    int
	Nodes    uint64
}

func (l Limits) normalized() Limits {
	if l.MoveTime <= 0 && l.SoftTime <= 0 && l.Depth <= 0 && l.Nodes == 0 {
		l.MoveTime = DefaultMoveTime
	}
	if l.Depth <= 0 || l.Depth > maxSearchDepth {
		l.Depth = maxSearchDepth
	}
	if l.MoveTime > 0 && l.SoftTime > l.MoveTime {
		l.SoftTime = l.MoveTime
	}
	return l
}

type hookKey struct{}

// WithIterationHook returns a context that makes Search call fn after every
// completed iteration, after Options.OnIteration.
func WithIterationHook(ctx context.Context, fn func(Info)) context.Context {
	return context.WithValue(ctx, hookKey{}, fn)
}

func iterationHook(ctx context.Context, base func(Info)) func(Info) {
	fn, _ := ctx.Value(hookKey{}).(func(Info))
	switch {
	case fn == nil:
		return base
	case base == nil:
		return fn
	}
	return func(info Info) {
		base(info)
		fn(info)
	}
}

// stopper is shared by every worker of one search.
type stopper struct {
	start     time.Time
	deadline  time.Time
	nodeLimit uint64
	nodes     atomic.Uint64
}

func newStopper(start time.Time, l Limits) *stopper {
	s := &stopper{start: start, nodeLimit: l.Nodes}
	if l.MoveTime > 0 {
		s.deadline = start.Add(l.MoveTime)
	}
	return s
}

func (s *stopper) expired() bool {
	if !s.deadline.IsZero() && !time.Now().Before(s.deadline) {
		return true
	}
	return s.nodeLimit > 0 && s.nodes.Load() >= s.nodeLimit
}

func (s *stopper) elapsed() time.Duration { return time.Since(s.start) }

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
