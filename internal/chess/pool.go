package chess

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/park285/cheese-engine/internal/eval"
	"github.com/park285/cheese-engine/internal/search"
)

var ErrEngineBusy = errors.New("chess engine busy")

// EngineOptions identify interchangeable searchers: two requests with equal
// options may share a searcher and its transposition table.
type EngineOptions struct {
	HashMB           int
	Threads          int
	MultiPV          int
	QuiescenceDepth  int
	QuiescenceChecks bool
	Eval             eval.Config
}

func optionsFromPreset(p DifficultyPreset) EngineOptions {
	return EngineOptions{
		HashMB:           p.HashMB,
		Threads:          p.Threads,
		MultiPV:          p.MultiPV,
		QuiescenceDepth:  p.QuiescenceDepth,
		QuiescenceChecks: p.QuiescenceChecks,
		Eval:             p.Eval,
	}
}

func (o EngineOptions) searchOptions() search.Options {
	return search.Options{
		HashMB:           o.HashMB,
		Threads:          o.Threads,
		MultiPV:          o.MultiPV,
		QuiescenceDepth:  o.QuiescenceDepth,
		QuiescenceChecks: o.QuiescenceChecks,
		Evaluator:        eval.New(o.Eval),
	}
}

type PoolConfig struct {
	PerPresetCapacity int
	// HashMBOverride replaces every preset's hash size when positive.
	HashMBOverride int
	// ThreadsOverride replaces every preset's thread count when positive.
	ThreadsOverride int
}

// Pool hands out searchers bucketed by options. Each bucket creates at most
// PerPresetCapacity searchers; Acquire blocks for an idle one beyond that.
type Pool struct {
	cfg PoolConfig

	mu        sync.Mutex
	buckets   map[string]*searcherBucket
	searchers map[*search.Searcher]*searcherBucket
}

func NewPool(cfg PoolConfig) *Pool {
	if cfg.PerPresetCapacity <= 0 {
		cfg.PerPresetCapacity = defaultPerPresetCapacity()
	}
	return &Pool{
		cfg:       cfg,
		buckets:   make(map[string]*searcherBucket),
		searchers: make(map[*search.Searcher]*searcherBucket),
	}
}

func (p *Pool) Acquire(ctx context.Context, opt EngineOptions) (*search.Searcher, error) {
	if p.cfg.HashMBOverride > 0 {
		opt.HashMB = p.cfg.HashMBOverride
	}
	if p.cfg.ThreadsOverride > 0 {
		opt.Threads = p.cfg.ThreadsOverride
	}
	bucket := p.getBucket(opt)

	select {
	case s := <-bucket.idle:
		p.track(s, bucket)
		return s, nil
	default:
	}

	if s, ok := bucket.create(); ok {
		p.track(s, bucket)
		return s, nil
	}

	for {
		select {
		case s := <-bucket.idle:
			p.track(s, bucket)
			return s, nil
		case <-bucket.freed:
			if s, ok := bucket.create(); ok {
				p.track(s, bucket)
				return s, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrEngineBusy, ctx.Err())
		}
	}
}

// Release returns s to its bucket. A searcher that failed is dropped so the
// bucket can replace it with a fresh one.
func (p *Pool) Release(s *search.Searcher, err error) {
	if s == nil {
		return
	}
	p.mu.Lock()
	bucket, ok := p.searchers[s]
	delete(p.searchers, s)
	p.mu.Unlock()
	if !ok {
		return
	}
	if err != nil || !bucket.put(s) {
		bucket.decrement()
		bucket.signal()
	}
}

// Close drops every idle searcher. Searchers still checked out are dropped
// when released.
func (p *Pool) Close() error {
	p.mu.Lock()
	buckets := make([]*searcherBucket, 0, len(p.buckets))
	for _, b := range p.buckets {
		buckets = append(buckets, b)
	}
	p.buckets = make(map[string]*searcherBucket)
	p.mu.Unlock()

	for _, bucket := range buckets {
		bucket.drain()
	}
	return nil
}

// Stats reports created and idle searchers per bucket key.
func (p *Pool) Stats() map[string][2]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string][2]int, len(p.buckets))
	for key, b := range p.buckets {
		b.mu.Lock()
		out[key] = [2]int{b.total, len(b.idle)}
		b.mu.Unlock()
	}
	return out
}

func (p *Pool) track(s *search.Searcher, bucket *searcherBucket) {
	p.mu.Lock()
	p.searchers[s] = bucket
	p.mu.Unlock()
}

func (p *Pool) getBucket(opt EngineOptions) *searcherBucket {
	key := optionsKey(opt)
	p.mu.Lock()
	bucket, ok := p.buckets[key]
	if !ok {
		bucket = newSearcherBucket(opt, p.cfg.PerPresetCapacity)
		p.buckets[key] = bucket
	}
	p.mu.Unlock()
	return bucket
}

type searcherBucket struct {
	opt      EngineOptions
	capacity int

	mu    sync.Mutex
	total int
	idle  chan *search.Searcher
	// freed wakes a blocked Acquire when a dropped searcher leaves room.
	freed chan struct{}
}

func newSearcherBucket(opt EngineOptions, capacity int) *searcherBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &searcherBucket{
		opt:      opt,
		capacity: capacity,
		idle:     make(chan *search.Searcher, capacity),
		freed:    make(chan struct{}, capacity),
	}
}

func (b *searcherBucket) create() (*search.Searcher, bool) {
	b.mu.Lock()
	if b.total >= b.capacity {
		b.mu.Unlock()
		return nil, false
	}
	b.total++
	b.mu.Unlock()
	return search.NewSearcher(b.opt.searchOptions()), true
}

func (b *searcherBucket) put(s *search.Searcher) bool {
	select {
	case b.idle <- s:
		return true
	default:
		return false
	}
}

func (b *searcherBucket) signal() {
	select {
	case b.freed <- struct{}{}:
	default:
	}
}

func (b *searcherBucket) drain() {
	for {
		select {
		case <-b.idle:
			b.decrement()
		default:
			return
		}
	}
}

func (b *searcherBucket) decrement() {
	b.mu.Lock()
	if b.total > 0 {
		b.total--
	}
	b.mu.Unlock()
}

func optionsKey(opt EngineOptions) string {
	return fmt.Sprintf("thr=%d|hash=%d|multipv=%d|qd=%d|qc=%t|eval=%t%t%t",
		opt.Threads,
		opt.HashMB,
		opt.MultiPV,
		opt.QuiescenceDepth,
		opt.QuiescenceChecks,
		opt.Eval.Hanging, opt.Eval.KingSafety, opt.Eval.Center)
}

func defaultPerPresetCapacity() int {
	cpu := runtime.NumCPU()
	if cpu < 2 {
		return 2
	}
	if cpu > 4 {
		return 4
	}
	return cpu
}
