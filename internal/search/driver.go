package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Info describes one completed iteration.
type Info struct {
	Depth    int
	SelDepth int
	Score    Score
	Nodes    uint64
	PV       []Move
	Elapsed  time.Duration
	HashFull int
}

// Result is the outcome of one search. When the root has no legal moves
// BestMove is NoMove and Terminal holds the classification.
type Result struct {
	BestMove  Move
	Score     Score
	PV        []Move
	Nodes     uint64
	Depth     int
	SelDepth  int
	Elapsed   time.Duration
	Terminal  Status
	RootMoves []RootMove
	Table     TableStats
}

func (r Result) HasMove() bool { return !r.BestMove.IsZero() }

// Searcher runs one search at a time. The transposition table and the
// orderers' history live across searches until Reset.
type Searcher struct {
	opts     Options
	tt       *TranspositionTable
	mu       sync.Mutex
	orderers []MoveOrderer
}

func NewSearcher(opts Options) *Searcher {
	opts = opts.withDefaults()
	s := &Searcher{opts: opts}
	if !opts.DisableTT {
		s.tt = NewTranspositionTable(opts.HashMB)
	}
	s.orderers = make([]MoveOrderer, opts.Threads)
	for i := range s.orderers {
		s.orderers[i] = opts.NewOrderer()
	}
	return s
}

func (s *Searcher) Options() Options { return s.opts }

// Table returns the shared transposition table, nil when disabled.
func (s *Searcher) Table() *TranspositionTable { return s.tt }

// Reset forgets everything learned from earlier searches.
func (s *Searcher) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tt != nil {
		s.tt.Clear()
	}
	for _, o := range s.orderers {
		o.Clear()
	}
}

// FindBestMove searches pos for at most budget.
func (s *Searcher) FindBestMove(ctx context.Context, pos Position, budget time.Duration) (Result, error) {
	return s.Search(ctx, pos, Limits{MoveTime: budget})
}

// Search runs iterative deepening on pos until a limit is reached, a mate is
// proven or ctx is cancelled. The first root move of depth 1 is searched even
// past the deadline, with quiescence cut short once the deadline passes, so a
// legal move is returned whenever one exists. pos is restored to its original
// state before Search returns.
func (s *Searcher) Search(ctx context.Context, pos Position, limits Limits) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	limits = limits.normalized()
	stop := newStopper(start, limits)

	moves, err := pos.LegalMoves()
	if err != nil {
		return Result{}, err
	}
	if len(moves) == 0 {
		return s.terminalResult(pos, start)
	}
	if s.tt != nil {
		s.tt.NewSearch()
	}
	for _, o := range s.orderers {
		o.Clear()
	}

	main := s.newWorker(ctx, 0, pos, stop)
	main.setRoot(moves)

	if len(main.root) == 1 {
		return s.singleMove(main, start)
	}

	wait := s.startHelpers(ctx, pos, stop, limits)
	it, err := main.iterate(1, limits, iterationHook(ctx, s.opts.OnIteration))
	main.flush()
	helperErr := wait()
	if err != nil {
		return Result{}, err
	}
	if helperErr != nil && !errors.Is(helperErr, context.Canceled) {
		return Result{}, helperErr
	}
	return s.result(it, stop, start), nil
}

// SearchDepth runs a single fixed-depth search without iterative deepening.
// Only ctx can interrupt it.
func (s *Searcher) SearchDepth(ctx context.Context, pos Position, depth int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	stop := newStopper(start, Limits{})
	moves, err := pos.LegalMoves()
	if err != nil {
		return Result{}, err
	}
	if len(moves) == 0 {
		return s.terminalResult(pos, start)
	}
	if s.tt != nil {
		s.tt.NewSearch()
	}
	s.orderers[0].Clear()
	w := s.newWorker(ctx, 0, pos, stop)
	w.mustFinish = true
	w.setRoot(moves)
	score, err := w.searchRoot(max(depth, 1))
	w.flush()
	if err != nil {
		if errors.Is(err, errSearchAborted) {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	it := iteration{
		best:      w.rootBest.Move,
		score:     score,
		pv:        w.pv.root(),
		depth:     max(depth, 1),
		seldepth:  w.seldepth,
		rootMoves: append([]RootMove(nil), w.root...),
	}
	return s.result(it, stop, start), nil
}

func (s *Searcher) terminalResult(pos Position, start time.Time) (Result, error) {
	st := pos.Status()
	if st == Ongoing {
		return Result{}, fmt.Errorf("%w: root has no legal moves but is not terminal: %s", ErrOracleInconsistent, pos.FEN())
	}
	return Result{Terminal: st, Elapsed: time.Since(start)}, nil
}

// singleMove answers a forced move without deepening; the score comes from a
// quiescence search of the resulting position.
func (s *Searcher) singleMove(w *worker, start time.Time) (Result, error) {
	m := w.root[0].Move
	w.mustFinish = true
	score, err := w.searchChild(m, -Infinity, Infinity, 0, 0)
	w.flush()
	if err != nil && !errors.Is(err, errSearchAborted) {
		return Result{}, err
	}
	if err != nil {
		score = 0
	}
	w.root[0].Score = score
	w.root[0].Exact = err == nil
	it := iteration{
		best:      m,
		score:     score,
		pv:        []Move{m},
		depth:     1,
		rootMoves: append([]RootMove(nil), w.root...),
	}
	return s.result(it, w.stop, start), nil
}

func (s *Searcher) result(it iteration, stop *stopper, start time.Time) Result {
	r := Result{
		BestMove:  it.best,
		Score:     it.score,
		PV:        it.pv,
		Nodes:     stop.nodes.Load(),
		Depth:     it.depth,
		SelDepth:  it.seldepth,
		Elapsed:   time.Since(start),
		RootMoves: it.rootMoves,
	}
	if len(r.PV) == 0 || !r.PV[0].Same(r.BestMove) {
		r.PV = []Move{r.BestMove}
	}
	if s.tt != nil {
		r.Table = s.tt.Stats()
	}
	return r
}

func (s *Searcher) newWorker(ctx context.Context, id int, pos Position, stop *stopper) *worker {
	return &worker{
		id:       id,
		ctx:      ctx,
		pos:      pos,
		eval:     s.opts.Evaluator,
		orderer:  s.orderers[id],
		tt:       s.tt,
		stop:     stop,
		pollMask: s.opts.PollInterval - 1,
		qdepth:   s.opts.QuiescenceDepth,
		qchecks:  s.opts.QuiescenceChecks,
		multiPV:  s.opts.MultiPV,
	}
}

// setRoot orders the root moves once with the table move first.
func (w *worker) setRoot(moves []Move) {
	ordered := append([]Move(nil), moves...)
	hint := NoMove
	if w.tt != nil {
		if e, ok := w.tt.Probe(w.pos.Hash()); ok {
			hint = e.Move
		}
	}
	w.orderer.Order(w.pos, ordered, hint, 0)
	w.root = make([]RootMove, len(ordered))
	for i, m := range ordered {
		w.root[i] = RootMove{Move: m, Score: -Infinity}
	}
}

type iteration struct {
	best      Move
	score     Score
	pv        []Move
	depth     int
	seldepth  int
	rootMoves []RootMove
}

// iterate deepens from startDepth. On abort it returns the last completed
// iteration; an abort during the first iteration falls back to the best root
// move searched so far, or the first ordered move.
func (w *worker) iterate(startDepth int, limits Limits, onIteration func(Info)) (iteration, error) {
	var done iteration
	completed := false
	for depth := startDepth; depth <= limits.Depth; depth++ {
		if completed {
			if limits.SoftTime > 0 && w.stop.elapsed() >= limits.SoftTime {
				break
			}
			if w.shouldStop() {
				break
			}
		}
		w.firstOnly = w.id == 0 && !completed
		w.mustFinish, w.overdue = false, false
		w.seldepth = 0
		score, err := w.searchRoot(depth)
		w.firstOnly, w.mustFinish = false, false
		if err != nil {
			if !errors.Is(err, errSearchAborted) {
				return done, err
			}
			if !completed {
				done = w.partial()
			}
			break
		}
		pv := extendPV(w.pos, w.tt, w.pv.root(), depth)
		done = iteration{
			best:      w.rootBest.Move,
			score:     score,
			pv:        pv,
			depth:     depth,
			seldepth:  w.seldepth,
			rootMoves: append([]RootMove(nil), w.root...),
		}
		completed = true
		if onIteration != nil {
			w.flush()
			info := Info{
				Depth:    depth,
				SelDepth: w.seldepth,
				Score:    score,
				Nodes:    w.stop.nodes.Load(),
				PV:       pv,
				Elapsed:  w.stop.elapsed(),
			}
			if w.tt != nil {
				info.HashFull = w.tt.HashFull()
			}
			onIteration(info)
		}
		if score.IsMate() && score.MatePlies() <= depth {
			break
		}
	}
	return done, nil
}

func (w *worker) partial() iteration {
	best := w.rootBest
	if w.rootTried == 0 || best.Move.IsZero() {
		best = RootMove{Move: w.root[0].Move, Score: w.evaluate()}
	}
	return iteration{
		best:      best.Move,
		score:     best.Score,
		pv:        []Move{best.Move},
		rootMoves: append([]RootMove(nil), w.root...),
	}
}

func sortRootMoves(root []RootMove) {
	sort.SliceStable(root, func(i, j int) bool {
		if root[i].Exact != root[j].Exact {
			return root[i].Exact
		}
		return root[i].Score > root[j].Score
	})
}

func sortScoresDesc(scores []Score) {
	sort.Slice(scores, func(i, j int) bool { return scores[i] > scores[j] })
}
