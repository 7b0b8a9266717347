package search

import (
	"context"
	"errors"
	"fmt"
)

// errSearchAborted unwinds the recursion when the deadline passes or the
// caller cancels. It never leaves the package.
var errSearchAborted = errors.New("search aborted")

type RootMove struct {
	Move  Move
	Score Score
	// Exact is false when Score is only an upper bound.
	Exact bool
}

// worker owns one position and one orderer. Workers only share the table and
// the stopper.
type worker struct {
	id       int
	ctx      context.Context
	pos      Position
	eval     Evaluator
	orderer  MoveOrderer
	tt       *TranspositionTable
	stop     *stopper
	pollMask uint64
	qdepth   int
	qchecks  bool
	multiPV  int

	pv       pvTable
	nodes    uint64
	seldepth int
	// mustFinish exempts the worker from the deadline and node limit; only
	// cancellation of ctx stops it.
	mustFinish bool
	// firstOnly limits mustFinish to the first root move.
	firstOnly bool
	// overdue is set once an exempt worker passes the deadline; quiescence
	// then stands pat instead of extending.
	overdue bool

	root       []RootMove
	rootBest   RootMove
	rootTried  int
	quietsSeen [MaxPly + 1][]Move
}

func (w *worker) tick() error {
	w.nodes++
	if w.nodes&w.pollMask != 0 {
		return nil
	}
	w.flush()
	if w.shouldStop() {
		return errSearchAborted
	}
	if w.mustFinish && !w.overdue && w.stop.expired() {
		w.overdue = true
	}
	return nil
}

func (w *worker) flush() {
	if w.nodes > 0 {
		w.stop.nodes.Add(w.nodes)
		w.nodes = 0
	}
}

func (w *worker) shouldStop() bool {
	if cancelled(w.ctx) {
		return true
	}
	if w.mustFinish {
		return false
	}
	return w.stop.expired()
}

func (w *worker) evaluate() Score {
	s := w.eval.Evaluate(w.pos)
	switch {
	case s >= MateThreshold:
		return MateThreshold - 1
	case s <= -MateThreshold:
		return -MateThreshold + 1
	default:
		return s
	}
}

// terminal scores a node without legal moves.
func (w *worker) terminal(ply int) (Score, error) {
	switch st := w.pos.Status(); st {
	case Checkmate:
		return MatedIn(ply), nil
	case Ongoing:
		return 0, fmt.Errorf("%w: no legal moves but position is not terminal: %s", ErrOracleInconsistent, w.pos.FEN())
	default:
		return Draw, nil
	}
}

func (w *worker) alphaBeta(alpha, beta Score, depth, ply int) (Score, error) {
	w.pv.clear(ply)
	if depth <= 0 {
		return w.quiesce(alpha, beta, ply, 0)
	}
	if err := w.tick(); err != nil {
		return 0, err
	}
	if ply > w.seldepth {
		w.seldepth = ply
	}
	switch w.pos.Status() {
	case Repetition, FiftyMove, InsufficientMaterial:
		return Draw, nil
	}
	if ply >= MaxPly {
		return w.evaluate(), nil
	}

	key := w.pos.Hash()
	hint := NoMove
	if w.tt != nil {
		if e, ok := w.tt.Probe(key); ok {
			hint = e.Move
			if int(e.Depth) >= depth {
				score := scoreFromTT(e.Score, ply)
				switch e.Bound {
				case BoundExact:
					return score, nil
				case BoundLower:
					alpha = max(alpha, score)
				case BoundUpper:
					beta = min(beta, score)
				}
				if alpha >= beta {
					return score, nil
				}
			}
		}
	}

	moves, err := w.pos.LegalMoves()
	if err != nil {
		return 0, err
	}
	if len(moves) == 0 {
		return w.terminal(ply)
	}
	w.orderer.Order(w.pos, moves, hint, ply)

	side := w.pos.SideToMove()
	origAlpha := alpha
	best, bestMove := -Infinity, NoMove
	quiets := w.quietsSeen[ply][:0]
	for _, m := range moves {
		score, err := w.searchChild(m, alpha, beta, depth, ply)
		if err != nil {
			return 0, err
		}
		if score > best {
			best, bestMove = score, m
		}
		if score > alpha {
			alpha = score
			w.pv.update(ply, m)
		}
		if alpha >= beta {
			w.orderer.Cutoff(side, m, quiets, ply, depth)
			break
		}
		if m.IsQuiet() {
			quiets = append(quiets, m)
		}
	}
	w.quietsSeen[ply] = quiets

	if w.tt != nil {
		bound := BoundExact
		switch {
		case best >= beta:
			bound = BoundLower
		case best <= origAlpha:
			bound = BoundUpper
		}
		w.tt.Store(key, TableEntry{
			Move:  bestMove,
			Score: scoreToTT(best, ply),
			Depth: int16(depth),
			Bound: bound,
		})
	}
	return best, nil
}

// searchChild makes m, searches the child with the negated window and always
// unmakes m before returning.
func (w *worker) searchChild(m Move, alpha, beta Score, depth, ply int) (Score, error) {
	if err := w.pos.Make(m); err != nil {
		return 0, fmt.Errorf("make %s: %w", m, err)
	}
	defer w.pos.Unmake()
	score, err := w.alphaBeta(-beta, -alpha, depth-1, ply+1)
	return -score, err
}

// searchRoot searches every root move with a full window, except that once
// multiPV moves have exact scores alpha rises to the weakest of them.
func (w *worker) searchRoot(depth int) (Score, error) {
	w.pv.clear(0)
	w.rootTried = 0
	w.rootBest = RootMove{Score: -Infinity}
	for i := range w.root {
		w.root[i].Score = -Infinity
		w.root[i].Exact = false
	}
	key := w.pos.Hash()
	beta := Infinity
	for i := range w.root {
		if w.firstOnly {
			w.mustFinish = i == 0
		}
		if i > 0 && w.shouldStop() {
			return w.rootBest.Score, errSearchAborted
		}
		alpha := w.rootAlpha(i)
		rm := &w.root[i]
		score, err := w.searchChild(rm.Move, alpha, beta, depth, 0)
		if err != nil {
			return w.rootBest.Score, err
		}
		w.rootTried++
		rm.Score = score
		rm.Exact = score > alpha
		if score > w.rootBest.Score {
			w.rootBest = *rm
			w.pv.update(0, rm.Move)
		}
	}
	sortRootMoves(w.root)
	if w.tt != nil {
		w.tt.Store(key, TableEntry{
			Move:  w.rootBest.Move,
			Score: scoreToTT(w.rootBest.Score, 0),
			Depth: int16(depth),
			Bound: BoundExact,
		})
	}
	return w.rootBest.Score, nil
}

func (w *worker) rootAlpha(searched int) Score {
	if searched < w.multiPV {
		return -Infinity
	}
	scores := make([]Score, 0, searched)
	for _, rm := range w.root[:searched] {
		if rm.Exact {
			scores = append(scores, rm.Score)
		}
	}
	if len(scores) < w.multiPV {
		return -Infinity
	}
	sortScoresDesc(scores)
	return scores[w.multiPV-1]
}

func (w *worker) quiesce(alpha, beta Score, ply, qply int) (Score, error) {
	if err := w.tick(); err != nil {
		return 0, err
	}
	if ply > w.seldepth {
		w.seldepth = ply
	}
	if ply >= MaxPly || qply >= w.qdepth || (w.overdue && qply > 0) {
		return w.evaluate(), nil
	}

	inCheck := w.pos.InCheck()
	best := -Infinity
	if !inCheck {
		stand := w.evaluate()
		if stand >= beta {
			return stand, nil
		}
		best = stand
		alpha = max(alpha, stand)
	}

	moves, err := w.pos.LegalMoves()
	if err != nil {
		return 0, err
	}
	if inCheck && len(moves) == 0 {
		return MatedIn(ply), nil
	}
	forcing := make([]Move, 0, len(moves))
	for _, m := range moves {
		if inCheck || m.IsCapture() || m.Promo == Queen || (w.qchecks && qply == 0 && m.GivesCheck()) {
			forcing = append(forcing, m)
		}
	}
	if len(forcing) == 0 {
		return best, nil
	}
	w.orderer.Order(w.pos, forcing, NoMove, ply)
	for _, m := range forcing {
		score, err := w.quiesceChild(m, alpha, beta, ply, qply)
		if err != nil {
			return 0, err
		}
		if score > best {
			best = score
		}
		if score > alpha {
			alpha = score
		}
		if alpha >= beta {
			break
		}
	}
	return best, nil
}

func (w *worker) quiesceChild(m Move, alpha, beta Score, ply, qply int) (Score, error) {
	if err := w.pos.Make(m); err != nil {
		return 0, fmt.Errorf("make %s: %w", m, err)
	}
	defer w.pos.Unmake()
	score, err := w.quiesce(-beta, -alpha, ply+1, qply+1)
	return -score, err
}
