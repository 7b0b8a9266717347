package search

import "sort"

// MoveOrderer ranks moves before they are searched. Implementations must be
// deterministic: the same history and inputs give the same order.
type MoveOrderer interface {
	// Order sorts moves in place, most promising first. hint is the table
	// move for this node and only counts when it is one of moves.
	Order(pos Position, moves []Move, hint Move, ply int)
	// Cutoff records a quiet move that failed high, and the quiets tried
	// before it at the same node.
	Cutoff(side Color, m Move, tried []Move, ply, depth int)
	Clear()
}

const (
	scoreHashMove = 30000
	scoreCapture  = 29000
	scoreCheck    = 28500
	scoreKiller1  = 28000
	scoreKiller2  = 27900
	historyScale  = 100
)

// HistoryOrderer orders by hint, MVV-LVA for captures and promotions, quiet
// checks, two killer slots per ply and a success/try history table.
type HistoryOrderer struct {
	killers     [MaxPly + 1][2]Move
	histSuccess [2][7][64]int32
	histTry     [2][7][64]int32
	scores      []int
}

func NewHistoryOrderer() *HistoryOrderer {
	return &HistoryOrderer{}
}

func (o *HistoryOrderer) Clear() {
	o.killers = [MaxPly + 1][2]Move{}
	o.histSuccess = [2][7][64]int32{}
	o.histTry = [2][7][64]int32{}
}

func (o *HistoryOrderer) Order(pos Position, moves []Move, hint Move, ply int) {
	side := pos.SideToMove()
	if cap(o.scores) < len(moves) {
		o.scores = make([]int, len(moves))
	}
	idx := make([]int, len(moves))
	scores := o.scores[:len(moves)]
	for i, m := range moves {
		idx[i] = i
		scores[i] = o.score(side, m, hint, ply)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return scores[idx[a]] > scores[idx[b]]
	})
	ordered := make([]Move, len(moves))
	for i, j := range idx {
		ordered[i] = moves[j]
	}
	copy(moves, ordered)
}

func (o *HistoryOrderer) score(side Color, m Move, hint Move, ply int) int {
	if !hint.IsZero() && m.Same(hint) {
		return scoreHashMove
	}
	if m.IsCapture() || m.IsPromotion() {
		return scoreCapture + CaptureGain(m)*8/100 - int(m.Piece)
	}
	if m.GivesCheck() {
		return scoreCheck
	}
	if ply <= MaxPly {
		if m.Same(o.killers[ply][0]) {
			return scoreKiller1
		}
		if m.Same(o.killers[ply][1]) {
			return scoreKiller2
		}
	}
	try := o.histTry[side][m.Piece][m.To]
	if try == 0 {
		return 0
	}
	return int(historyScale * o.histSuccess[side][m.Piece][m.To] / try)
}

func (o *HistoryOrderer) Cutoff(side Color, m Move, tried []Move, ply, depth int) {
	if !m.IsQuiet() {
		return
	}
	if ply <= MaxPly && !m.Same(o.killers[ply][0]) {
		o.killers[ply][1] = o.killers[ply][0]
		o.killers[ply][0] = m
	}
	o.histSuccess[side][m.Piece][m.To] += int32(depth)
	o.histTry[side][m.Piece][m.To] += int32(depth)
	for _, q := range tried {
		if q.IsQuiet() && !q.Same(m) {
			o.histTry[side][q.Piece][q.To] += int32(depth)
		}
	}
}

// CaptureGain is the material a capture or promotion wins before any recapture.
func CaptureGain(m Move) int {
	gain := int(PieceValue(m.Captured))
	if m.Flags&FlagEnPassant != 0 {
		gain = int(PieceValue(Pawn))
	}
	if m.Promo != NoKind {
		gain += int(PieceValue(m.Promo) - PieceValue(Pawn))
	}
	return gain
}
