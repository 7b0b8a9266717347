package search

import (
	"math/rand/v2"
)

// treePos is a synthetic game tree. Every node has a distinct hash so there
// are no transpositions, and leaves are checkmates or stalemates.
type treePos struct {
	nodes []treeNode
	path  []int
}

type treeNode struct {
	children []int
	eval     Score
	mate     bool
}

func newRandomTree(seed uint64, branching, depth int) *treePos {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	t := &treePos{path: []int{0}}
	t.nodes = append(t.nodes, treeNode{eval: Score(rng.IntN(400) - 200)})
	var grow func(id, d int)
	grow = func(id, d int) {
		if d == 0 {
			return
		}
		n := 1 + rng.IntN(branching)
		if id == 0 {
			n = branching
		}
		for k := 0; k < n; k++ {
			child := len(t.nodes)
			node := treeNode{eval: Score(rng.IntN(400) - 200)}
			t.nodes = append(t.nodes, node)
			t.nodes[id].children = append(t.nodes[id].children, child)
			grow(child, d-1)
		}
	}
	grow(0, depth)
	for i := range t.nodes {
		if len(t.nodes[i].children) == 0 {
			t.nodes[i].mate = rng.IntN(4) == 0
		}
	}
	return t
}

func treeMove(k int) Move { return Move{From: Square(k), To: Square(k + 8)} }

func (t *treePos) cur() *treeNode { return &t.nodes[t.path[len(t.path)-1]] }

func (t *treePos) Hash() uint64 { return uint64(t.path[len(t.path)-1])*0x9e3779b97f4a7c15 + 1 }

func (t *treePos) LegalMoves() ([]Move, error) {
	n := t.cur()
	moves := make([]Move, len(n.children))
	for k := range n.children {
		moves[k] = treeMove(k)
	}
	return moves, nil
}

func (t *treePos) Make(m Move) error {
	n := t.cur()
	k := int(m.From)
	if k >= len(n.children) || !m.Same(treeMove(k)) {
		return ErrOracleInconsistent
	}
	t.path = append(t.path, n.children[k])
	return nil
}

func (t *treePos) Unmake() { t.path = t.path[:len(t.path)-1] }

func (t *treePos) InCheck() bool { return t.cur().mate }

func (t *treePos) Status() Status {
	n := t.cur()
	switch {
	case len(n.children) > 0:
		return Ongoing
	case n.mate:
		return Checkmate
	default:
		return Stalemate
	}
}

func (t *treePos) SideToMove() Color {
	if len(t.path)%2 == 0 {
		return Black
	}
	return White
}

func (t *treePos) PieceAt(Square) Piece { return NoPiece }

func (t *treePos) Clone() Position {
	return &treePos{nodes: t.nodes, path: append([]int(nil), t.path...)}
}

func (t *treePos) FEN() string { return "tree" }

func treeEval(pos Position) Score { return pos.(*treePos).cur().eval }

// minimax is plain negamax over the tree with the same leaf rules as the
// searcher: mates score by ply, stalemates are draws and the horizon is the
// static evaluation.
func minimax(t *treePos, depth, ply int) Score {
	n := t.cur()
	if depth <= 0 {
		if n.mate {
			return MatedIn(ply)
		}
		return n.eval
	}
	if len(n.children) == 0 {
		if n.mate {
			return MatedIn(ply)
		}
		return Draw
	}
	best := -Infinity
	for k := range n.children {
		_ = t.Make(treeMove(k))
		best = max(best, -minimax(t, depth-1, ply+1))
		t.Unmake()
	}
	return best
}
