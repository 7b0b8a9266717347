package board

import "github.com/park285/cheese-engine/internal/search"

// Grid is a mailbox board indexed like search.Square.
type Grid [64]search.Piece

func GridOf(pos search.Position) Grid {
	if g, ok := pos.(interface{ Grid() Grid }); ok {
		return g.Grid()
	}
	var g Grid
	for sq := search.Square(0); sq < search.NoSquare; sq++ {
		g[sq] = pos.PieceAt(sq)
	}
	return g
}

func (g *Grid) King(c search.Color) search.Square {
	for sq := range g {
		if g[sq].Kind == search.King && g[sq].Color == c {
			return search.Square(sq)
		}
	}
	return search.NoSquare
}

type offset struct{ df, dr int }

var (
	knightJumps = [...]offset{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [...]offset{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	rookRays    = [...]offset{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	bishopRays  = [...]offset{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

func step(sq search.Square, o offset) (search.Square, bool) {
	f, r := sq.File()+o.df, sq.Rank()+o.dr
	if f < 0 || f > 7 || r < 0 || r > 7 {
		return search.NoSquare, false
	}
	return search.NewSquare(f, r), true
}

// Attackers appends to dst the squares holding pieces of color by that attack
// sq, ignoring pins.
func (g *Grid) Attackers(dst []search.Square, sq search.Square, by search.Color) []search.Square {
	// a pawn of color by attacks sq from one rank behind it
	dr := -1
	if by == search.Black {
		dr = 1
	}
	for _, df := range [...]int{-1, 1} {
		if from, ok := step(sq, offset{df, dr}); ok && g[from] == (search.Piece{Kind: search.Pawn, Color: by}) {
			dst = append(dst, from)
		}
	}
	for _, o := range knightJumps {
		if from, ok := step(sq, o); ok && g[from] == (search.Piece{Kind: search.Knight, Color: by}) {
			dst = append(dst, from)
		}
	}
	for _, o := range kingSteps {
		if from, ok := step(sq, o); ok && g[from] == (search.Piece{Kind: search.King, Color: by}) {
			dst = append(dst, from)
		}
	}
	dst = g.rayAttackers(dst, sq, by, rookRays[:], search.Rook)
	dst = g.rayAttackers(dst, sq, by, bishopRays[:], search.Bishop)
	return dst
}

func (g *Grid) rayAttackers(dst []search.Square, sq search.Square, by search.Color, rays []offset, slider search.PieceKind) []search.Square {
	for _, o := range rays {
		cur := sq
		for {
			next, ok := step(cur, o)
			if !ok {
				break
			}
			cur = next
			p := g[cur]
			if p.IsEmpty() {
				continue
			}
			if p.Color == by && (p.Kind == slider || p.Kind == search.Queen) {
				dst = append(dst, cur)
			}
			break
		}
	}
	return dst
}

func (g *Grid) IsAttacked(sq search.Square, by search.Color) bool {
	var buf [16]search.Square
	return len(g.Attackers(buf[:0], sq, by)) > 0
}

func (g *Grid) CountAttackers(sq search.Square, by search.Color) int {
	var buf [16]search.Square
	return len(g.Attackers(buf[:0], sq, by))
}

// InCheck reports whether side's king is attacked.
func (g *Grid) InCheck(side search.Color) bool {
	k := g.King(side)
	if k == search.NoSquare {
		return false
	}
	return g.IsAttacked(k, side.Other())
}

// InsufficientMaterial reports bare kings, or a single minor piece against a
// bare king.
func (g *Grid) InsufficientMaterial() bool {
	minors := 0
	for _, p := range g {
		switch p.Kind {
		case search.NoKind, search.King:
		case search.Knight, search.Bishop:
			minors++
		default:
			return false
		}
	}
	return minors <= 1
}
