// Package eval holds the default static evaluator: material, piece-square
// tables and a few attack-based safety terms.
package eval

import (
	"github.com/park285/cheese-engine/internal/board"
	"github.com/park285/cheese-engine/internal/search"
)

const (
	// endgameMaxPieces: the phase is endgame once the side with fewer pieces
	// (king included) is down to this many.
	endgameMaxPieces = 5

	kingDangerPerAttack = 5
	centerPerAttacker   = 3
	badTradeMargin      = 150
)

var centerSquares = [...]search.Square{
	search.NewSquare(3, 3), search.NewSquare(4, 3),
	search.NewSquare(3, 4), search.NewSquare(4, 4),
}

// Config switches the positional terms. Material and piece-square tables are
// always on.
type Config struct {
	Hanging    bool `yaml:"hanging"`
	KingSafety bool `yaml:"king_safety"`
	Center     bool `yaml:"center"`
}

func DefaultConfig() Config {
	return Config{Hanging: true, KingSafety: true, Center: true}
}

// Evaluator is stateless and safe for concurrent use.
type Evaluator struct {
	cfg Config
}

func New(cfg Config) *Evaluator {
	return &Evaluator{cfg: cfg}
}

func NewDefault() *Evaluator { return New(DefaultConfig()) }

func (e *Evaluator) Evaluate(pos search.Position) search.Score {
	g := board.GridOf(pos)
	s := e.white(&g)
	if pos.SideToMove() == search.Black {
		s = -s
	}
	return search.Score(s)
}

// white scores g from White's point of view.
func (e *Evaluator) white(g *board.Grid) int {
	var counts [2]int
	score := 0
	for _, p := range g {
		if p.IsEmpty() {
			continue
		}
		counts[p.Color]++
		v := int(search.PieceValue(p.Kind))
		if p.Color == search.White {
			score += v
		} else {
			score -= v
		}
	}
	endgame := min(counts[search.White], counts[search.Black]) <= endgameMaxPieces

	for i, p := range g {
		if p.IsEmpty() {
			continue
		}
		ps := pieceSquare(p, search.Square(i), endgame)
		if p.Color == search.White {
			score += ps
		} else {
			score -= ps
		}
	}

	if e.cfg.Hanging {
		score -= hangingPenalty(g, search.White)
		score += hangingPenalty(g, search.Black)
	}
	if !endgame && e.cfg.KingSafety {
		score -= kingDanger(g, search.White)
		score += kingDanger(g, search.Black)
	}
	if !endgame && e.cfg.Center {
		for _, sq := range centerSquares {
			score += (g.CountAttackers(sq, search.White) - g.CountAttackers(sq, search.Black)) * centerPerAttacker
		}
	}
	return score
}

// hangingPenalty charges side for pieces attacked more often than defended,
// and for pieces that a much cheaper attacker can trade off.
func hangingPenalty(g *board.Grid, side search.Color) int {
	var attackers, defenders [16]search.Square
	penalty := 0
	for i, p := range g {
		if p.IsEmpty() || p.Color != side || p.Kind == search.King {
			continue
		}
		sq := search.Square(i)
		att := g.Attackers(attackers[:0], sq, side.Other())
		if len(att) == 0 {
			continue
		}
		def := g.Attackers(defenders[:0], sq, side)
		value := int(search.PieceValue(p.Kind))
		if len(att) > len(def) {
			penalty += value * 7 / 10
			continue
		}
		if len(def) == 0 {
			continue
		}
		cheapest := value
		for _, a := range att {
			cheapest = min(cheapest, int(search.PieceValue(g[a].Kind)))
		}
		if value > cheapest+badTradeMargin {
			penalty += (value - cheapest) * 4 / 10
		}
	}
	return penalty
}

// kingDanger counts enemy attacks on squares within two steps of side's king.
func kingDanger(g *board.Grid, side search.Color) int {
	k := g.King(side)
	if k == search.NoSquare {
		return 0
	}
	danger := 0
	for df := -2; df <= 2; df++ {
		for dr := -2; dr <= 2; dr++ {
			f, r := k.File()+df, k.Rank()+dr
			if f < 0 || f > 7 || r < 0 || r > 7 {
				continue
			}
			danger += g.CountAttackers(search.NewSquare(f, r), side.Other()) * kingDangerPerAttack
		}
	}
	return danger
}
