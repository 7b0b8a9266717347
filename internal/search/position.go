package search

import "errors"

// ErrOracleInconsistent marks a position oracle that contradicted itself:
// no legal moves without a terminal classification, or a move it cannot apply.
var ErrOracleInconsistent = errors.New("position oracle inconsistent")

// Position is the oracle the searcher drives. Make and Unmake must be strictly
// paired; a Position is never shared between goroutines, use Clone instead.
type Position interface {
	Hash() uint64
	LegalMoves() ([]Move, error)
	Make(m Move) error
	Unmake()
	InCheck() bool
	Status() Status
	SideToMove() Color
	PieceAt(sq Square) Piece
	Clone() Position
	FEN() string
}

// Evaluator scores a position from the side to move's point of view.
type Evaluator interface {
	Evaluate(pos Position) Score
}

type EvaluatorFunc func(pos Position) Score

func (f EvaluatorFunc) Evaluate(pos Position) Score { return f(pos) }

var materialValues = [...]Score{NoKind: 0, Pawn: 100, Knight: 320, Bishop: 330, Rook: 500, Queen: 900, King: 0}

// PieceValue returns the nominal material value of a piece kind.
func PieceValue(k PieceKind) Score {
	if int(k) >= len(materialValues) {
		return 0
	}
	return materialValues[k]
}

// MaterialEvaluator counts material only. It is the fallback when no
// evaluator is configured.
type MaterialEvaluator struct{}

func (MaterialEvaluator) Evaluate(pos Position) Score {
	var score Score
	for sq := Square(0); sq < NoSquare; sq++ {
		p := pos.PieceAt(sq)
		if p.IsEmpty() {
			continue
		}
		if p.Color == White {
			score += PieceValue(p.Kind)
		} else {
			score -= PieceValue(p.Kind)
		}
	}
	if pos.SideToMove() == Black {
		return -score
	}
	return score
}
