package eval

import "github.com/park285/cheese-engine/internal/search"

// Piece-square tables are indexed from a1 for White; Black reads them through
// sq^56. Values are deliberately small so material always dominates.
var (
	pawnTable = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		5, 5, 5, 5, 5, 5, 5, 5,
		1, 1, 2, 3, 3, 2, 1, 1,
		0, 0, 1, 2, 2, 1, 0, 0,
		0, 0, 0, 2, 2, 0, 0, 0,
		0, -1, -1, 0, 0, -1, -1, 0,
		0, 1, 1, -2, -2, 1, 1, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
	}
	knightTable = [64]int{
		-5, -4, -3, -3, -3, -3, -4, -5,
		-4, -2, 0, 0, 0, 0, -2, -4,
		-3, 0, 1, 2, 2, 1, 0, -3,
		-3, 0, 2, 3, 3, 2, 0, -3,
		-3, 0, 2, 3, 3, 2, 0, -3,
		-3, 0, 1, 2, 2, 1, 0, -3,
		-4, -2, 0, 0, 0, 0, -2, -4,
		-5, -4, -3, -3, -3, -3, -4, -5,
	}
	bishopTable = [64]int{
		-2, -1, -1, -1, -1, -1, -1, -2,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-1, 0, 1, 1, 1, 1, 0, -1,
		-1, 0, 1, 2, 2, 1, 0, -1,
		-1, 0, 1, 2, 2, 1, 0, -1,
		-1, 0, 1, 1, 1, 1, 0, -1,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-2, -1, -1, -1, -1, -1, -1, -2,
	}
	rookTable = [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		1, 2, 2, 2, 2, 2, 2, 1,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-1, 0, 0, 0, 0, 0, 0, -1,
		0, 0, 0, 1, 1, 0, 0, 0,
	}
	queenTable = [64]int{
		-2, -1, -1, 0, 0, -1, -1, -2,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-1, 0, 1, 1, 1, 1, 0, -1,
		-1, 0, 1, 1, 1, 1, 0, -1,
		-1, 0, 1, 1, 1, 1, 0, -1,
		-1, 0, 1, 1, 1, 1, 0, -1,
		-1, 0, 0, 0, 0, 0, 0, -1,
		-2, -1, -1, 0, 0, -1, -1, -2,
	}
	kingMiddlegameTable = [64]int{
		-3, -4, -4, -5, -5, -4, -4, -3,
		-3, -4, -4, -5, -5, -4, -4, -3,
		-3, -4, -4, -5, -5, -4, -4, -3,
		-3, -4, -4, -5, -5, -4, -4, -3,
		-2, -3, -3, -4, -4, -3, -3, -2,
		-1, -2, -2, -2, -2, -2, -2, -1,
		2, 2, 0, 0, 0, 0, 2, 2,
		2, 3, 1, 0, 0, 1, 3, 2,
	}
	kingEndgameTable = [64]int{
		-5, -4, -3, -2, -2, -3, -4, -5,
		-3, -2, -1, 0, 0, -1, -2, -3,
		-3, -1, 2, 3, 3, 2, -1, -3,
		-3, -1, 3, 4, 4, 3, -1, -3,
		-3, -1, 3, 4, 4, 3, -1, -3,
		-3, -1, 2, 3, 3, 2, -1, -3,
		-3, -3, 0, 0, 0, 0, -3, -3,
		-5, -3, -3, -3, -3, -3, -3, -5,
	}
)

func pieceSquare(p search.Piece, sq search.Square, endgame bool) int {
	idx := int(sq)
	if p.Color == search.Black {
		idx ^= 56
	}
	switch p.Kind {
	case search.Pawn:
		return pawnTable[idx]
	case search.Knight:
		return knightTable[idx]
	case search.Bishop:
		return bishopTable[idx]
	case search.Rook:
		return rookTable[idx]
	case search.Queen:
		return queenTable[idx]
	case search.King:
		if endgame {
			return kingEndgameTable[idx]
		}
		return kingMiddlegameTable[idx]
	default:
		return 0
	}
}
