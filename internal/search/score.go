package search

import "fmt"

type Score int32

const (
	Infinity  Score = 1_000_000
	MateScore Score = 100_000
	Draw      Score = 0

	MaxPly = 128

	// MateThreshold separates mate scores from ordinary evaluations.
	MateThreshold = MateScore - MaxPly
)

// MatedIn is the score of the side to move when it is checkmated at ply.
func MatedIn(ply int) Score { return -MateScore + Score(ply) }

// MateIn is the score of delivering mate at ply.
func MateIn(ply int) Score { return MateScore - Score(ply) }

func (s Score) IsMate() bool { return s > MateThreshold || s < -MateThreshold }

// MatePlies returns the distance to mate in plies, 0 when s is not a mate score.
func (s Score) MatePlies() int {
	switch {
	case s > MateThreshold:
		return int(MateScore - s)
	case s < -MateThreshold:
		return int(MateScore + s)
	default:
		return 0
	}
}

// MateMoves returns signed full moves to mate: positive when the side to move
// mates, negative when it gets mated.
func (s Score) MateMoves() int {
	plies := s.MatePlies()
	if plies == 0 {
		return 0
	}
	if s > 0 {
		return (plies + 1) / 2
	}
	return -(plies + 1) / 2
}

func (s Score) String() string {
	if s.IsMate() {
		return fmt.Sprintf("mate %d", s.MateMoves())
	}
	return fmt.Sprintf("cp %d", int32(s))
}

// Mate scores are stored relative to the node so that a transposition reached
// at a different ply still reports the right distance.
func scoreToTT(s Score, ply int) Score {
	switch {
	case s > MateThreshold:
		return s + Score(ply)
	case s < -MateThreshold:
		return s - Score(ply)
	default:
		return s
	}
}

func scoreFromTT(s Score, ply int) Score {
	switch {
	case s > MateThreshold:
		return s - Score(ply)
	case s < -MateThreshold:
		return s + Score(ply)
	default:
		return s
	}
}
