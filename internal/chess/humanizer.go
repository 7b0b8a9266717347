package chess

import (
	"errors"
	"math"
	"math/rand"

	"github.com/samber/lo"

	"github.com/park285/cheese-engine/internal/search"
)

type Candidate struct {
	Move      string   `json:"move"`
	EvalCP    int      `json:"eval_cp"`
	MateIn    int      `json:"mate_in,omitempty"`
	Principal []string `json:"pv,omitempty"`
	Forced    bool     `json:"forced,omitempty"`
}

// CandidatesFromResult lists the root moves with exact scores, best first,
// capped at limit. The best move always leads even when it is the only exact
// one.
func CandidatesFromResult(res search.Result, limit int) []Candidate {
	if !res.HasMove() {
		return nil
	}
	best := Candidate{
		Move:      res.BestMove.String(),
		EvalCP:    int(res.Score),
		MateIn:    res.Score.MateMoves(),
		Principal: lo.Map(res.PV, func(m search.Move, _ int) string { return m.String() }),
	}
	out := []Candidate{best}
	exact := lo.Filter(res.RootMoves, func(rm search.RootMove, _ int) bool {
		return rm.Exact && !rm.Move.Same(res.BestMove)
	})
	for _, rm := range exact {
		if len(out) >= limit {
			break
		}
		out = append(out, Candidate{
			Move:      rm.Move.String(),
			EvalCP:    int(rm.Score),
			MateIn:    rm.Score.MateMoves(),
			Principal: []string{rm.Move.String()},
		})
	}
	return out
}

func SelectCandidate(p DifficultyPreset, candidates []Candidate, r *rand.Rand) (Candidate, bool, error) {
	if len(candidates) == 0 {
		return Candidate{}, false, errors.New("no candidates to choose from")
	}
	if err := ValidatePreset(p); err != nil {
		return Candidate{}, false, err
	}

	primaryLimit := min(p.PrimaryChoices, len(candidates))

	for i := 0; i < primaryLimit; i++ {
		if candidates[i].Forced {
			return withNoise(p, candidates[i], r), false, nil
		}
	}

	totalWeight := 0.0
	for i := 0; i < primaryLimit; i++ {
		totalWeight += p.CandidateWeights[i]
	}
	if totalWeight == 0 {
		return Candidate{}, false, errors.New("candidate weights sum to zero")
	}

	threshold := r.Float64() * totalWeight
	index := 0
	for i := 0; i < primaryLimit; i++ {
		threshold -= p.CandidateWeights[i]
		if threshold <= 0 {
			index = i
			break
		}
	}

	// a non-best pick that throws away a mate or a lot of material is a blunder
	blunder := index > 0 && isBlunder(candidates[0], candidates[index])
	return withNoise(p, candidates[index], r), blunder, nil
}

const blunderMarginCP = 200

func isBlunder(best, chosen Candidate) bool {
	if best.MateIn > 0 && chosen.MateIn <= 0 {
		return true
	}
	return best.EvalCP-chosen.EvalCP >= blunderMarginCP
}

func withNoise(p DifficultyPreset, c Candidate, r *rand.Rand) Candidate {
	if p.EvalNoise > 0 && c.MateIn == 0 {
		offset := r.Intn(2*p.EvalNoise+1) - p.EvalNoise
		c.EvalCP = saturatingAdd(c.EvalCP, offset)
	}
	return c
}

func saturatingAdd(a, b int) int {
	switch {
	case b > 0 && a > math.MaxInt-b:
		return math.MaxInt
	case b < 0 && a < math.MinInt-b:
		return math.MinInt
	}
	return a + b
}
