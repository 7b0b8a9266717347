package chess

import (
	"math/rand"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/park285/cheese-engine/internal/board"
	"github.com/park285/cheese-engine/internal/chess/openingbook"
)

// tryOpeningMove plays from the book while the game is young. The pick is
// weighted by book weight and then passed through the preset's humanizer.
func (e *Engine) tryOpeningMove(req EvaluateRequest, pos *board.Position, preset *DifficultyPreset, r *rand.Rand) ([]Candidate, Candidate, bool) {
	if e.book == nil || preset == nil || r == nil {
		return nil, Candidate{}, false
	}
	if len(req.Moves) >= e.opening.MaxPly {
		return nil, Candidate{}, false
	}

	results, err := e.book.Lookup(pos.FEN(), nil)
	if err != nil {
		e.logger.Warn("opening-book-lookup", zap.String("fen", pos.FEN()), zap.Error(err))
		return nil, Candidate{}, false
	}
	results = lo.Filter(results, func(res openingbook.Result, _ int) bool {
		if int(res.Weight) < e.opening.MinWeight {
			return false
		}
		_, err := pos.ParseMove(res.Move)
		return err == nil
	})
	if len(results) == 0 {
		return nil, Candidate{}, false
	}

	candidates := lo.Map(results, func(res openingbook.Result, _ int) Candidate {
		return Candidate{Move: res.Move, Principal: []string{res.Move}}
	})
	candidates = forceBookMove(candidates, selectBookMove(results, r).Move)
	candidates = e.applyPreferences(req, preset, candidates, r)
	chosen, _, err := SelectCandidate(*preset, candidates, r)
	if err != nil {
		return nil, Candidate{}, false
	}
	return candidates, chosen, true
}

// selectBookMove draws one entry with probability proportional to its weight.
func selectBookMove(results []openingbook.Result, r *rand.Rand) openingbook.Result {
	if len(results) == 0 {
		return openingbook.Result{}
	}
	total := lo.SumBy(results, func(res openingbook.Result) int { return int(res.Weight) })
	if r == nil || total <= 0 {
		return results[0]
	}
	roll := r.Intn(total)
	for _, res := range results {
		roll -= int(res.Weight)
		if roll < 0 {
			return res
		}
	}
	return results[len(results)-1]
}

// forceBookMove puts move first and marks it forced, adding it when the
// candidates lack it.
func forceBookMove(candidates []Candidate, move string) []Candidate {
	if move == "" {
		return candidates
	}
	idx := findCandidateIndex(candidates, move)
	if idx == -1 {
		c := Candidate{Move: move, Principal: []string{move}, Forced: true}
		if len(candidates) > 0 {
			c.EvalCP = candidates[0].EvalCP
		}
		return append([]Candidate{c}, candidates...)
	}
	return promoteCandidate(candidates, idx, true)
}

type preferenceMatch struct {
	pref OpeningPreference
	prob float64
	idx  int
}

// applyOpeningPreferences steers black into a preferred line. Every
// preference whose line continues the game offers its next black move; forced
// preferences win over the rest, and within a group the pick is weighted by
// probability. The chosen move goes first and the preset's first candidate
// weight is scaled by the preference's multiplier.
func applyOpeningPreferences(p *DifficultyPreset, candidates []Candidate, moves []string, r *rand.Rand) []Candidate {
	if p == nil || r == nil || len(p.OpeningPreferences) == 0 || len(candidates) == 0 || len(moves)%2 == 0 {
		return candidates
	}
	white, black := splitMovesByColor(moves)

	var forced, optional []preferenceMatch
	for _, pref := range p.OpeningPreferences {
		next, ok := nextPreferredMove(pref, white, black)
		if !ok {
			continue
		}
		prob := pref.Probability
		if pref.Force && prob <= 0 {
			prob = 1
		}
		if prob <= 0 {
			continue
		}
		idx := findCandidateIndex(candidates, next)
		if idx == -1 {
			candidates = append(candidates, Candidate{Move: next})
			idx = len(candidates) - 1
		}
		m := preferenceMatch{pref: pref, prob: prob, idx: idx}
		if pref.Force {
			candidates[idx].Forced = true
			forced = append(forced, m)
		} else {
			optional = append(optional, m)
		}
	}

	group := forced
	if len(group) == 0 {
		group = optional
	}
	if len(group) == 0 {
		return candidates
	}
	selected := pickPreference(group, r)
	candidates = promoteCandidate(candidates, selected.idx, selected.pref.Force)
	if len(p.CandidateWeights) > 0 {
		if p.CandidateWeights[0] == 0 {
			p.CandidateWeights[0] = selected.pref.WeightMultiplier
		} else {
			p.CandidateWeights[0] *= selected.pref.WeightMultiplier
		}
	}
	return candidates
}

// nextPreferredMove returns the black reply pref wants when the game so far
// follows its line: white's moves agree as far as both go and black's moves
// are a strict prefix of pref.BlackMoves.
func nextPreferredMove(pref OpeningPreference, white, black []string) (string, bool) {
	if len(pref.WhiteMoves) == 0 || len(white) == 0 || len(black) >= len(pref.BlackMoves) {
		return "", false
	}
	n := min(len(white), len(pref.WhiteMoves))
	if !sameMoves(white[:n], pref.WhiteMoves[:n]) || !sameMoves(black, pref.BlackMoves[:len(black)]) {
		return "", false
	}
	return normalizeMove(pref.BlackMoves[len(black)]), true
}

func pickPreference(group []preferenceMatch, r *rand.Rand) preferenceMatch {
	roll := r.Float64() * lo.SumBy(group, func(m preferenceMatch) float64 { return m.prob })
	for _, m := range group {
		roll -= m.prob
		if roll < 0 {
			return m
		}
	}
	return group[len(group)-1]
}

// promoteCandidate moves candidates[idx] to the front. A forced promotion
// leaves only the front candidate forced among the two swapped.
func promoteCandidate(candidates []Candidate, idx int, forced bool) []Candidate {
	if idx != 0 {
		candidates[0], candidates[idx] = candidates[idx], candidates[0]
		if forced {
			candidates[idx].Forced = false
		}
	}
	if forced {
		candidates[0].Forced = true
	}
	return candidates
}

func splitMovesByColor(moves []string) (white, black []string) {
	for i, mv := range moves {
		if i%2 == 0 {
			white = append(white, mv)
		} else {
			black = append(black, mv)
		}
	}
	return white, black
}

func sameMoves(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if normalizeMove(a[i]) != normalizeMove(b[i]) {
			return false
		}
	}
	return true
}

func findCandidateIndex(candidates []Candidate, move string) int {
	move = normalizeMove(move)
	if move == "" {
		return -1
	}
	for i, c := range candidates {
		if normalizeMove(c.Move) == move {
			return i
		}
	}
	return -1
}

func normalizeMove(mv string) string { return strings.ToLower(strings.TrimSpace(mv)) }
