package search

import (
	"strings"

	"github.com/samber/lo"
)

// pvTable is a triangular principal variation store: line[ply] holds the best
// continuation found from ply downwards.
type pvTable struct {
	line   [MaxPly + 1][MaxPly + 1]Move
	length [MaxPly + 1]int
}

func (pv *pvTable) clear(ply int) {
	if ply <= MaxPly {
		pv.length[ply] = 0
	}
}

// update makes m followed by the child's line the line at ply.
func (pv *pvTable) update(ply int, m Move) {
	if ply > MaxPly {
		return
	}
	pv.line[ply][0] = m
	n := 1
	if ply+1 <= MaxPly {
		child := pv.length[ply+1]
		copy(pv.line[ply][1:], pv.line[ply+1][:child])
		n += child
	}
	pv.length[ply] = n
}

func (pv *pvTable) root() []Move {
	return append([]Move(nil), pv.line[0][:pv.length[0]]...)
}

// extendPV follows table moves past the end of line while each one is legal
// and no position repeats. The position is restored before returning.
func extendPV(pos Position, tt *TranspositionTable, line []Move, maxLen int) []Move {
	if tt == nil || len(line) >= maxLen {
		return line
	}
	seen := make(map[uint64]bool, maxLen)
	made := 0
	defer func() {
		for ; made > 0; made-- {
			pos.Unmake()
		}
	}()
	for _, m := range line {
		seen[pos.Hash()] = true
		if err := pos.Make(m); err != nil {
			return line
		}
		made++
	}
	for len(line) < maxLen {
		key := pos.Hash()
		if seen[key] {
			break
		}
		seen[key] = true
		e, ok := tt.Probe(key)
		if !ok || e.Move.IsZero() {
			break
		}
		m, ok := findLegal(pos, e.Move)
		if !ok {
			break
		}
		if err := pos.Make(m); err != nil {
			break
		}
		made++
		line = append(line, m)
	}
	return line
}

func findLegal(pos Position, want Move) (Move, bool) {
	moves, err := pos.LegalMoves()
	if err != nil {
		return NoMove, false
	}
	for _, m := range moves {
		if m.Same(want) {
			return m, true
		}
	}
	return NoMove, false
}

func FormatPV(line []Move) string {
	return strings.Join(lo.Map(line, func(m Move, _ int) string { return m.String() }), " ")
}
