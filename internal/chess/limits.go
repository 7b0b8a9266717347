package chess

import (
	"strconv"
	"strings"
	"time"

	"github.com/park285/cheese-engine/internal/search"
)

// SearchLimits turns a preset into search limits. When the preset follows the
// clock and a budget is given, the budget replaces the fixed move time.
func SearchLimits(p DifficultyPreset, budget *TimeBudget) (search.Limits, error) {
	if err := ValidatePreset(p); err != nil {
		return search.Limits{}, err
	}
	limits := search.Limits{
		Depth: p.DepthCap,
		Nodes: uint64(p.NodeCap),
	}
	if p.MoveTimeMillis > 0 {
		limits.MoveTime = time.Duration(p.MoveTimeMillis) * time.Millisecond
	}
	if p.UseClock && budget != nil && budget.Hard > 0 {
		limits.MoveTime = budget.Hard
		limits.SoftTime = budget.Soft
		if budget.MaxDepth > 0 && (limits.Depth == 0 || budget.MaxDepth < limits.Depth) {
			limits.Depth = budget.MaxDepth
		}
	}
	return limits, nil
}

// FormatLimits renders limits the way a UCI "go" command would.
func FormatLimits(l search.Limits) string {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTime > 0 {
		args = append(args, "movetime", strconv.FormatInt(l.MoveTime.Milliseconds(), 10))
	}
	if l.Nodes > 0 {
		args = append(args, "nodes", strconv.FormatUint(l.Nodes, 10))
	}
	return strings.Join(args, " ")
}
