package chess

import (
	"math"
	"sync"
	"time"

	"github.com/park285/cheese-engine/internal/search"
)

const (
	baseMaxMoveTime    = 15 * time.Second
	maxOpponentMatch   = 30 * time.Second
	minMoveTime        = 500 * time.Millisecond
	emergencyMoveTime  = 300 * time.Millisecond
	softStopFraction   = 0.85
	hardStopFraction   = 0.9
	initialStrength    = 0.5
	strengthMemory     = 0.8
	clockMaxDepthLimit = 8
	clockMinDepthLimit = 2
)

// TimeBudget is the time allotted to one move. Soft stops new iterations from
// starting; Hard aborts the running one.
type TimeBudget struct {
	Soft     time.Duration
	Hard     time.Duration
	MaxDepth int
}

// TimeTracker keeps per-game timing state: how long we and the opponent took
// for the last moves and a running estimate of opponent strength in [0,1].
type TimeTracker struct {
	mu sync.Mutex

	strength         float64
	lastMoveTime     time.Duration
	opponentLastMove time.Duration
	lastSearchEnd    time.Time
	lastScore        search.Score
	haveScore        bool

	now func() time.Time
}

func NewTimeTracker() *TimeTracker {
	return &TimeTracker{strength: initialStrength, now: time.Now}
}

func (t *TimeTracker) OpponentStrength() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.strength
}

// Begin marks the start of our turn; the time since the previous Finish is
// the opponent's thinking time.
func (t *TimeTracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.lastSearchEnd.IsZero() {
		t.opponentLastMove = t.now().Sub(t.lastSearchEnd)
	}
}

// Finish records our move. score is our search score for the position we were
// given; its change since our previous move measures the opponent's reply.
func (t *TimeTracker) Finish(score search.Score, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.haveScore && t.opponentLastMove > 0 {
		t.updateStrength(t.lastScore, score, t.opponentLastMove)
	}
	t.lastScore, t.haveScore = score, true
	t.lastMoveTime = elapsed
	t.lastSearchEnd = t.now()
}

func (t *TimeTracker) updateStrength(before, after search.Score, opponentTime time.Duration) {
	swing := -float64(after - before)
	quality := math.Max(0, math.Min(1, (swing+100)/600))
	speed := 0.3
	switch {
	case opponentTime < time.Second:
		speed = 1.0
	case opponentTime < 3*time.Second:
		speed = 0.7
	}
	signal := 0.7*quality + 0.3*speed
	t.strength = strengthMemory*t.strength + (1-strengthMemory)*signal
}

// Budget allots time for one move given our remaining clock and the number
// of pieces on the board. A non-positive remaining means no clock.
func (t *TimeTracker) Budget(remaining time.Duration, pieces int) TimeBudget {
	t.mu.Lock()
	defer t.mu.Unlock()

	if remaining <= 0 {
		return TimeBudget{Soft: baseMaxMoveTime, Hard: baseMaxMoveTime, MaxDepth: depthForTime(baseMaxMoveTime)}
	}

	adaptiveMax := baseMaxMoveTime
	switch {
	case t.strength > 0.7:
		adaptiveMax = scale(baseMaxMoveTime, 1+t.strength)
	case t.strength > 0.5:
		adaptiveMax = scale(baseMaxMoveTime, 1.3)
	}
	if t.opponentLastMove > baseMaxMoveTime && remaining > time.Minute {
		adaptiveMax = max(adaptiveMax, min(t.opponentLastMove, maxOpponentMatch))
	}

	var base time.Duration
	switch {
	case remaining > 2*time.Minute:
		base = remaining / 30
	case remaining > time.Minute:
		base = remaining / 25
	case remaining > 20*time.Second:
		base = remaining / 20
	default:
		base = remaining / 10
	}

	switch {
	case pieces > 25:
		base = scale(base, 1.3)
	case pieces > 20:
		base = scale(base, 1.1)
	case pieces < 10:
		base = scale(base, 0.8)
	}

	if t.lastMoveTime > 0 {
		switch {
		case t.lastMoveTime > scale(base, 1.5):
			base = scale(base, 0.8)
		case t.lastMoveTime < scale(base, 0.5):
			base = scale(base, 1.2)
		}
	}

	forMove := min(adaptiveMax, max(minMoveTime, base))
	hard := min(adaptiveMax, scale(remaining, hardStopFraction))
	return TimeBudget{
		Soft:     min(scale(forMove, softStopFraction), hard),
		Hard:     hard,
		MaxDepth: depthForTime(forMove),
	}
}

// depthForTime caps the iteration depth so short budgets do not start
// iterations they cannot finish.
func depthForTime(d time.Duration) int {
	if d < emergencyMoveTime {
		return clockMinDepthLimit
	}
	depth := int(math.Round(math.Log(3*d.Seconds())/math.Log(3))) + 3
	return max(clockMinDepthLimit, min(clockMaxDepthLimit, depth))
}

func scale(d time.Duration, f float64) time.Duration {
	return time.Duration(float64(d) * f)
}
