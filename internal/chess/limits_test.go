package chess

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-engine/internal/search"
)

func TestSearchLimitsFromPreset(t *testing.T) {
	p, err := GetPreset("level3")
	require.NoError(t, err)

	l, err := SearchLimits(p, nil)
	require.NoError(t, err)
	assert.Equal(t, search.Limits{MoveTime: 80 * time.Millisecond, Depth: 3}, l)

	// level3 ignores the clock
	l, err = SearchLimits(p, &TimeBudget{Soft: time.Second, Hard: 2 * time.Second, MaxDepth: 2})
	require.NoError(t, err)
	assert.Equal(t, 80*time.Millisecond, l.MoveTime)
	assert.Equal(t, 3, l.Depth)
}

func TestSearchLimitsFollowClock(t *testing.T) {
	p, err := GetPreset("level7")
	require.NoError(t, err)

	l, err := SearchLimits(p, &TimeBudget{Soft: 2 * time.Second, Hard: 3 * time.Second, MaxDepth: 5})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, l.MoveTime)
	assert.Equal(t, 2*time.Second, l.SoftTime)
	assert.Equal(t, 5, l.Depth)

	// the preset cap wins when it is tighter
	l, err = SearchLimits(p, &TimeBudget{Soft: time.Second, Hard: time.Second, MaxDepth: 12})
	require.NoError(t, err)
	assert.Equal(t, 8, l.Depth)

	master, err := GetPreset("master")
	require.NoError(t, err)
	l, err = SearchLimits(master, &TimeBudget{Soft: time.Second, Hard: 2 * time.Second, MaxDepth: 6})
	require.NoError(t, err)
	assert.Equal(t, 6, l.Depth)
}

func TestSearchLimitsRejectsInvalidPreset(t *testing.T) {
	_, err := SearchLimits(DifficultyPreset{Name: "broken"}, nil)
	require.Error(t, err)
}

func TestFormatLimits(t *testing.T) {
	assert.Equal(t, "go", FormatLimits(search.Limits{}))
	assert.Equal(t, "go depth 4 movetime 250 nodes 10000",
		FormatLimits(search.Limits{Depth: 4, MoveTime: 250 * time.Millisecond, Nodes: 10000}))
}
