package chess

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/park285/cheese-engine/internal/board"
	"github.com/park285/cheese-engine/internal/cache"
	"github.com/park285/cheese-engine/internal/chess/openingbook"
	"github.com/park285/cheese-engine/internal/domain"
	"github.com/park285/cheese-engine/internal/search"
)

const scholarsMateFEN = "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 4 4"

func newTestEngine(t *testing.T, cfg EngineConfig) *Engine {
	t.Helper()
	cfg.Pool = PoolConfig{PerPresetCapacity: 1, HashMBOverride: 1, ThreadsOverride: 1}
	cfg.Logger = zaptest.NewLogger(t)
	cfg.Seed = 7
	e := NewEngine(cfg)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func newTestCache(t *testing.T) (*cache.CacheService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := cache.NewFromClient(rdb, "chess:", nil)
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

type fakeBook struct {
	results []openingbook.Result
	calls   int
}

func (b *fakeBook) Lookup(string, []string) ([]openingbook.Result, error) {
	b.calls++
	return b.results, nil
}

func TestEvaluateFindsMate(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	res, err := e.Evaluate(context.Background(), EvaluateRequest{PresetName: "master", FEN: scholarsMateFEN})
	require.NoError(t, err)
	assert.Equal(t, SourceSearch, res.Source)
	assert.Equal(t, "h5f7", res.Chosen.Move)
	assert.Equal(t, "h5f7", res.EngineBestMove)
	assert.Equal(t, 1, res.Chosen.MateIn)
	assert.Equal(t, search.MateIn(1), res.Score)
	assert.False(t, res.Blunder)
	assert.NotEmpty(t, res.SearchID)
	assert.Positive(t, res.Nodes)
}

func TestEvaluateUsesAnalysisCache(t *testing.T) {
	svc, mr := newTestCache(t)
	e := newTestEngine(t, EngineConfig{Cache: svc, CacheTTL: time.Hour})
	req := EvaluateRequest{PresetName: "master", FEN: scholarsMateFEN}

	first, err := e.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceSearch, first.Source)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "chess:analysis:"))
	assert.Equal(t, time.Hour, mr.TTL(keys[0]))

	second, err := e.Evaluate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, second.Source)
	assert.Equal(t, first.Chosen.Move, second.Chosen.Move)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Depth, second.Depth)

	// another preset does not share the entry
	third, err := e.Evaluate(context.Background(), EvaluateRequest{PresetName: "level6", FEN: scholarsMateFEN})
	require.NoError(t, err)
	assert.Equal(t, SourceSearch, third.Source)
}

func TestShallowCachedAnalysisIsSearchedAgain(t *testing.T) {
	svc, _ := newTestCache(t)
	e := newTestEngine(t, EngineConfig{Cache: svc, CacheTTL: time.Hour})
	ctx := context.Background()
	pos, err := board.New(scholarsMateFEN)
	require.NoError(t, err)
	key := analysisKey(pos, "level8")

	// level8 without a clock searches for a second with no depth cap
	stale := domain.Analysis{
		FEN:        pos.FEN(),
		Preset:     "level8",
		BestMove:   "a2a3",
		Depth:      2,
		MoveTimeMS: 200,
		Lines:      []domain.AnalysisLine{{Move: "a2a3"}},
	}
	require.NoError(t, svc.Set(ctx, key, stale, time.Hour))

	res, err := e.Evaluate(ctx, EvaluateRequest{PresetName: "level8", FEN: scholarsMateFEN})
	require.NoError(t, err)
	assert.Equal(t, SourceSearch, res.Source)
	assert.Equal(t, "h5f7", res.EngineBestMove)

	var stored domain.Analysis
	require.NoError(t, svc.Get(ctx, key, &stored))
	assert.Equal(t, "h5f7", stored.BestMove)
	assert.Equal(t, int64(1000), stored.MoveTimeMS)

	again, err := e.Evaluate(ctx, EvaluateRequest{PresetName: "level8", FEN: scholarsMateFEN})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, again.Source)
}

func TestAnalysisCovers(t *testing.T) {
	second := search.Limits{MoveTime: time.Second}
	tests := []struct {
		name   string
		a      domain.Analysis
		limits search.Limits
		want   bool
	}{
		{"more time", domain.Analysis{Depth: 3, MoveTimeMS: 1500}, second, true},
		{"same time", domain.Analysis{Depth: 3, MoveTimeMS: 1000}, second, true},
		{"less time", domain.Analysis{Depth: 3, MoveTimeMS: 400}, second, false},
		{"depth limit reached", domain.Analysis{Depth: 6, MoveTimeMS: 100}, search.Limits{MoveTime: time.Minute, Depth: 6}, true},
		{"short of depth limit", domain.Analysis{Depth: 3, MoveTimeMS: 100}, search.Limits{MoveTime: time.Minute, Depth: 6}, false},
		{"mate proven", domain.Analysis{Depth: 3, MateIn: 2, MoveTimeMS: 100}, search.Limits{MoveTime: time.Minute}, true},
		{"mate beyond depth", domain.Analysis{Depth: 2, MateIn: 2, MoveTimeMS: 100}, search.Limits{MoveTime: time.Minute}, false},
		{"unfinished", domain.Analysis{Depth: 0, MoveTimeMS: 5000}, second, false},
		{"no time bound", domain.Analysis{Depth: 5, MoveTimeMS: 5000}, search.Limits{Nodes: 1000}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, analysisCovers(tt.a, tt.limits))
		})
	}
}

func TestAnalysisKeyTracksRepetitionHistory(t *testing.T) {
	start, err := board.New(board.StartFEN)
	require.NoError(t, err)
	shuffled, err := board.New(board.StartFEN, "g1f3", "g8f6", "f3g1", "f6g8")
	require.NoError(t, err)
	assert.NotEqual(t, analysisKey(start, "level5"), analysisKey(shuffled, "level5"))
	assert.NotEqual(t, analysisKey(start, "level5"), analysisKey(start, "level6"))

	played, err := board.New(board.StartFEN, "e2e4")
	require.NoError(t, err)
	direct, err := board.New(played.FEN())
	require.NoError(t, err)
	assert.Equal(t, analysisKey(played, "level5"), analysisKey(direct, "level5"), "a pawn move resets history")
}

func TestEvaluateTerminalPosition(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	res, err := e.Evaluate(context.Background(), EvaluateRequest{
		PresetName: "level3",
		Moves:      []string{"f2f3", "e7e5", "g2g4", "d8h4"},
	})
	require.NoError(t, err)
	assert.Equal(t, search.Checkmate, res.Terminal)
	assert.Empty(t, res.Chosen.Move)
	assert.Empty(t, res.Candidates)
}

func TestEvaluateRejectsBadInput(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	_, err := e.Evaluate(context.Background(), EvaluateRequest{PresetName: "level3", FEN: "not a fen"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, board.ErrInvalidPosition))

	_, err = e.Evaluate(context.Background(), EvaluateRequest{PresetName: "level3", Moves: []string{"e2e5"}})
	assert.True(t, errors.Is(err, board.ErrInvalidPosition))

	_, err = e.Evaluate(context.Background(), EvaluateRequest{PresetName: "level99"})
	assert.True(t, errors.Is(err, ErrUnknownPreset))
}

func TestEvaluateBusy(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	preset, err := GetPreset("level3")
	require.NoError(t, err)
	held, err := e.pool.Acquire(context.Background(), optionsFromPreset(preset))
	require.NoError(t, err)
	defer e.pool.Release(held, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Evaluate(ctx, EvaluateRequest{PresetName: "level3", FEN: scholarsMateFEN})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEngineBusy))
}

func TestEvaluatePlaysFromBook(t *testing.T) {
	book := &fakeBook{results: []openingbook.Result{
		{Move: "e2e4", Weight: 30},
		{Move: "d2d4", Weight: 20},
		{Move: "a1a5", Weight: 500}, // not legal here
	}}
	e := newTestEngine(t, EngineConfig{Book: book, Opening: OpeningOptions{MaxPly: 2}})

	for i := 0; i < 10; i++ {
		res, err := e.Evaluate(context.Background(), EvaluateRequest{PresetName: "master"})
		require.NoError(t, err)
		assert.Equal(t, SourceBook, res.Source)
		assert.Contains(t, []string{"e2e4", "d2d4"}, res.Chosen.Move)
		assert.Len(t, res.Candidates, 2)
	}

	// past the book horizon the engine searches
	calls := book.calls
	res, err := e.Evaluate(context.Background(), EvaluateRequest{PresetName: "level1", Moves: []string{"e2e4", "e7e5"}})
	require.NoError(t, err)
	assert.Equal(t, SourceSearch, res.Source)
	assert.Equal(t, calls, book.calls)
}

func TestEvaluateAppliesOpeningPreferences(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	for i := 0; i < 5; i++ {
		res, err := e.Evaluate(context.Background(), EvaluateRequest{PresetName: "level1", Moves: []string{"e2e4"}})
		require.NoError(t, err)
		assert.Contains(t, []string{"c7c5", "e7e5"}, res.Chosen.Move)
		assert.True(t, res.Chosen.Forced)
	}
}

func TestEvaluateWithClock(t *testing.T) {
	e := newTestEngine(t, EngineConfig{})
	tracker := NewTimeTracker()
	res, err := e.Evaluate(context.Background(), EvaluateRequest{
		PresetName: "advanced",
		FEN:        scholarsMateFEN,
		Remaining:  5 * time.Second,
		Tracker:    tracker,
	})
	require.NoError(t, err)
	assert.Equal(t, "level7", res.Preset.Name)
	assert.NotEmpty(t, res.Chosen.Move)
	assert.Less(t, res.Duration, 5*time.Second)
	assert.Equal(t, "h5f7", res.EngineBestMove)
}
