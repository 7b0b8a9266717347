package chessbuilder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corechess "github.com/park285/cheese-engine/internal/chess"
	"github.com/park285/cheese-engine/internal/config"
)

func TestParseRedisURL(t *testing.T) {
	c, err := parseRedisURL("redis://:pw@cache.local:6380/3")
	require.NoError(t, err)
	assert.Equal(t, "cache.local", c.Host)
	assert.Equal(t, 6380, c.Port)
	assert.Equal(t, "pw", c.Password)
	assert.Equal(t, 3, c.DB)

	c, err = parseRedisURL("rediss://cache.local")
	require.NoError(t, err)
	assert.Equal(t, 6379, c.Port)
	assert.Zero(t, c.DB)

	_, err = parseRedisURL("http://cache.local")
	require.Error(t, err)
}

func TestNewWiresEngineAndCache(t *testing.T) {
	t.Setenv("CHESS_POLYGLOT_BOOK_PATH", "")
	mr := miniredis.RunT(t)
	cfg := &config.AppConfig{
		DefaultPreset: "level2",
		HashMB:        1,
		Threads:       1,
		PoolCapacity:  1,
		RedisURL:      fmt.Sprintf("redis://%s/0", mr.Addr()),
		OpeningMaxPly: 12,
	}
	deps, err := New(cfg, nil)
	require.NoError(t, err)
	defer deps.Close()
	require.NotNil(t, deps.Engine)
	require.NotNil(t, deps.Cache)
	assert.Nil(t, deps.Book)

	res, err := deps.Engine.Evaluate(context.Background(), corechess.EvaluateRequest{
		PresetName: deps.DefaultPreset,
		FEN:        "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1",
	})
	require.NoError(t, err)
	assert.Equal(t, "a1a8", res.EngineBestMove)
	assert.Len(t, mr.Keys(), 1)
}

func TestNewAppliesPresetOverrides(t *testing.T) {
	t.Setenv("CHESS_POLYGLOT_BOOK_PATH", "")
	saved, err := corechess.GetPreset("level4")
	require.NoError(t, err)
	t.Cleanup(func() { _ = corechess.RegisterPreset(saved) })

	path := filepath.Join(t.TempDir(), "presets.yaml")
	require.NoError(t, os.WriteFile(path, []byte("presets:\n  - name: level4\n    eval_noise: 3\n"), 0o600))

	deps, err := New(&config.AppConfig{DefaultPreset: "level4", MaxDepth: 2, MoveTimeMS: 90, PresetsFile: path}, nil)
	require.NoError(t, err)
	defer deps.Close()

	p, err := corechess.GetPreset("level4")
	require.NoError(t, err)
	assert.Equal(t, 2, p.DepthCap)
	assert.Equal(t, 90, p.MoveTimeMillis)
	assert.Equal(t, 3, p.EvalNoise)
	assert.Nil(t, deps.Cache)
}

func TestNewFailsOnMissingBook(t *testing.T) {
	_, err := New(&config.AppConfig{DefaultPreset: "level1", PolyglotBookPath: filepath.Join(t.TempDir(), "none.bin")}, nil)
	require.Error(t, err)
	_, err = New(nil, nil)
	require.Error(t, err)
}
