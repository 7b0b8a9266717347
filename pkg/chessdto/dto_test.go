package chessdto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/cheese-engine/internal/board"
	"github.com/park285/cheese-engine/internal/chess"
	"github.com/park285/cheese-engine/internal/search"
)

func TestParseRequestLine(t *testing.T) {
	req, err := ParseRequestLine("startpos e2e4 e7e5")
	require.NoError(t, err)
	assert.Equal(t, board.StartFEN, req.FEN)
	assert.Equal(t, []string{"e2e4", "e7e5"}, req.Moves)

	req, err = ParseRequestLine("position fen 6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1 moves a1a2")
	require.NoError(t, err)
	assert.Equal(t, "6k1/5ppp/8/8/8/8/5PPP/R5K1 w - - 0 1", req.FEN)
	assert.Equal(t, []string{"a1a2"}, req.Moves)

	req, err = ParseRequestLine(`{"id":"q1","fen":"startpos","moves":["d2d4"],"preset":"level2","remaining_ms":1500}`)
	require.NoError(t, err)
	assert.Equal(t, "q1", req.ID)
	assert.Equal(t, "level2", req.Preset)
	assert.Equal(t, 1500*time.Millisecond, req.Remaining())

	for _, bad := range []string{"", "position", "8/8/8 w - -", "{broken"} {
		_, err := ParseRequestLine(bad)
		assert.Error(t, err, bad)
	}
}

func TestErrorOf(t *testing.T) {
	assert.Nil(t, ErrorOf(nil))
	cases := []struct {
		err       error
		code      string
		retryable bool
	}{
		{fmt.Errorf("%w: level9", chess.ErrUnknownPreset), CodeUnknownPreset, false},
		{fmt.Errorf("%w: bad fen", board.ErrInvalidPosition), CodeInvalidPosition, false},
		{fmt.Errorf("%w: %w", chess.ErrEngineBusy, context.DeadlineExceeded), CodeEngineBusy, true},
		{search.ErrOracleInconsistent, CodeInconsistent, false},
		{context.Canceled, CodeCancelled, true},
		{errors.New("boom"), CodeInternal, false},
		{DomainError{Code: "custom"}, "custom", false},
	}
	for _, tc := range cases {
		de := ErrorOf(tc.err)
		require.NotNil(t, de)
		assert.Equal(t, tc.code, de.Code, tc.err.Error())
		assert.Equal(t, tc.retryable, de.Retryable, tc.err.Error())
	}
	assert.Equal(t, "chess engine error", DomainError{}.Error())
}

func TestFromResult(t *testing.T) {
	res := chess.EvaluateResult{
		Preset:         chess.DifficultyPreset{Name: "level8"},
		Duration:       1500 * time.Millisecond,
		Chosen:         chess.Candidate{Move: "h5f7", EvalCP: int(search.MateIn(1)), MateIn: 1, Principal: []string{"h5f7"}},
		Candidates:     []chess.Candidate{{Move: "h5f7", MateIn: 1}},
		EngineBestMove: "h5f7",
		Score:          search.MateIn(1),
		Depth:          2,
		Nodes:          1234,
		Source:         chess.SourceSearch,
	}
	out := FromResult("id-1", res)
	assert.Equal(t, "h5f7", out.Move)
	assert.Equal(t, 1, out.MateIn)
	assert.Equal(t, int64(1500), out.ElapsedMS)
	assert.Empty(t, out.Terminal)
	assert.Len(t, out.Candidates, 1)

	raw, err := json.Marshal(FromResult("", chess.EvaluateResult{Terminal: search.Stalemate}))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"terminal":"stalemate"`)

	failed := FromError("q", chess.ErrEngineBusy)
	require.NotNil(t, failed.Error)
	assert.Equal(t, CodeEngineBusy, failed.Error.Code)
}
