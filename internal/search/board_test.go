package search_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/park285/cheese-engine/internal/board"
	"github.com/park285/cheese-engine/internal/eval"
	"github.com/park285/cheese-engine/internal/search"
)

func newSearcher(opts search.Options) *search.Searcher {
	opts.Evaluator = eval.NewDefault()
	if opts.HashMB == 0 {
		opts.HashMB = 8
	}
	return search.NewSearcher(opts)
}

func mustPos(t *testing.T, fen string, moves ...string) *board.Position {
	t.Helper()
	pos, err := board.New(fen, moves...)
	if err != nil {
		t.Fatalf("board.New(%q): %v", fen, err)
	}
	return pos
}

func isLegal(pos search.Position, m search.Move) bool {
	moves, err := pos.LegalMoves()
	if err != nil {
		return false
	}
	for _, lm := range moves {
		if lm.Same(m) {
			return true
		}
	}
	return false
}

func TestStartPositionShallow(t *testing.T) {
	is := is.New(t)
	pos := mustPos(t, board.StartFEN)
	res, err := newSearcher(search.Options{}).SearchDepth(context.Background(), pos, 2)
	is.NoErr(err)
	is.True(isLegal(pos, res.BestMove))
	is.True(res.Score > -100 && res.Score < 100)
	is.Equal(pos.FEN(), board.StartFEN) // restored
}

func TestFindsMateInOne(t *testing.T) {
	is := is.New(t)
	const fen = "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 0 1"
	for _, disable := range []bool{false, true} {
		pos := mustPos(t, fen)
		res, err := newSearcher(search.Options{DisableTT: disable}).Search(context.Background(), pos, search.Limits{Depth: 4, MoveTime: 20 * time.Second})
		is.NoErr(err)
		is.Equal(res.BestMove.String(), "h5f7")
		is.Equal(res.Score, search.MateIn(1))
		is.Equal(res.Score.MateMoves(), 1)
		is.True(res.Depth <= 2) // proven mate ends the deepening
	}
}

func TestShorterMateScoresHigher(t *testing.T) {
	is := is.New(t)
	limits := search.Limits{Depth: 5, MoveTime: 30 * time.Second}
	one, err := newSearcher(search.Options{}).Search(context.Background(), mustPos(t, "7k/6pp/8/8/8/8/8/R5K1 w - - 0 1"), limits)
	is.NoErr(err)
	two, err := newSearcher(search.Options{}).Search(context.Background(), mustPos(t, "7k/8/8/8/8/8/8/RR4K1 w - - 0 1"), limits)
	is.NoErr(err)
	is.Equal(one.BestMove.String(), "a1a8")
	is.Equal(one.Score, search.MateIn(1))
	is.True(two.Score.IsMate())
	is.True(one.Score > two.Score)
}

func TestSingleLegalMove(t *testing.T) {
	is := is.New(t)
	pos := mustPos(t, "1r5k/8/8/8/8/8/r7/K7 w - - 0 1")
	moves, err := pos.LegalMoves()
	is.NoErr(err)
	is.Equal(len(moves), 1)
	res, err := newSearcher(search.Options{}).Search(context.Background(), pos, search.Limits{Depth: 20})
	is.NoErr(err)
	is.Equal(res.BestMove.String(), "a1a2")
	is.Equal(res.Depth, 1)
}

func TestWinsHangingQueen(t *testing.T) {
	is := is.New(t)
	pos := mustPos(t, "rnb1kbnr/pppp1ppp/8/4p3/3qP3/5N2/PPPP1PPP/RNBQKB1R w KQkq - 0 1")
	res, err := newSearcher(search.Options{}).Search(context.Background(), pos, search.Limits{Depth: 3, MoveTime: 30 * time.Second})
	is.NoErr(err)
	is.Equal(res.BestMove.String(), "f3d4")
	is.True(res.Score > 300)
}

func TestQuiescenceOfQuietPositionIsStaticEval(t *testing.T) {
	is := is.New(t)
	pos := mustPos(t, "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1")
	s := newSearcher(search.Options{})
	q, err := search.QuiesceRoot(s, pos)
	is.NoErr(err)
	is.Equal(q, eval.NewDefault().Evaluate(pos))
}

func TestQuiescenceTakesFreeMaterial(t *testing.T) {
	is := is.New(t)
	// the rook on d5 is undefended and the knight can take it
	pos := mustPos(t, "4k3/8/8/3r4/8/4N3/8/4K3 w - - 0 1")
	s := newSearcher(search.Options{})
	q, err := search.QuiesceRoot(s, pos)
	is.NoErr(err)
	is.True(q > eval.NewDefault().Evaluate(pos))
	is.True(q > 0)
}

func TestTinyBudgetStillReturnsLegalMove(t *testing.T) {
	is := is.New(t)
	pos := mustPos(t, board.StartFEN, "e2e4", "e7e5", "g1f3", "b8c6")
	res, err := newSearcher(search.Options{}).FindBestMove(context.Background(), pos, time.Millisecond)
	is.NoErr(err)
	is.True(res.HasMove())
	is.True(isLegal(pos, res.BestMove))
}

func TestTacticalPositionHonoursShortBudget(t *testing.T) {
	is := is.New(t)
	const kiwipete = "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1"
	pos := mustPos(t, kiwipete)
	s := newSearcher(search.Options{QuiescenceDepth: 8, QuiescenceChecks: true, PollInterval: 64})
	start := time.Now()
	res, err := s.FindBestMove(context.Background(), pos, 10*time.Millisecond)
	elapsed := time.Since(start)
	is.NoErr(err)
	is.True(res.HasMove())
	is.True(isLegal(pos, res.BestMove))
	is.True(elapsed < 300*time.Millisecond) // overshoot stays small
	is.Equal(pos.FEN(), kiwipete)
}

func TestTableKeepsBestMoveOnBoards(t *testing.T) {
	fens := []string{
		board.StartFEN,
		"r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 0 1",
		"r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1",
		"8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - - 0 1",
		"r2q1rk1/pP1p2pp/Q4n2/bbp1p3/Np6/1B3NBn/pPPP1PPP/R3K2R b KQ - 0 1",
		"4k3/8/8/3r4/8/4N3/8/4K3 w - - 0 1",
	}
	for i, fen := range fens {
		for depth := 1; depth <= 3; depth++ {
			t.Run(fmt.Sprintf("pos%d_depth%d", i, depth), func(t *testing.T) {
				is := is.New(t)
				with, err := newSearcher(search.Options{}).SearchDepth(context.Background(), mustPos(t, fen), depth)
				is.NoErr(err)
				without, err := newSearcher(search.Options{DisableTT: true}).SearchDepth(context.Background(), mustPos(t, fen), depth)
				is.NoErr(err)
				is.Equal(with.Score, without.Score)
				is.Equal(with.BestMove.String(), without.BestMove.String())
			})
		}
	}
}

func TestKingStepsOutInsteadOfLosingBlocker(t *testing.T) {
	// the rook checks along the first rank; both knight blocks drop the knight
	const fen = "k7/8/8/8/8/4N3/6P1/r6K w - - 0 1"
	for _, disable := range []bool{false, true} {
		is := is.New(t)
		pos := mustPos(t, fen)
		s := newSearcher(search.Options{DisableTT: disable})
		res, err := s.SearchDepth(context.Background(), pos, 1)
		is.NoErr(err)
		is.Equal(res.BestMove.String(), "h1h2")

		res, err = s.Search(context.Background(), pos, search.Limits{Depth: 1, MoveTime: 10 * time.Second})
		is.NoErr(err)
		is.Equal(res.BestMove.String(), "h1h2")
	}
}

func TestTerminalRootPositions(t *testing.T) {
	is := is.New(t)
	mated := mustPos(t, "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3")
	res, err := newSearcher(search.Options{}).Search(context.Background(), mated, search.Limits{Depth: 3})
	is.NoErr(err)
	is.True(!res.HasMove())
	is.Equal(res.Terminal, search.Checkmate)

	stale := mustPos(t, "7k/5Q2/6K1/8/8/8/8/8 b - - 0 1")
	res, err = newSearcher(search.Options{}).Search(context.Background(), stale, search.Limits{Depth: 3})
	is.NoErr(err)
	is.Equal(res.Terminal, search.Stalemate)
}

func TestParallelSearchAgreesOnMate(t *testing.T) {
	is := is.New(t)
	pos := mustPos(t, "r1bqkb1r/pppp1ppp/2n2n2/4p2Q/2B1P3/8/PPPP1PPP/RNB1K1NR w KQkq - 0 1")
	res, err := newSearcher(search.Options{Threads: 3}).Search(context.Background(), pos, search.Limits{Depth: 3, MoveTime: 20 * time.Second})
	is.NoErr(err)
	is.Equal(res.BestMove.String(), "h5f7")
}
