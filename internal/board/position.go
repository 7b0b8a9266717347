package board

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	nchess "github.com/corentings/chess/v2"

	"github.com/park285/cheese-engine/internal/search"
)

const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

var ErrInvalidPosition = errors.New("invalid position")

type keyHasher interface {
	HashPosition(fen string) (string, error)
}

// frame is one ply of the search path. The FEN and key are derived on first
// use; quiescence nodes never need them.
type frame struct {
	pos      *nchess.Position
	fen      string
	key      uint64
	keyed    bool
	grid     Grid
	side     search.Color
	halfmove int
	moves    []search.Move
	legal    []nchess.Move
	gen      bool
	check    int8
}

// Position adapts a chess game to search.Position. Each Make pushes a frame
// built from the library's position update, so Unmake is a pop.
type Position struct {
	frames []*frame
	// history holds the keys of game positions played before the root.
	history []uint64
	hasher  keyHasher
}

var _ search.Position = (*Position)(nil)

// New builds a position from fen ("" or "startpos" for the initial position)
// followed by moves in UCI notation.
func New(fen string, moves ...string) (*Position, error) {
	game, err := buildGame(fen)
	if err != nil {
		return nil, err
	}
	p := &Position{hasher: nchess.NewZobristHasher()}
	for _, mv := range moves {
		key, err := p.keyOf(game.FEN())
		if err != nil {
			return nil, err
		}
		if err := game.PushNotationMove(strings.ToLower(strings.TrimSpace(mv)), nchess.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("%w: apply move %q: %v", ErrInvalidPosition, mv, err)
		}
		p.history = append(p.history, key)
	}
	root := newFrame(game.Position())
	if root.key, err = p.keyOf(root.FEN()); err != nil {
		return nil, err
	}
	root.keyed = true
	p.frames = []*frame{root}
	return p, nil
}

func buildGame(fen string) (*nchess.Game, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		return nchess.NewGame(), nil
	}
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: parse fen %q: %v", ErrInvalidPosition, fen, err)
	}
	return nchess.NewGame(opt), nil
}

func (p *Position) keyOf(fen string) (uint64, error) {
	hash, err := p.hasher.HashPosition(fen)
	if err != nil {
		return 0, fmt.Errorf("%w: hash %q: %v", ErrInvalidPosition, fen, err)
	}
	return nchess.ZobristHashToUint64(hash), nil
}

func newFrame(pos *nchess.Position) *frame {
	f := &frame{pos: pos, halfmove: pos.HalfMoveClock(), check: -1}
	board := pos.Board()
	for i := range f.grid {
		f.grid[i] = pieceOf(board.Piece(nchess.Square(i)))
	}
	if pos.Turn() == nchess.Black {
		f.side = search.Black
	}
	return f
}

func (f *frame) FEN() string {
	if f.fen == "" {
		f.fen = f.pos.String()
	}
	return f.fen
}

// hash returns the Polyglot key of the frame. A FEN rendered by the library
// always hashes; should it ever fail, the FEN digest keeps keys distinct.
func (p *Position) hash(f *frame) uint64 {
	if !f.keyed {
		key, err := p.keyOf(f.FEN())
		if err != nil {
			key = xxhash.Sum64String(f.FEN())
		}
		f.key, f.keyed = key, true
	}
	return f.key
}

func (f *frame) generate() {
	if f.gen {
		return
	}
	f.legal = f.pos.ValidMoves()
	f.moves = convertMoves(f)
	f.gen = true
}

func pieceOf(p nchess.Piece) search.Piece {
	if p == nchess.NoPiece {
		return search.NoPiece
	}
	out := search.Piece{Kind: kindOf(p.Type())}
	if p.Color() == nchess.Black {
		out.Color = search.Black
	}
	return out
}

func kindOf(t nchess.PieceType) search.PieceKind {
	switch t {
	case nchess.Pawn:
		return search.Pawn
	case nchess.Knight:
		return search.Knight
	case nchess.Bishop:
		return search.Bishop
	case nchess.Rook:
		return search.Rook
	case nchess.Queen:
		return search.Queen
	case nchess.King:
		return search.King
	default:
		return search.NoKind
	}
}

func (p *Position) top() *frame { return p.frames[len(p.frames)-1] }

func (p *Position) Hash() uint64             { return p.hash(p.top()) }
func (p *Position) FEN() string              { return p.top().FEN() }
func (p *Position) SideToMove() search.Color { return p.top().side }
func (p *Position) PieceAt(sq search.Square) search.Piece {
	if sq >= search.NoSquare {
		return search.NoPiece
	}
	return p.top().grid[sq]
}

// Grid returns a copy of the current board.
func (p *Position) Grid() Grid { return p.top().grid }

// Ply is the number of moves made since the root.
func (p *Position) Ply() int { return len(p.frames) - 1 }

func (p *Position) HalfmoveClock() int { return p.top().halfmove }

func (p *Position) InCheck() bool {
	f := p.top()
	if f.check < 0 {
		f.check = 0
		if f.grid.InCheck(f.side) {
			f.check = 1
		}
	}
	return f.check == 1
}

// LegalMoves returns the oracle's moves for the current position. The slice
// is the caller's to reorder.
func (p *Position) LegalMoves() ([]search.Move, error) {
	f := p.top()
	f.generate()
	return append([]search.Move(nil), f.moves...), nil
}

func convertMoves(f *frame) []search.Move {
	out := make([]search.Move, 0, len(f.legal))
	for _, lm := range f.legal {
		m := search.Move{
			From:  search.Square(lm.S1()),
			To:    search.Square(lm.S2()),
			Promo: kindOf(lm.Promo()),
		}
		m.Piece = f.grid[m.From].Kind
		m.Captured = f.grid[m.To].Kind
		if lm.HasTag(nchess.Capture) || !f.grid[m.To].IsEmpty() {
			m.Flags |= search.FlagCapture
		}
		if lm.HasTag(nchess.EnPassant) {
			m.Flags |= search.FlagEnPassant | search.FlagCapture
			m.Captured = search.Pawn
		}
		if lm.HasTag(nchess.Check) {
			m.Flags |= search.FlagCheck
		}
		if lm.HasTag(nchess.KingSideCastle) || lm.HasTag(nchess.QueenSideCastle) {
			m.Flags |= search.FlagCastle
		}
		out = append(out, m)
	}
	return out
}

// Make plays m. A move that is not among the current legal moves is an
// oracle inconsistency.
func (p *Position) Make(m search.Move) error {
	f := p.top()
	f.generate()
	for i, lm := range f.moves {
		if lm.Same(m) {
			p.frames = append(p.frames, newFrame(f.pos.Update(&f.legal[i])))
			return nil
		}
	}
	return fmt.Errorf("%w: move %s not legal in %s", search.ErrOracleInconsistent, m, f.FEN())
}

func (p *Position) Unmake() {
	if len(p.frames) <= 1 {
		panic("board: unmake past root")
	}
	p.frames[len(p.frames)-1] = nil
	p.frames = p.frames[:len(p.frames)-1]
}

// Status classifies the current position. Checkmate and stalemate come from
// the game library; repetition, fifty-move and insufficient material are
// derived from the frame stack and the board.
func (p *Position) Status() search.Status {
	f := p.top()
	f.generate()
	if len(f.moves) == 0 {
		switch f.pos.Status() {
		case nchess.Checkmate:
			return search.Checkmate
		case nchess.Stalemate:
			return search.Stalemate
		default:
			return search.Ongoing
		}
	}
	switch {
	case f.halfmove >= 100:
		return search.FiftyMove
	case f.grid.InsufficientMaterial():
		return search.InsufficientMaterial
	case p.repeated():
		return search.Repetition
	}
	return search.Ongoing
}

// repeated reports a position seen earlier on the search path, or seen twice
// in the game before the root.
func (p *Position) repeated() bool {
	key := p.hash(p.top())
	for i := len(p.frames) - 2; i >= 0; i-- {
		if p.hash(p.frames[i]) == key {
			return true
		}
	}
	seen := 0
	for _, k := range p.history {
		if k == key {
			seen++
		}
	}
	return seen >= 2
}

// Clone returns an independent position at the current frame. Earlier frames
// become part of the clone's game history.
func (p *Position) Clone() search.Position {
	f := p.top()
	history := append([]uint64(nil), p.history...)
	for _, fr := range p.frames[:len(p.frames)-1] {
		history = append(history, p.hash(fr))
	}
	game, err := buildGame(f.FEN())
	if err != nil {
		panic(fmt.Sprintf("board: clone of %q: %v", f.FEN(), err))
	}
	c := &Position{history: history, hasher: nchess.NewZobristHasher()}
	c.frames = []*frame{newFrame(game.Position())}
	return c
}

// ParseMove resolves a UCI move string against the current legal moves.
func (p *Position) ParseMove(uci string) (search.Move, error) {
	uci = strings.ToLower(strings.TrimSpace(uci))
	moves, err := p.LegalMoves()
	if err != nil {
		return search.NoMove, err
	}
	for _, m := range moves {
		if m.String() == uci {
			return m, nil
		}
	}
	return search.NoMove, fmt.Errorf("%w: move %q not legal in %s", ErrInvalidPosition, uci, p.FEN())
}

// PieceCount counts all pieces on the board, kings included.
func (p *Position) PieceCount() int {
	n := 0
	for _, pc := range p.top().grid {
		if !pc.IsEmpty() {
			n++
		}
	}
	return n
}

// RecentHistory returns the pre-root keys that can still repeat: those
// played since the last capture or pawn move.
func (p *Position) RecentHistory() []uint64 {
	n := min(p.top().halfmove, len(p.history))
	return append([]uint64(nil), p.history[len(p.history)-n:]...)
}
