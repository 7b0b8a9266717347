package search

import "strings"

// Square indexes the board from a1 (0) to h8 (63).
type Square uint8

const NoSquare Square = 64

func NewSquare(file, rank int) Square {
	return Square(rank*8 + file)
}

func (s Square) File() int { return int(s) & 7 }
func (s Square) Rank() int { return int(s) >> 3 }

func (s Square) String() string {
	if s >= NoSquare {
		return "-"
	}
	return string([]byte{byte('a' + s.File()), byte('1' + s.Rank())})
}

type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) Other() Color { return c ^ 1 }

func (c Color) String() string {
	if c == White {
		return "white"
	}
	return "black"
}

type PieceKind uint8

const (
	NoKind PieceKind = iota
	Pawn
	Knight
	Bishop
	Rook
	Queen
	King
)

var kindLetters = [...]byte{' ', 'p', 'n', 'b', 'r', 'q', 'k'}

func (k PieceKind) Letter() byte {
	if int(k) >= len(kindLetters) {
		return ' '
	}
	return kindLetters[k]
}

type Piece struct {
	Kind  PieceKind
	Color Color
}

var NoPiece = Piece{}

func (p Piece) IsEmpty() bool { return p.Kind == NoKind }

type MoveFlag uint8

const (
	FlagCapture MoveFlag = 1 << iota
	FlagEnPassant
	FlagCheck
	FlagCastle
)

// Move is produced by the position oracle and never mutated afterwards.
// Identity is (From, To, Promo); the remaining fields are hints for ordering.
type Move struct {
	From     Square
	To       Square
	Promo    PieceKind
	Piece    PieceKind
	Captured PieceKind
	Flags    MoveFlag
}

var NoMove = Move{}

func (m Move) IsZero() bool { return m.From == 0 && m.To == 0 }

func (m Move) Same(o Move) bool {
	return m.From == o.From && m.To == o.To && m.Promo == o.Promo
}

func (m Move) IsCapture() bool   { return m.Flags&(FlagCapture|FlagEnPassant) != 0 }
func (m Move) IsPromotion() bool { return m.Promo != NoKind }
func (m Move) GivesCheck() bool  { return m.Flags&FlagCheck != 0 }
func (m Move) IsQuiet() bool     { return !m.IsCapture() && !m.IsPromotion() }

// String renders the move in UCI long algebraic form.
func (m Move) String() string {
	if m.IsZero() {
		return "0000"
	}
	var b strings.Builder
	b.WriteString(m.From.String())
	b.WriteString(m.To.String())
	if m.Promo != NoKind {
		b.WriteByte(m.Promo.Letter())
	}
	return b.String()
}

type Status uint8

const (
	Ongoing Status = iota
	Checkmate
	Stalemate
	Repetition
	FiftyMove
	InsufficientMaterial
)

func (s Status) IsDraw() bool {
	return s == Stalemate || s == Repetition || s == FiftyMove || s == InsufficientMaterial
}

func (s Status) IsTerminal() bool { return s != Ongoing }

func (s Status) String() string {
	switch s {
	case Ongoing:
		return "ongoing"
	case Checkmate:
		return "checkmate"
	case Stalemate:
		return "stalemate"
	case Repetition:
		return "repetition"
	case FiftyMove:
		return "fifty-move"
	case InsufficientMaterial:
		return "insufficient-material"
	default:
		return "unknown"
	}
}
