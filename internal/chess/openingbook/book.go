// Package openingbook reads Polyglot opening books.
package openingbook

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	chesslib "github.com/corentings/chess/v2"
)

type Result struct {
	Move   string `json:"move"`
	Weight uint16 `json:"weight"`
}

type Book struct {
	book *chesslib.PolyglotBook
}

// Open loads the Polyglot book at path.
func Open(path string) (*Book, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("polyglot book path required")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open polyglot book %q: %w", path, err)
	}
	defer file.Close()

	b, err := Load(file)
	if err != nil {
		return nil, fmt.Errorf("load polyglot book %q: %w", path, err)
	}
	return b, nil
}

func Load(r io.Reader) (*Book, error) {
	book, err := chesslib.LoadFromReader(r)
	if err != nil {
		return nil, err
	}
	return &Book{book: book}, nil
}

// Lookup returns the book moves for the position reached from fen by moves,
// heaviest first. Entries that are not legal in the position are skipped.
func (b *Book) Lookup(fen string, moves []string) ([]Result, error) {
	if b == nil || b.book == nil {
		return nil, nil
	}
	game, err := buildGameFromPosition(fen, moves)
	if err != nil {
		return nil, err
	}

	hasher := chesslib.NewZobristHasher()
	hashStr, err := hasher.HashPosition(game.FEN())
	if err != nil {
		return nil, fmt.Errorf("compute polyglot hash: %w", err)
	}
	entries := b.book.FindMoves(chesslib.ZobristHashToUint64(hashStr))
	if len(entries) == 0 {
		return nil, nil
	}

	out := make([]Result, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for _, entry := range entries {
		move := chesslib.DecodeMove(entry.Move).ToMove()
		uciMove := castleFromPolyglot(game, move.String())

		verify := game.Clone()
		if err := verify.PushNotationMove(uciMove, chesslib.UCINotation{}, nil); err != nil {
			continue
		}
		if i, ok := seen[uciMove]; ok {
			out[i].Weight = max(out[i].Weight, entry.Weight)
			continue
		}
		seen[uciMove] = len(out)
		out = append(out, Result{Move: uciMove, Weight: entry.Weight})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Weight == out[j].Weight {
			return out[i].Move < out[j].Move
		}
		return out[i].Weight > out[j].Weight
	})
	return out, nil
}

// Polyglot writes castling as the king capturing its own rook.
var polyglotCastles = map[string]string{
	"e1h1": "e1g1",
	"e1a1": "e1c1",
	"e8h8": "e8g8",
	"e8a8": "e8c8",
}

func castleFromPolyglot(game *chesslib.Game, move string) string {
	to, ok := polyglotCastles[move]
	if !ok {
		return move
	}
	sq := chesslib.Square((move[1]-'1')*8 + (move[0] - 'a'))
	if game.Position().Board().Piece(sq).Type() != chesslib.King {
		return move
	}
	return to
}

// ResolveBookPath returns the book configured by CHESS_POLYGLOT_BOOK_PATH or
// the first default location that exists, "" when there is none.
func ResolveBookPath() (string, error) {
	if envPath := os.Getenv("CHESS_POLYGLOT_BOOK_PATH"); envPath != "" {
		if exists(envPath) {
			return envPath, nil
		}
		return "", fmt.Errorf("env CHESS_POLYGLOT_BOOK_PATH points to missing file: %s", envPath)
	}

	for _, candidate := range defaultBookPaths() {
		if exists(candidate) {
			return candidate, nil
		}
	}

	return "", nil
}

func defaultBookPaths() []string {
	return []string{
		filepath.Join("resources", "opening", "book.bin"),
		filepath.Join("resources", "opening", "Cerebellum3Merge.bin"),
	}
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func buildGameFromPosition(fen string, moves []string) (*chesslib.Game, error) {
	var game *chesslib.Game

	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		game = chesslib.NewGame()
	} else {
		option, err := chesslib.FEN(fen)
		if err != nil {
			return nil, fmt.Errorf("parse fen %q: %w", fen, err)
		}
		game = chesslib.NewGame(option)
	}

	for _, mv := range moves {
		if err := game.PushNotationMove(mv, chesslib.UCINotation{}, nil); err != nil {
			return nil, fmt.Errorf("apply move %q: %w", mv, err)
		}
	}
	return game, nil
}
