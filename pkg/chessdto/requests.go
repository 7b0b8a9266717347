package chessdto

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/park285/cheese-engine/internal/board"
)

// AnalyzeRequest asks for a move in the position reached from FEN by Moves.
type AnalyzeRequest struct {
	ID          string   `json:"id,omitempty"`
	FEN         string   `json:"fen,omitempty"`
	Moves       []string `json:"moves,omitempty"`
	Preset      string   `json:"preset,omitempty"`
	RemainingMS int64    `json:"remaining_ms,omitempty"`
}

func (r AnalyzeRequest) Remaining() time.Duration {
	return time.Duration(r.RemainingMS) * time.Millisecond
}

// ParseRequestLine accepts a JSON object, or "startpos [moves...]", or a
// six-field FEN followed by moves, optionally introduced by "position" and
// with "moves" before the move list.
func ParseRequestLine(line string) (AnalyzeRequest, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return AnalyzeRequest{}, fmt.Errorf("%w: empty request", board.ErrInvalidPosition)
	}
	if strings.HasPrefix(line, "{") {
		var req AnalyzeRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return AnalyzeRequest{}, fmt.Errorf("decode request: %w", err)
		}
		return req, nil
	}

	fields := strings.Fields(line)
	if fields[0] == "position" {
		fields = fields[1:]
	}
	var req AnalyzeRequest
	switch {
	case len(fields) == 0:
		return AnalyzeRequest{}, fmt.Errorf("%w: missing position", board.ErrInvalidPosition)
	case fields[0] == "startpos":
		req.FEN = board.StartFEN
		fields = fields[1:]
	case fields[0] == "fen":
		fields = fields[1:]
		fallthrough
	default:
		if len(fields) < 6 {
			return AnalyzeRequest{}, fmt.Errorf("%w: fen needs 6 fields: %q", board.ErrInvalidPosition, line)
		}
		req.FEN = strings.Join(fields[:6], " ")
		fields = fields[6:]
	}
	if len(fields) > 0 && fields[0] == "moves" {
		fields = fields[1:]
	}
	req.Moves = fields
	return req, nil
}
