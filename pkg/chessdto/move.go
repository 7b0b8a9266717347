package chessdto

import (
	"github.com/samber/lo"

	"github.com/park285/cheese-engine/internal/chess"
)

type CandidateMove struct {
	Move   string   `json:"move"`
	EvalCP int      `json:"eval_cp"`
	MateIn int      `json:"mate_in,omitempty"`
	PV     []string `json:"pv,omitempty"`
}

// MoveResponse is the answer to one AnalyzeRequest. Move is what the bot
// plays; BestMove is what the search preferred.
type MoveResponse struct {
	ID         string          `json:"id,omitempty"`
	Preset     string          `json:"preset"`
	Move       string          `json:"move,omitempty"`
	BestMove   string          `json:"best_move,omitempty"`
	Score      string          `json:"score"`
	ScoreCP    int             `json:"score_cp"`
	MateIn     int             `json:"mate_in,omitempty"`
	Depth      int             `json:"depth"`
	SelDepth   int             `json:"seldepth"`
	Nodes      uint64          `json:"nodes"`
	ElapsedMS  int64           `json:"elapsed_ms"`
	PV         []string        `json:"pv,omitempty"`
	Candidates []CandidateMove `json:"candidates,omitempty"`
	Source     string          `json:"source"`
	SearchID   string          `json:"search_id,omitempty"`
	Terminal   string          `json:"terminal,omitempty"`
	Blunder    bool            `json:"blunder,omitempty"`
	Error      *DomainError    `json:"error,omitempty"`
}

func FromResult(id string, res chess.EvaluateResult) MoveResponse {
	out := MoveResponse{
		ID:        id,
		Preset:    res.Preset.Name,
		Move:      res.Chosen.Move,
		BestMove:  res.EngineBestMove,
		Score:     res.Score.String(),
		ScoreCP:   int(res.Score),
		MateIn:    res.Score.MateMoves(),
		Depth:     res.Depth,
		SelDepth:  res.SelDepth,
		Nodes:     res.Nodes,
		ElapsedMS: res.Duration.Milliseconds(),
		PV:        res.Chosen.Principal,
		Source:    res.Source,
		SearchID:  res.SearchID,
		Blunder:   res.Blunder,
		Candidates: lo.Map(res.Candidates, func(c chess.Candidate, _ int) CandidateMove {
			return CandidateMove{Move: c.Move, EvalCP: c.EvalCP, MateIn: c.MateIn, PV: c.Principal}
		}),
	}
	if res.Terminal.IsTerminal() {
		out.Terminal = res.Terminal.String()
	}
	return out
}

func FromError(id string, err error) MoveResponse {
	return MoveResponse{ID: id, Error: ErrorOf(err)}
}
