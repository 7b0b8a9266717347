package domain

import "time"

// AnalysisLine is one scored root move.
type AnalysisLine struct {
	Move   string   `json:"move"`
	EvalCP int      `json:"eval_cp"`
	MateIn int      `json:"mate_in,omitempty"`
	PV     []string `json:"pv,omitempty"`
}

// Analysis is a finished search of one position under one preset. Scores are
// from the side to move. MoveTimeMS is the hard time budget the search ran
// under, 0 when it had none.
type Analysis struct {
	FEN        string         `json:"fen"`
	Preset     string         `json:"preset"`
	BestMove   string         `json:"best_move,omitempty"`
	Score      int            `json:"score"`
	MateIn     int            `json:"mate_in,omitempty"`
	Depth      int            `json:"depth"`
	SelDepth   int            `json:"seldepth"`
	Nodes      uint64         `json:"nodes"`
	MoveTimeMS int64          `json:"move_time_ms,omitempty"`
	Terminal   string         `json:"terminal,omitempty"`
	Lines      []AnalysisLine `json:"lines,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
