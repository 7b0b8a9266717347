package search

import (
	"context"
	"time"
)

// QuiesceRoot runs a full-window quiescence search on pos.
func QuiesceRoot(s *Searcher, pos Position) (Score, error) {
	w := s.newWorker(context.Background(), 0, pos, newStopper(time.Now(), Limits{}))
	w.mustFinish = true
	return w.quiesce(-Infinity, Infinity, 0, 0)
}
