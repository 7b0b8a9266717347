package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"lukechampine.com/frand"
)

// startHelpers launches Threads-1 lazy SMP helpers. Helpers deepen on their
// own clone of pos and only contribute through the shared table; their
// results are discarded. The returned function stops the helpers and waits
// for them.
func (s *Searcher) startHelpers(ctx context.Context, pos Position, stop *stopper, limits Limits) func() error {
	if s.opts.Threads <= 1 {
		return func() error { return nil }
	}
	helperCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(helperCtx)
	for t := 1; t < s.opts.Threads; t++ {
		hw := s.newWorker(gctx, t, pos.Clone(), stop)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("search helper %d: %v", t, r)
				}
			}()
			defer hw.flush()
			moves, err := hw.pos.LegalMoves()
			if err != nil {
				return err
			}
			hw.setRoot(moves)
			switch {
			case t == 1:
				// table order
			case t <= 7:
				frand.Shuffle(len(hw.root), func(i, j int) {
					hw.root[i], hw.root[j] = hw.root[j], hw.root[i]
				})
			default:
				// keep the first third in front, shuffled among themselves
				top := len(hw.root) / 3
				frand.Shuffle(top, func(i, j int) {
					hw.root[i], hw.root[j] = hw.root[j], hw.root[i]
				})
				rest := hw.root[top:]
				frand.Shuffle(len(rest), func(i, j int) {
					rest[i], rest[j] = rest[j], rest[i]
				})
			}
			_, err = hw.iterate(1+t%2, limits, nil)
			return err
		})
	}
	return func() error {
		cancel()
		return g.Wait()
	}
}
