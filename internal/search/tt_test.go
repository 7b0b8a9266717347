package search

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/matryer/is"
)

func TestTableSizing(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(1)
	n := tt.Len()
	is.True(n > 0)
	is.Equal(n&(n-1), 0) // power of two
	is.True(uint64(n)*entrySize <= 1<<20)

	is.Equal(autoTableMB(0), 16)
	is.Equal(autoTableMB(1<<20), minTableMB)
	is.Equal(autoTableMB(64<<30), maxAutoTableMB)
	is.Equal(autoTableMB(1<<30), 64)
}

func TestProbeChecksFullKey(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(1)
	key := uint64(0xdeadbeef)
	other := key + uint64(tt.Len()) // same slot, different position

	tt.Store(key, TableEntry{Score: 42, Depth: 3, Bound: BoundExact})
	e, ok := tt.Probe(key)
	is.True(ok)
	is.Equal(e.Score, Score(42))
	is.Equal(e.Key, key)

	_, ok = tt.Probe(other)
	is.True(!ok)
}

func TestReplacementPolicy(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(1)
	key := uint64(7)
	m := Move{From: 12, To: 28}

	tt.Store(key, TableEntry{Move: m, Score: 10, Depth: 6, Bound: BoundLower})

	// shallower bound loses
	tt.Store(key, TableEntry{Score: 20, Depth: 3, Bound: BoundUpper})
	e, _ := tt.Probe(key)
	is.Equal(e.Depth, int16(6))

	// shallower exact beats a deeper bound, and keeps the known move
	tt.Store(key, TableEntry{Score: 30, Depth: 4, Bound: BoundExact})
	e, _ = tt.Probe(key)
	is.Equal(e.Score, Score(30))
	is.Equal(e.Bound, BoundExact)
	is.True(e.Move.Same(m))

	// a new search makes the old entry replaceable by anything
	tt.NewSearch()
	tt.Store(key, TableEntry{Score: -5, Depth: 1, Bound: BoundUpper})
	e, _ = tt.Probe(key)
	is.Equal(e.Depth, int16(1))

	// another position always takes the slot
	other := key + uint64(tt.Len())
	tt.Store(other, TableEntry{Score: 1, Depth: 1, Bound: BoundLower})
	_, ok := tt.Probe(key)
	is.True(!ok)
	is.Equal(tt.Stats().Collisions, uint64(1))
}

func TestClearAndHashFull(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(1)
	for k := uint64(0); k < 1000; k++ {
		tt.Store(k, TableEntry{Depth: 1, Bound: BoundExact})
	}
	is.Equal(tt.HashFull(), 1000)
	tt.NewSearch()
	is.Equal(tt.HashFull(), 0)
	tt.Clear()
	_, ok := tt.Probe(3)
	is.True(!ok)
	is.Equal(tt.Stats().Stores, uint64(0))
}

func TestTableConcurrentAccess(t *testing.T) {
	is := is.New(t)
	tt := NewTranspositionTable(1)
	var wg sync.WaitGroup
	var mismatches atomic.Int64
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for k := uint64(0); k < 5000; k++ {
				tt.Store(k, TableEntry{Score: Score(k), Depth: int16(g), Bound: BoundExact})
				if e, ok := tt.Probe(k); ok && e.Score != Score(k) {
					mismatches.Add(1)
				}
			}
		}(g)
	}
	wg.Wait()
	is.Equal(mismatches.Load(), int64(0))
}

func TestMateScoresRoundTripThroughTable(t *testing.T) {
	is := is.New(t)
	for _, s := range []Score{MateIn(5), MatedIn(8), 150, -150, 0} {
		for _, ply := range []int{0, 3, 17} {
			is.Equal(scoreFromTT(scoreToTT(s, ply), ply), s)
		}
	}
	// a mate found 3 plies below the root is stored as mate from the node
	is.Equal(scoreToTT(MateIn(5), 3), MateIn(2))
}
