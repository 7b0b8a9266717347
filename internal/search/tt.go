package search

import (
	"math/bits"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pbnjay/memory"
)

type Bound uint8

const (
	BoundNone Bound = iota
	// BoundExact: the full window was searched.
	BoundExact
	// BoundLower: the node failed high, the true score is at least Score.
	BoundLower
	// BoundUpper: no move raised alpha, the true score is at most Score.
	BoundUpper
)

func (b Bound) String() string {
	switch b {
	case BoundExact:
		return "exact"
	case BoundLower:
		return "lower"
	case BoundUpper:
		return "upper"
	default:
		return "none"
	}
}

type TableEntry struct {
	Key   uint64
	Move  Move
	Score Score
	Depth int16
	Bound Bound
	age   uint8
}

func (e TableEntry) valid() bool { return e.Bound != BoundNone }

const (
	shardCount = 256
	// Tables sized from system memory never exceed this many megabytes.
	maxAutoTableMB = 256
	minTableMB     = 1
	autoMemoryFrac = 1.0 / 16
)

var entrySize = uint64(unsafe.Sizeof(TableEntry{}))

type TableStats struct {
	Probes     uint64
	Hits       uint64
	Stores     uint64
	Collisions uint64
}

func (s TableStats) HitRate() float64 {
	if s.Probes == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Probes)
}

// TranspositionTable is a fixed power-of-two array of entries indexed by the
// low bits of the position hash. The full key is kept in every slot so a slot
// occupied by another position is never reported as a hit.
type TranspositionTable struct {
	table    []TableEntry
	sizeMask uint64
	shards   [shardCount]sync.RWMutex
	age      atomic.Uint32

	probes     atomic.Uint64
	hits       atomic.Uint64
	stores     atomic.Uint64
	collisions atomic.Uint64
}

// NewTranspositionTable allocates a table of roughly sizeMB megabytes. A
// non-positive size picks a fraction of system memory.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	if sizeMB <= 0 {
		sizeMB = autoTableMB(memory.TotalMemory())
	}
	n := entriesFor(uint64(sizeMB) << 20)
	return &TranspositionTable{
		table:    make([]TableEntry, n),
		sizeMask: n - 1,
	}
}

func autoTableMB(totalMem uint64) int {
	if totalMem == 0 {
		return 16
	}
	mb := int(float64(totalMem>>20) * autoMemoryFrac)
	if mb > maxAutoTableMB {
		mb = maxAutoTableMB
	}
	if mb < minTableMB {
		mb = minTableMB
	}
	return mb
}

// entriesFor returns the biggest power of two number of entries fitting in bytes.
func entriesFor(bytes uint64) uint64 {
	n := bytes / entrySize
	if n < 2 {
		return 2
	}
	return uint64(1) << (bits.Len64(n) - 1)
}

func (t *TranspositionTable) Len() int { return len(t.table) }

func (t *TranspositionTable) shard(idx uint64) *sync.RWMutex {
	return &t.shards[idx%shardCount]
}

// Probe returns the entry stored for key. A slot holding a different key is a
// miss.
func (t *TranspositionTable) Probe(key uint64) (TableEntry, bool) {
	t.probes.Add(1)
	idx := key & t.sizeMask
	mu := t.shard(idx)
	mu.RLock()
	e := t.table[idx]
	mu.RUnlock()
	if !e.valid() || e.Key != key {
		return TableEntry{}, false
	}
	t.hits.Add(1)
	return e, true
}

// Store writes e under key subject to the replacement policy: empty slots,
// other positions and entries from older searches are always overwritten. For
// the same position a result at least as deep wins, and a shallower exact
// result still replaces a stored bound.
func (t *TranspositionTable) Store(key uint64, e TableEntry) {
	idx := key & t.sizeMask
	e.Key = key
	e.age = uint8(t.age.Load())
	mu := t.shard(idx)
	mu.Lock()
	defer mu.Unlock()
	old := t.table[idx]
	if !replaces(old, e) {
		return
	}
	if old.valid() && old.Key != key {
		t.collisions.Add(1)
	}
	if e.Move.IsZero() && old.Key == key {
		// keep the best move known for this position
		e.Move = old.Move
	}
	t.table[idx] = e
	t.stores.Add(1)
}

func replaces(old, e TableEntry) bool {
	switch {
	case !old.valid():
		return true
	case old.Key != e.Key:
		return true
	case old.age != e.age:
		return true
	case e.Depth >= old.Depth:
		return true
	case e.Bound == BoundExact && old.Bound != BoundExact:
		return true
	default:
		return false
	}
}

// NewSearch marks entries written so far as belonging to an older search.
func (t *TranspositionTable) NewSearch() {
	t.age.Add(1)
}

func (t *TranspositionTable) Clear() {
	for i := range t.shards {
		t.shards[i].Lock()
	}
	clear(t.table)
	for i := range t.shards {
		t.shards[i].Unlock()
	}
	t.probes.Store(0)
	t.hits.Store(0)
	t.stores.Store(0)
	t.collisions.Store(0)
}

// HashFull samples the first thousand slots and returns the permille in use
// by the current search.
func (t *TranspositionTable) HashFull() int {
	n := min(1000, len(t.table))
	if n == 0 {
		return 0
	}
	age := uint8(t.age.Load())
	used := 0
	for i := 0; i < n; i++ {
		mu := t.shard(uint64(i))
		mu.RLock()
		e := t.table[i]
		mu.RUnlock()
		if e.valid() && e.age == age {
			used++
		}
	}
	return used * 1000 / n
}

func (t *TranspositionTable) Stats() TableStats {
	return TableStats{
		Probes:     t.probes.Load(),
		Hits:       t.hits.Load(),
		Stores:     t.stores.Load(),
		Collisions: t.collisions.Load(),
	}
}
