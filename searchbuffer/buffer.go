// Package searchbuffer implements the bounded best-first state machine: a
// sorted frontier of the current top candidates plus a frontier cursor
// separating expanded from not-yet-expanded entries, and a companion
// visited set.
//
// The frontier is a slice of candidates kept in distance order with a
// per-entry "expanded" flag and a capacity-respecting insertion, combined
// with a simpler "top/not-visited" state machine for the termination
// check.
package searchbuffer

import (
	"github.com/RoaringBitmap/roaring"

	"github.com/svs-go/svs/distance"
)

// Entry is one candidate held by the buffer.
type Entry struct {
	ID       uint32
	Dist     float32
	expanded bool
}

// Buffer is the per-query BestBuffer: capacity = WindowSize + ExtraCapacity,
// ordered by the active metric's comparator.
type Buffer struct {
	metric   distance.Metric
	window   int
	extra    int
	capacity int
	entries  []Entry
}

// New allocates a Buffer for one query. window is W, extra is X;
// capacity is W+X.
func New(metric distance.Metric, window, extra int) *Buffer {
	if window < 1 {
		window = 1
	}
	if extra < 0 {
		extra = 0
	}
	return &Buffer{
		metric: metric, window: window, extra: extra, capacity: window + extra,
		entries: make([]Entry, 0, window+extra),
	}
}

func (b *Buffer) Size() int     { return len(b.entries) }
func (b *Buffer) Capacity() int { return b.capacity }
func (b *Buffer) Window() int   { return b.window }
func (b *Buffer) At(k int) Entry { return b.entries[k] }

// Reset clears the buffer and seeds it with the given entry points.
func (b *Buffer) Reset(ids []uint32, dists []float32) {
	b.entries = b.entries[:0]
	for i, id := range ids {
		b.Insert(id, dists[i])
	}
}

// Insert attempts to add (id, dist) in sorted order, evicting the worst
// entry if the buffer is full. If full and dist is not better than the
// current worst (worse or equal), the candidate is discarded without comparison cost beyond that
// check. Deduplication against a visited set is the caller's
// responsibility (via VisitedSet below).
func (b *Buffer) Insert(id uint32, dist float32) bool {
	if len(b.entries) >= b.capacity {
		worst := b.entries[len(b.entries)-1]
		if !b.metric.Better(dist, worst.Dist) {
			return false
		}
	}
	pos := b.insertionIndex(dist)
	b.entries = append(b.entries, Entry{})
	copy(b.entries[pos+1:], b.entries[pos:])
	b.entries[pos] = Entry{ID: id, Dist: dist}
	if len(b.entries) > b.capacity {
		b.entries = b.entries[:b.capacity]
	}
	return true
}

func (b *Buffer) insertionIndex(dist float32) int {
	lo, hi := 0, len(b.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if b.metric.Better(b.entries[mid].Dist, dist) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// NextUnexpanded returns the first not-yet-expanded entry (marking it
// expanded) whose distance is within the current window, or ok=false when
// none remains — the termination condition of greedy search.
func (b *Buffer) NextUnexpanded() (id uint32, dist float32, ok bool) {
	limit := len(b.entries)
	if limit > b.window {
		limit = b.window
	}
	for i := 0; i < limit; i++ {
		if !b.entries[i].expanded {
			b.entries[i].expanded = true
			return b.entries[i].ID, b.entries[i].Dist, true
		}
	}
	return 0, 0, false
}

// Sort is a no-op placeholder — Buffer keeps entries sorted on every
// Insert already, so this simply documents that the invariant holds.
func (b *Buffer) Sort() {}

// Results copies out up to k entries, padding with the sentinel
// (id=MaxUint32, dist=metric.Worst()) when fewer than k were found.
func (b *Buffer) Results(k int) []Entry {
	out := make([]Entry, k)
	for i := 0; i < k; i++ {
		if i < len(b.entries) {
			out[i] = Entry{ID: b.entries[i].ID, Dist: b.entries[i].Dist}
		} else {
			out[i] = Entry{ID: ^uint32(0), Dist: b.metric.Worst()}
		}
	}
	return out
}

// VisitedSet is the companion bitset/hash-set a caller uses to avoid
// re-queuing an already-seen vertex, backed by a Roaring bitmap for
// compact storage over sparse, large id spaces (grounded on semadb's use
// of github.com/RoaringBitmap/roaring/roaring64 for the equivalent
// filter/visited structures).
type VisitedSet struct {
	bm *roaring.Bitmap
}

// NewVisitedSet allocates an empty visited set.
func NewVisitedSet() *VisitedSet { return &VisitedSet{bm: roaring.New()} }

// Contains reports whether id has already been marked visited.
func (v *VisitedSet) Contains(id uint32) bool { return v.bm.Contains(id) }

// Add marks id visited, reporting whether it was newly added.
func (v *VisitedSet) Add(id uint32) bool { return v.bm.CheckedAdd(id) }

// Reset clears the set for reuse across queries.
func (v *VisitedSet) Reset() { v.bm.Clear() }

// Len reports the number of visited ids.
func (v *VisitedSet) Len() int { return int(v.bm.GetCardinality()) }
