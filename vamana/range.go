package vamana

import (
	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/graph"
	"github.com/svs-go/svs/searchbuffer"
	"github.com/svs-go/svs/store"
)

// RangeResult is one hit returned by a RangeIterator batch.
type RangeResult struct {
	ID   uint32
	Dist float32
}

// RangeIterator drives a growing-batch range search: candidates already
// known to lie within radius form a best-first frontier, and each call to
// Next pops off that frontier, expanding a popped vertex's neighbors and
// admitting any newly discovered in-radius ones back onto the frontier,
// until batchSize new results have been collected or the frontier runs
// dry. Done is reported only once a call collects nothing at all — a
// short, non-empty batch is not itself the end of the search.
type RangeIterator struct {
	g      *graph.Graph
	st     store.Store
	op     distance.Operator
	qs     distance.QueryState
	metric distance.Metric
	radius float32

	frontier []candidate
	visited  *searchbuffer.VisitedSet
	done     bool
}

func inRadius(dist, radius float32, metric distance.Metric) bool {
	return metric.Better(dist, radius) || dist == radius
}

// Next collects up to batchSize further in-radius results, allocating the
// returned slice via alloc (so a caller can reuse a buffer across calls).
// The second return value is true once the iterator is exhausted: every
// reachable in-radius vertex has already been returned by a prior call.
func (it *RangeIterator) Next(batchSize int, alloc func(n int) []RangeResult) ([]RangeResult, bool) {
	if it.done {
		return alloc(0), true
	}
	var collected []candidate
	for len(collected) < batchSize && len(it.frontier) > 0 {
		c := it.frontier[0]
		it.frontier = it.frontier[1:]
		collected = append(collected, c)

		for _, w := range it.g.Neighbors(int(c.ID)) {
			if !it.visited.Add(w) {
				continue
			}
			d := it.op.Compute(it.qs, it.st.Get(int(w)))
			if inRadius(d, it.radius, it.metric) {
				it.frontier = append(it.frontier, candidate{ID: w, Dist: d})
			}
		}
		sortCandidates(it.frontier, it.metric)
	}

	out := alloc(len(collected))
	for i, c := range collected {
		out[i] = RangeResult{ID: c.ID, Dist: c.Dist}
	}
	if len(collected) == 0 {
		it.done = true
	}
	return out, it.done
}

// Done reports whether the iterator has been exhausted.
func (it *RangeIterator) Done() bool { return it.done }
