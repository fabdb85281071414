package vamana

import (
	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/graph"
	"github.com/svs-go/svs/searchbuffer"
	"github.com/svs-go/svs/store"
)

// candidate is one scored vertex produced during greedy search; used both
// to build the RobustPrune candidate pool and to return visited history.
type candidate struct {
	ID   uint32
	Dist float32
}

// greedySearchQuery is the best-first graph-search state machine: pop the
// next unexpanded frontier entry, expand its neighbors, insert newly seen
// ones, repeat until the frontier is exhausted. qs is the already-fixed
// query state (the fix-once/compute-per-candidate split). skip, when
// non-nil, excludes a vertex from ever entering the buffer — used by the
// dynamic index to hide tombstoned slots.
func greedySearchQuery(
	g *graph.Graph,
	st store.Store,
	op distance.Operator,
	qs distance.QueryState,
	entryPoints []uint32,
	window, extra int,
	skip func(id uint32) bool,
	collectVisited bool,
) (*searchbuffer.Buffer, []candidate) {
	buf := searchbuffer.New(op.Metric, window, extra)
	visited := searchbuffer.NewVisitedSet()
	var history []candidate

	for _, ep := range entryPoints {
		if !visited.Add(ep) {
			continue
		}
		if skip != nil && skip(ep) {
			continue
		}
		d := op.Compute(qs, st.Get(int(ep)))
		buf.Insert(ep, d)
		if collectVisited {
			history = append(history, candidate{ID: ep, Dist: d})
		}
	}

	for {
		id, _, ok := buf.NextUnexpanded()
		if !ok {
			break
		}
		for _, w := range g.Neighbors(int(id)) {
			if !visited.Add(w) {
				continue
			}
			if skip != nil && skip(w) {
				continue
			}
			d := op.Compute(qs, st.Get(int(w)))
			buf.Insert(w, d)
			if collectVisited {
				history = append(history, candidate{ID: w, Dist: d})
			}
		}
	}
	return buf, history
}

// robustPrune sorts candidates by distance to p ascending, repeatedly
// takes the closest remaining candidate into R and drops any remaining
// candidate q for which alpha*distance(p*, q) <= distance(p, q), stopping
// at pruneTo or when candidates are exhausted. Elimination runs as an
// O(n^2) pass against each newly-accepted point, tracked via an in-place
// removed flag rather than rebuilding the candidate slice each round.
func robustPrune(p uint32, st store.Store, metric distance.Metric, candidates []candidate, alpha float32, pruneTo int) []uint32 {
	filtered := make([]candidate, 0, len(candidates))
	seen := make(map[uint32]bool, len(candidates))
	for _, c := range candidates {
		if c.ID == p || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		filtered = append(filtered, c)
	}
	sortCandidates(filtered, metric)

	removed := make([]bool, len(filtered))
	result := make([]uint32, 0, pruneTo)

	for i := 0; i < len(filtered); i++ {
		if removed[i] {
			continue
		}
		pMin := filtered[i]
		result = append(result, pMin.ID)
		if len(result) >= pruneTo {
			break
		}
		pMinFix := distance.NewOperator(metric).Fix(st.Get(int(pMin.ID)))
		op := distance.NewOperator(metric)
		for j := i + 1; j < len(filtered); j++ {
			if removed[j] {
				continue
			}
			dPMinQ := op.Compute(pMinFix, st.Get(int(filtered[j].ID)))
			if alpha*dPMinQ <= filtered[j].Dist {
				removed[j] = true
			}
		}
	}
	return result
}

func sortCandidates(c []candidate, m distance.Metric) {
	// Candidate pools are bounded by MaxCandidatePool (hundreds);
	// insertion sort keeps this dependency-free and is fast enough at
	// that scale.
	for i := 1; i < len(c); i++ {
		j := i
		for j > 0 && m.Better(c[j].Dist, c[j-1].Dist) {
			c[j], c[j-1] = c[j-1], c[j]
			j--
		}
	}
}
