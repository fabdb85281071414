package vamana

import (
	"context"
	"math/rand"
	"sync"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/graph"
	"github.com/svs-go/svs/searchbuffer"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

// Index is the static Vamana index: a proximity graph over a read-only
// vector store, built by RobustPrune + iterative refinement and searched
// by best-first greedy search.
type Index struct {
	cfg        Config
	metric     distance.Metric
	st         store.Store
	g          *graph.Graph
	entryPoint uint32
	pool       *threadpool.Pool
	// rerank, when non-nil, is consulted by Search to recompute exact
	// distances for the final top-k before returning — the refinement
	// step over a 2-level compressed build (see BuildLVQ).
	rerank store.Store
}

// Build constructs a Vamana index over src: a random initial graph, a
// medoid entry point, one or two RobustPrune refinement passes (alpha=1.0
// then alpha=cfg.Alpha when cfg.TwoPass), followed by a final medoid
// recomputation.
func Build(cfg Config, src store.Store, metric distance.Metric, pool *threadpool.Pool) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := src.Size()
	if n == 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "vamana.Build", "empty source store")
	}
	if pool == nil {
		pool = threadpool.Sequential()
	}

	log := svslog.Component("vamana.build")
	log.Info().Int("n", n).Int("dim", src.Dimensions()).Str("metric", metric.String()).Msg("building Vamana index")

	g := graph.New(n, cfg.GraphMaxDegree)
	initRandomGraph(g, n, cfg.GraphMaxDegree)

	idx := &Index{cfg: cfg, metric: metric, st: src, g: g, pool: pool}
	idx.entryPoint = medoid(src, metric, pool)

	if cfg.TwoPass {
		runPass(idx, 1.0, pool)
	}
	runPass(idx, cfg.Alpha, pool)

	idx.entryPoint = medoid(src, metric, pool)
	log.Info().Uint32("entry_point", idx.entryPoint).Msg("Vamana build complete")
	return idx, nil
}

// initRandomGraph seeds every vertex with up to maxDegree distinct random
// neighbors.
func initRandomGraph(g *graph.Graph, n, maxDegree int) {
	r := rand.New(rand.NewSource(1))
	deg := maxDegree
	if deg > n-1 {
		deg = n - 1
	}
	for v := 0; v < n; v++ {
		if deg <= 0 {
			continue
		}
		seen := make(map[uint32]bool, deg)
		edges := make([]uint32, 0, deg)
		for len(edges) < deg {
			cand := uint32(r.Intn(n))
			if int(cand) == v || seen[cand] {
				continue
			}
			seen[cand] = true
			edges = append(edges, cand)
		}
		_ = g.ReplaceNode(v, edges)
	}
}

// medoid approximates the corpus medoid as the point closest to the mean
// vector, computed in parallel across pool (mean vector, then argmin
// distance to it) rather than an O(n^2) all-pairs sum.
func medoid(st store.Store, metric distance.Metric, pool *threadpool.Pool) uint32 {
	n, dim := st.Size(), st.Dimensions()
	mean := make([]float64, dim)
	for i := 0; i < n; i++ {
		v := st.Get(i)
		for j := 0; j < dim; j++ {
			mean[j] += float64(v[j])
		}
	}
	meanF32 := make([]float32, dim)
	for j := range mean {
		meanF32[j] = float32(mean[j] / float64(n))
	}

	op := distance.NewOperator(metric)
	qs := op.Fix(meanF32)

	type best struct {
		id   uint32
		dist float32
	}

	var mu sync.Mutex
	global := best{id: 0, dist: metric.Worst()}

	_ = pool.ParallelFor(context.Background(), n, func(_ context.Context, _ int, r threadpool.Range) error {
		local := best{id: uint32(r.Start), dist: metric.Worst()}
		for i := r.Start; i < r.End; i++ {
			d := op.Compute(qs, st.Get(i))
			if metric.Better(d, local.dist) {
				local = best{id: uint32(i), dist: d}
			}
		}
		mu.Lock()
		if metric.Better(local.dist, global.dist) {
			global = local
		}
		mu.Unlock()
		return nil
	})
	return global.id
}

// runPass performs one RobustPrune refinement pass over every vertex in
// randomized order, parallelized over disjoint partitions of the
// permutation; per-vertex adjacency mutation remains serialized by the
// graph's own striped locks.
func runPass(idx *Index, alpha float32, pool *threadpool.Pool) {
	n := idx.st.Size()
	order := rand.New(rand.NewSource(2)).Perm(n)

	_ = pool.ParallelFor(context.Background(), n, func(_ context.Context, _ int, r threadpool.Range) error {
		for k := r.Start; k < r.End; k++ {
			refineVertex(idx, uint32(order[k]), alpha)
		}
		return nil
	})
}

// refineVertex re-runs greedy search from the entry point, RobustPrunes the
// resulting candidate pool into vertex p's new adjacency list, and adds
// back-edges from every accepted neighbor to p, re-pruning any neighbor
// that overflows its degree bound.
func refineVertex(idx *Index, p uint32, alpha float32) {
	op := distance.NewOperator(idx.metric)
	qs := op.Fix(idx.st.Get(int(p)))

	buf, history := greedySearchQuery(
		idx.g, idx.st, op, qs,
		[]uint32{idx.entryPoint},
		idx.cfg.ConstructionWindowSize, 0,
		nil, idx.cfg.UseFullSearchHistory,
	)

	var pool []candidate
	if idx.cfg.UseFullSearchHistory {
		pool = history
	} else {
		pool = make([]candidate, 0, buf.Size())
		for i := 0; i < buf.Size(); i++ {
			e := buf.At(i)
			pool = append(pool, candidate{ID: e.ID, Dist: e.Dist})
		}
	}
	for _, w := range idx.g.Neighbors(int(p)) {
		pool = append(pool, candidate{ID: w, Dist: op.Compute(qs, idx.st.Get(int(w)))})
	}
	if len(pool) > idx.cfg.MaxCandidatePool {
		sortCandidates(pool, idx.metric)
		pool = pool[:idx.cfg.MaxCandidatePool]
	}

	newEdges := robustPrune(p, idx.st, idx.metric, pool, alpha, idx.cfg.PruneTo)
	_ = idx.g.ReplaceNode(int(p), newEdges)

	for _, w := range newEdges {
		if idx.g.AddEdge(int(w), p) {
			reprune(idx, w, alpha)
		}
	}
}

// reprune handles the back-edge overflow case: vertex w now has more than
// MaxDegree neighbors, so it is RobustPruned back down against its own
// current adjacency.
func reprune(idx *Index, w uint32, alpha float32) {
	neighbors := idx.g.Neighbors(int(w))
	op := distance.NewOperator(idx.metric)
	qs := op.Fix(idx.st.Get(int(w)))
	pool := make([]candidate, 0, len(neighbors))
	for _, x := range neighbors {
		pool = append(pool, candidate{ID: x, Dist: op.Compute(qs, idx.st.Get(int(x)))})
	}
	pruned := robustPrune(w, idx.st, idx.metric, pool, alpha, idx.cfg.GraphMaxDegree)
	_ = idx.g.ReplaceNode(int(w), pruned)
}

// Search runs k-NN greedy search from the index's entry point and returns
// up to k results ordered best-first. k must be positive and no larger
// than params.WindowSize+params.ExtraCapacity — the buffer can never hold
// more candidates than its own capacity, so a larger k can never be
// satisfied and is rejected rather than silently widened.
func (idx *Index) Search(query []float32, k int, params SearchParams) ([]candidate, error) {
	if k <= 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "vamana.Index.Search", "k must be positive, got %d", k)
	}
	capacity := params.WindowSize + params.ExtraCapacity
	if k > capacity {
		return nil, svserr.Newf(svserr.InvalidArgument, "vamana.Index.Search", "k (%d) exceeds window_size+extra_capacity (%d)", k, capacity)
	}
	op := distance.NewOperator(idx.metric)
	qs := op.Fix(query)
	buf, _ := greedySearchQuery(idx.g, idx.st, op, qs, []uint32{idx.entryPoint}, params.WindowSize, params.ExtraCapacity, nil, false)
	out := make([]candidate, 0, k)
	for _, e := range buf.Results(k) {
		out = append(out, candidate{ID: e.ID, Dist: e.Dist})
	}
	if idx.rerank != nil {
		refine(idx.rerank, op.Metric, query, out)
	}
	return out, nil
}

// RangeSearch seeds a RangeIterator for query: every in-radius vertex
// discovered by an initial greedy pass becomes the iterator's starting
// frontier, expanded batch by batch as the caller calls Next.
func (idx *Index) RangeSearch(query []float32, radius float32, params SearchParams) (*RangeIterator, error) {
	if radius <= 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "vamana.Index.RangeSearch", "radius must be positive, got %g", radius)
	}
	op := distance.NewOperator(idx.metric)
	qs := op.Fix(query)
	window := params.WindowSize
	if window < idx.cfg.DefaultSearchWindowSize {
		window = idx.cfg.DefaultSearchWindowSize
	}
	_, history := greedySearchQuery(idx.g, idx.st, op, qs, []uint32{idx.entryPoint}, window, params.ExtraCapacity, nil, true)

	it := &RangeIterator{
		g: idx.g, st: idx.st, op: op, qs: qs, metric: idx.metric, radius: radius,
		visited: searchbuffer.NewVisitedSet(),
	}
	for _, c := range history {
		it.visited.Add(c.ID)
		if inRadius(c.Dist, radius, idx.metric) {
			it.frontier = append(it.frontier, c)
		}
	}
	sortCandidates(it.frontier, idx.metric)
	return it, nil
}

// Size reports the number of indexed vectors.
func (idx *Index) Size() int { return idx.st.Size() }

// Dimensions reports the vector dimensionality.
func (idx *Index) Dimensions() int { return idx.st.Dimensions() }

// EntryPoint reports the current graph entry point, mostly useful for tests.
func (idx *Index) EntryPoint() uint32 { return idx.entryPoint }

// DefaultSearchParams derives search parameters from the index's own build
// config, for callers (e.g. the manager façade) that don't track the
// config used at Build/Assemble time themselves.
func (idx *Index) DefaultSearchParams() SearchParams { return idx.cfg.DefaultSearchParams() }
