package ivf

import (
	"sort"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

// Index is the static IVF index: a trained clustering plus posting lists
// over every corpus vector, assigned in a single one-assignment pass (every
// internal index appears in exactly one posting list).
type Index struct {
	cfg      ClusterConfig
	clust    *clustering
	st       store.Store
	postings [][]uint32
}

// SearchParams tunes one query.
type SearchParams struct {
	NProbes   int
	KReorder  int // 0 disables reranking
	RerankSt  store.Store
}

// Result is one scored hit.
type Result struct {
	ID   uint32
	Dist float32
}

// Build trains the clustering and assigns every corpus vector to its
// nearest centroid to form posting lists.
func Build(cfg ClusterConfig, src store.Store, metric distance.Metric, pool *threadpool.Pool) (*Index, error) {
	if pool == nil {
		pool = threadpool.Sequential()
	}
	clust, err := trainKMeans(src, metric, cfg, pool)
	if err != nil {
		return nil, err
	}

	n := src.Size()
	assignment := make([]int32, n)
	op := distance.NewOperator(metric)
	pool.For(n, func(r threadpool.Range) {
		for i := r.Start; i < r.End; i++ {
			v := src.Get(i)
			best, bestDist := int32(0), metric.Worst()
			for c, centroid := range clust.centroids {
				qs := op.Fix(centroid)
				d := op.Compute(qs, v)
				if metric.Better(d, bestDist) {
					best, bestDist = int32(c), d
				}
			}
			assignment[i] = best
		}
	})

	postings := make([][]uint32, cfg.NumCentroids)
	for i, c := range assignment {
		postings[c] = append(postings[c], uint32(i))
	}

	svslog.Component("ivf.build").Info().Int("n", n).Int("centroids", cfg.NumCentroids).Msg("IVF index built")
	return &Index{cfg: cfg, clust: clust, st: src, postings: postings}, nil
}

// Search probes the top NProbes clusters and scans their posting lists,
// maintaining a global top-k buffer; optionally reranks the survivors
// against a full-precision store.
func (idx *Index) Search(query []float32, k int, params SearchParams) ([]Result, error) {
	if params.NProbes <= 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "ivf.Index.Search", "n_probes must be positive")
	}

	metric := idx.clust.metric
	op := distance.NewOperator(metric)
	qs := op.Fix(query)

	type scoredCentroid struct {
		id   int
		dist float32
	}
	scored := make([]scoredCentroid, len(idx.clust.centroids))
	for c, centroid := range idx.clust.centroids {
		scored[c] = scoredCentroid{id: c, dist: op.Compute(qs, centroid)}
	}
	sort.Slice(scored, func(a, b int) bool { return metric.Better(scored[a].dist, scored[b].dist) })

	nProbes := params.NProbes
	if nProbes > len(scored) {
		nProbes = len(scored)
	}

	var candidates []Result
	for p := 0; p < nProbes; p++ {
		for _, id := range idx.postings[scored[p].id] {
			d := op.Compute(qs, idx.st.Get(int(id)))
			candidates = append(candidates, Result{ID: id, Dist: d})
		}
	}
	sort.Slice(candidates, func(a, b int) bool { return metric.Better(candidates[a].Dist, candidates[b].Dist) })

	if params.KReorder > 0 && params.RerankSt != nil {
		rerankN := params.KReorder
		if rerankN > len(candidates) {
			rerankN = len(candidates)
		}
		for i := 0; i < rerankN; i++ {
			v := params.RerankSt.Get(int(candidates[i].ID))
			candidates[i].Dist = op.Compute(qs, v)
		}
		sort.Slice(candidates[:rerankN], func(a, b int) bool { return metric.Better(candidates[a].Dist, candidates[b].Dist) })
	}

	if k > len(candidates) {
		k = len(candidates)
	}
	return candidates[:k], nil
}

// Size reports the number of indexed vectors.
func (idx *Index) Size() int { return idx.st.Size() }

// Dimensions reports the vector dimensionality.
func (idx *Index) Dimensions() int { return idx.st.Dimensions() }

// NumCentroids reports the trained cluster count.
func (idx *Index) NumCentroids() int { return len(idx.clust.centroids) }

// PostingListSize reports the number of members assigned to cluster c,
// mostly useful for tests and diagnostics.
func (idx *Index) PostingListSize(c int) int { return len(idx.postings[c]) }
