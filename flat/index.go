// Package flat implements the brute-force reference index: an exhaustive
// scan of the entire store under the chosen metric, used to produce
// groundtruth and as a correctness fallback for the graph/IVF indexes.
package flat

import (
	"context"
	"sort"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

// Index wraps a store for exhaustive k-NN scans.
type Index struct {
	st     store.Store
	metric distance.Metric
	pool   *threadpool.Pool
}

// Predicate filters candidate ids during a scan; a nil predicate admits
// every id.
type Predicate func(id uint32) bool

// SearchParams tunes one query.
type SearchParams struct {
	// DataBatchSize chunks the store scan for cache-friendlier passes;
	// 0 lets the pool partition the full range in one shot.
	DataBatchSize int
	Filter        Predicate
}

// Result is one scored hit.
type Result struct {
	ID   uint32
	Dist float32
}

// New wraps src for brute-force search under metric. pool may be nil, in
// which case queries run on a single-worker sequential pool.
func New(src store.Store, metric distance.Metric, pool *threadpool.Pool) *Index {
	if pool == nil {
		pool = threadpool.Sequential()
	}
	return &Index{st: src, metric: metric, pool: pool}
}

// Search scans every vector in the store, keeping the top-k under metric.
// A non-nil params.Filter skips ids for which it returns false.
func (idx *Index) Search(query []float32, k int, params SearchParams) ([]Result, error) {
	if k <= 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "flat.Index.Search", "k must be positive")
	}
	n := idx.st.Size()
	if n == 0 {
		return nil, nil
	}

	op := distance.NewOperator(idx.metric)
	qs := op.Fix(query)

	numWorkers := idx.pool.NumWorkers()
	partial := make([][]Result, numWorkers)

	batch := params.DataBatchSize
	if batch <= 0 {
		batch = n
	}

	_ = idx.pool.ParallelFor(context.Background(), n, func(_ context.Context, workerID int, r threadpool.Range) error {
		local := make([]Result, 0, k)
		for chunkStart := r.Start; chunkStart < r.End; chunkStart += batch {
			chunkEnd := chunkStart + batch
			if chunkEnd > r.End {
				chunkEnd = r.End
			}
			for i := chunkStart; i < chunkEnd; i++ {
				id := uint32(i)
				if params.Filter != nil && !params.Filter(id) {
					continue
				}
				d := op.Compute(qs, idx.st.Get(i))
				local = insertTopK(local, Result{ID: id, Dist: d}, k, idx.metric)
			}
		}
		partial[workerID] = local
		return nil
	})

	var merged []Result
	for _, p := range partial {
		merged = append(merged, p...)
	}
	sort.Slice(merged, func(a, b int) bool { return idx.metric.Better(merged[a].Dist, merged[b].Dist) })
	if k > len(merged) {
		k = len(merged)
	}
	return merged[:k], nil
}

// BatchSearch runs Search once per query, stepping through the queries in
// groups of queryBatchSize (one debug log line per group); every query
// still scans the store on its own. A queryBatchSize of 0 processes all
// queries in one group.
func (idx *Index) BatchSearch(queries [][]float32, k int, params SearchParams, queryBatchSize int) ([][]Result, error) {
	if queryBatchSize <= 0 {
		queryBatchSize = len(queries)
	}
	out := make([][]Result, len(queries))
	log := svslog.Component("flat.search")
	for start := 0; start < len(queries); start += queryBatchSize {
		end := start + queryBatchSize
		if end > len(queries) {
			end = len(queries)
		}
		for i := start; i < end; i++ {
			res, err := idx.Search(queries[i], k, params)
			if err != nil {
				return nil, err
			}
			out[i] = res
		}
		log.Debug().Int("batch_start", start).Int("batch_end", end).Msg("flat batch scanned")
	}
	return out, nil
}

// insertTopK keeps at most k entries, sorted best-first under metric.
func insertTopK(acc []Result, r Result, k int, metric distance.Metric) []Result {
	i := sort.Search(len(acc), func(i int) bool { return metric.Better(r.Dist, acc[i].Dist) || r.Dist == acc[i].Dist })
	if i >= k {
		return acc
	}
	acc = append(acc, Result{})
	copy(acc[i+1:], acc[i:])
	acc[i] = r
	if len(acc) > k {
		acc = acc[:k]
	}
	return acc
}

// Size reports the number of indexed vectors.
func (idx *Index) Size() int { return idx.st.Size() }

// Dimensions reports the vector dimensionality.
func (idx *Index) Dimensions() int { return idx.st.Dimensions() }
