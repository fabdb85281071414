package vamana

import (
	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/threadpool"
)

// BuildLVQ builds a Vamana index over a 2-level LVQ-compressed store: the
// graph is constructed and traversed against lvq's fast primary-only view
// (no residual decode on the hot path), while the original lvq store is
// kept as the index's rerank source so Search can refine the final top-k
// against the full primary+residual reconstruction before returning. A
// 1-level lvq (no residual block) builds and searches the same way but
// skips reranking, since GetPrimary and Get would agree anyway.
func BuildLVQ(cfg Config, lvq *store.LVQStore, metric distance.Metric, pool *threadpool.Pool) (*Index, error) {
	idx, err := Build(cfg, lvq.PrimaryView(), metric, pool)
	if err != nil {
		return nil, err
	}
	if lvq.IsTwoLevel() {
		idx.rerank = lvq
	}
	return idx, nil
}

// refine recomputes exact distances for out against rerank (the refined,
// residual-inclusive reconstruction) and re-sorts in place, best-first.
func refine(rerank store.Store, metric distance.Metric, query []float32, out []candidate) {
	op := distance.NewOperator(metric)
	qs := op.Fix(query)
	for i := range out {
		if out[i].ID == ^uint32(0) {
			continue
		}
		out[i].Dist = op.Compute(qs, rerank.Get(int(out[i].ID)))
	}
	sortCandidates(out, metric)
}
