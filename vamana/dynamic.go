package vamana

import (
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/graph"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

// Result is one scored hit from a DynamicIndex query, keyed by external id
// (as opposed to the internal-slot-keyed candidate the static Index and the
// construction/insertion algorithms operate on).
type Result struct {
	ID   uint64
	Dist float32
}

// DynamicIndex is the mutable Vamana variant: external IDs map onto an
// internal, densely-packed slot space; deletions are soft (tombstoned,
// hidden from search) until Consolidate repairs the graph and Compact
// reclaims the slots. The external/internal id indirection follows the
// same shape as a point-ID-indirected shard index (external UUID-style
// keys over an internal dense slot space).
type DynamicIndex struct {
	mu sync.RWMutex

	cfg    Config
	metric distance.Metric
	dim    int
	st     store.Growable
	g      *graph.Graph
	pool   *threadpool.Pool

	entryPoint uint32
	extToInt   map[uint64]uint32
	intToExt   []uint64
	tombstones *roaring.Bitmap
}

// NewDynamic allocates an empty dynamic index ready to accept AddPoints.
func NewDynamic(cfg Config, dim int, metric distance.Metric, st store.Growable, pool *threadpool.Pool) (*DynamicIndex, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		pool = threadpool.Sequential()
	}
	return &DynamicIndex{
		cfg: cfg, metric: metric, dim: dim, st: st, pool: pool,
		g:          graph.New(0, cfg.GraphMaxDegree),
		extToInt:   make(map[uint64]uint32),
		tombstones: roaring.New(),
	}, nil
}

// Size reports the number of live (non-tombstoned) points.
func (d *DynamicIndex) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.extToInt)
}

// Dimensions reports the vector dimensionality.
func (d *DynamicIndex) Dimensions() int { return d.dim }

// AddPoints inserts new points under external ids, growing the graph and
// store and running the same RobustPrune insertion step Build uses for
// every new vertex — insertion mirrors construction for one point at a
// time.
func (d *DynamicIndex) AddPoints(ids []uint64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return svserr.Newf(svserr.InvalidArgument, "vamana.DynamicIndex.AddPoints", "ids/vectors length mismatch")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	log := svslog.Component("vamana.dynamic")
	for i, id := range ids {
		if _, exists := d.extToInt[id]; exists {
			return svserr.Newf(svserr.InvalidArgument, "vamana.DynamicIndex.AddPoints", "id %d already present", id)
		}
		if len(vectors[i]) != d.dim {
			return svserr.Newf(svserr.InvalidArgument, "vamana.DynamicIndex.AddPoints", "vector %d has dimension %d, want %d", i, len(vectors[i]), d.dim)
		}
	}

	for i, id := range ids {
		slot := d.g.Size()
		d.g.Resize(slot + 1)
		if err := d.st.Resize(slot + 1); err != nil {
			return err
		}
		if err := d.st.Set(slot, vectors[i]); err != nil {
			return err
		}
		d.extToInt[id] = uint32(slot)
		d.intToExt = append(d.intToExt, id)

		if slot == 0 {
			d.entryPoint = uint32(slot)
			continue
		}
		d.insertVertex(uint32(slot))
	}
	log.Info().Int("added", len(ids)).Int("size", d.g.Size()).Msg("points added")
	return nil
}

// insertVertex runs greedy search from the current entry point, skipping
// tombstoned vertices, RobustPrunes the search buffer's entries into v's adjacency,
// and adds back-edges exactly as the static build's refineVertex does.
func (d *DynamicIndex) insertVertex(v uint32) {
	op := distance.NewOperator(d.metric)
	qs := op.Fix(d.st.Get(int(v)))
	skip := d.isTombstoned

	buf, _ := greedySearchQuery(d.g, d.st, op, qs, []uint32{d.entryPoint}, d.cfg.ConstructionWindowSize, 0, skip, false)

	pool := make([]candidate, 0, buf.Size())
	for i := 0; i < buf.Size(); i++ {
		e := buf.At(i)
		pool = append(pool, candidate{ID: e.ID, Dist: e.Dist})
	}

	newEdges := robustPrune(v, d.st, d.metric, pool, d.cfg.Alpha, d.cfg.PruneTo)
	_ = d.g.ReplaceNode(int(v), newEdges)
	for _, w := range newEdges {
		if d.g.AddEdge(int(w), v) {
			d.repruneVertex(w)
		}
	}
}

func (d *DynamicIndex) repruneVertex(w uint32) {
	neighbors := d.g.Neighbors(int(w))
	op := distance.NewOperator(d.metric)
	qs := op.Fix(d.st.Get(int(w)))
	pool := make([]candidate, 0, len(neighbors))
	for _, x := range neighbors {
		pool = append(pool, candidate{ID: x, Dist: op.Compute(qs, d.st.Get(int(x)))})
	}
	pruned := robustPrune(w, d.st, d.metric, pool, d.cfg.Alpha, d.cfg.GraphMaxDegree)
	_ = d.g.ReplaceNode(int(w), pruned)
}

func (d *DynamicIndex) isTombstoned(id uint32) bool { return d.tombstones.Contains(id) }

// DeletePoints soft-deletes the given external ids: they are hidden from
// subsequent search immediately but their graph edges and store slots are
// left untouched until Consolidate/Compact run. Unknown ids are a no-op.
// Auto-triggers Consolidate once the tombstoned fraction crosses
// cfg.AutoConsolidateFraction.
func (d *DynamicIndex) DeletePoints(ids []uint64) error {
	d.mu.Lock()
	for _, id := range ids {
		slot, ok := d.extToInt[id]
		if !ok {
			continue
		}
		d.tombstones.Add(slot)
		delete(d.extToInt, id)
	}
	if d.tombstones.Contains(d.entryPoint) && len(d.extToInt) > 0 {
		d.entryPoint = d.pickLiveEntryPoint()
	}
	total := d.g.Size()
	frac := float32(0)
	if total > 0 {
		frac = float32(d.tombstones.GetCardinality()) / float32(total)
	}
	shouldConsolidate := d.cfg.AutoConsolidateFraction > 0 && frac >= d.cfg.AutoConsolidateFraction
	d.mu.Unlock()

	if shouldConsolidate {
		return d.Consolidate()
	}
	return nil
}

// Consolidate repairs the graph after soft deletes: every live vertex that
// points at a tombstoned neighbor gets that edge replaced by the
// tombstoned neighbor's own (recursively resolved, non-tombstoned)
// neighbors, RobustPruned back down to degree. Tombstoned vertices are then
// cleared of their own edges. Slots are not reclaimed; call Compact for
// that.
func (d *DynamicIndex) Consolidate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.tombstones.IsEmpty() {
		return nil
	}
	n := d.g.Size()
	op := distance.NewOperator(d.metric)

	for v := 0; v < n; v++ {
		if d.tombstones.Contains(uint32(v)) {
			continue
		}
		neighbors := d.g.Neighbors(v)
		dirty := false
		for _, w := range neighbors {
			if d.tombstones.Contains(w) {
				dirty = true
				break
			}
		}
		if !dirty {
			continue
		}

		qs := op.Fix(d.st.Get(v))
		seen := make(map[uint32]bool, len(neighbors))
		pool := make([]candidate, 0, len(neighbors))
		addCandidate := func(w uint32) {
			if w == uint32(v) || seen[w] {
				return
			}
			seen[w] = true
			pool = append(pool, candidate{ID: w, Dist: op.Compute(qs, d.st.Get(int(w)))})
		}
		var resolve func(w uint32, depth int)
		resolve = func(w uint32, depth int) {
			if depth > 2 {
				return
			}
			for _, x := range d.g.Neighbors(int(w)) {
				if d.tombstones.Contains(x) {
					resolve(x, depth+1)
					continue
				}
				addCandidate(x)
			}
		}
		for _, w := range neighbors {
			if d.tombstones.Contains(w) {
				resolve(w, 1)
			} else {
				addCandidate(w)
			}
		}

		newEdges := robustPrune(uint32(v), d.st, d.metric, pool, d.cfg.Alpha, d.cfg.PruneTo)
		_ = d.g.ReplaceNode(v, newEdges)
	}

	it := d.tombstones.Iterator()
	for it.HasNext() {
		d.g.ClearNode(int(it.Next()))
	}
	if d.tombstones.Contains(d.entryPoint) && len(d.extToInt) > 0 {
		d.entryPoint = d.pickLiveEntryPoint()
	}
	return nil
}

func (d *DynamicIndex) pickLiveEntryPoint() uint32 {
	for _, slot := range d.extToInt {
		return slot
	}
	return 0
}

// Compact permanently removes tombstoned slots, renumbering the store and
// graph and recomputing the entry point over the surviving set. Callers
// must ensure no concurrent search is in flight.
func (d *DynamicIndex) Compact() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.g.Size()
	newToOld := make([]int, 0, n-int(d.tombstones.GetCardinality()))
	for v := 0; v < n; v++ {
		if !d.tombstones.Contains(uint32(v)) {
			newToOld = append(newToOld, v)
		}
	}
	if err := d.st.Compact(newToOld); err != nil {
		return err
	}
	d.g.Compact(newToOld)

	newIntToExt := make([]uint64, len(newToOld))
	newExtToInt := make(map[uint64]uint32, len(newToOld))
	for k, old := range newToOld {
		ext := d.intToExt[old]
		newIntToExt[k] = ext
		newExtToInt[ext] = uint32(k)
	}
	d.intToExt = newIntToExt
	d.extToInt = newExtToInt
	d.tombstones = roaring.New()

	if len(newToOld) > 0 {
		d.entryPoint = medoid(d.st, d.metric, d.pool)
	}
	return nil
}

// Search runs k-NN search over live points only, skipping tombstoned slots,
// and resolves hits back to their external ids. k must be positive and no
// larger than params.WindowSize+params.ExtraCapacity.
func (d *DynamicIndex) Search(query []float32, k int, params SearchParams) ([]Result, error) {
	if k <= 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "vamana.DynamicIndex.Search", "k must be positive, got %d", k)
	}
	capacity := params.WindowSize + params.ExtraCapacity
	if k > capacity {
		return nil, svserr.Newf(svserr.InvalidArgument, "vamana.DynamicIndex.Search", "k (%d) exceeds window_size+extra_capacity (%d)", k, capacity)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if len(d.extToInt) == 0 {
		return nil, nil
	}
	op := distance.NewOperator(d.metric)
	qs := op.Fix(query)
	buf, _ := greedySearchQuery(d.g, d.st, op, qs, []uint32{d.entryPoint}, params.WindowSize, params.ExtraCapacity, d.isTombstoned, false)
	out := make([]Result, 0, k)
	for _, e := range buf.Results(k) {
		if e.ID == ^uint32(0) {
			out = append(out, Result{ID: ^uint64(0), Dist: e.Dist})
			continue
		}
		out = append(out, Result{ID: d.intToExt[e.ID], Dist: e.Dist})
	}
	return out, nil
}

// ExternalID resolves an internal slot to its external id, mostly useful
// for tests and callers inspecting raw Search results.
func (d *DynamicIndex) ExternalID(slot uint32) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.intToExt[slot]
}

// NumThreads reports the pool's worker count, satisfying the manager
// façade's thread-count accessor.
func (d *DynamicIndex) NumThreads() int { return d.pool.NumWorkers() }

// SetNumThreads adjusts the pool's worker count.
func (d *DynamicIndex) SetNumThreads(n int) { d.pool.SetNumWorkers(n) }
