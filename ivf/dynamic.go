package ivf

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/threadpool"
)

// DynamicIndex is the mutable IVF variant: incoming vectors are assigned
// to their nearest centroid at insertion time; deletes are soft
// (tombstoned) until Compact reclaims posting-list space.
type DynamicIndex struct {
	mu sync.RWMutex

	clust *clustering
	st    store.Growable

	postings   [][]uint32
	extToInt   map[uint64]uint32
	intToExt   []uint64
	tombstones *roaring.Bitmap
}

// DynamicResult is one scored hit from a DynamicIndex query, keyed by
// external id.
type DynamicResult struct {
	ID   uint64
	Dist float32
}

// NewDynamic trains a clustering on src (the same k-means Build runs, on a
// sequential pool) and wraps it into an empty dynamic index backed by st,
// ready for AddPoints.
func NewDynamic(cfg ClusterConfig, src store.Store, metric distance.Metric, st store.Growable) (*DynamicIndex, error) {
	clust, err := trainKMeans(src, metric, cfg, threadpool.Sequential())
	if err != nil {
		return nil, err
	}
	return &DynamicIndex{
		clust:      clust,
		st:         st,
		postings:   make([][]uint32, cfg.NumCentroids),
		extToInt:   make(map[uint64]uint32),
		tombstones: roaring.New(),
	}, nil
}

// AddPoints assigns each vector to its nearest centroid's posting list.
func (d *DynamicIndex) AddPoints(ids []uint64, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return svserr.Newf(svserr.InvalidArgument, "ivf.DynamicIndex.AddPoints", "ids/vectors length mismatch")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	op := distance.NewOperator(d.clust.metric)
	for i, id := range ids {
		if _, exists := d.extToInt[id]; exists {
			return svserr.Newf(svserr.InvalidArgument, "ivf.DynamicIndex.AddPoints", "id %d already present", id)
		}
		slot := d.st.Size()
		if err := d.st.Resize(slot + 1); err != nil {
			return err
		}
		if err := d.st.Set(slot, vectors[i]); err != nil {
			return err
		}
		d.extToInt[id] = uint32(slot)
		d.intToExt = append(d.intToExt, id)

		qs := op.Fix(vectors[i])
		best, bestDist := 0, d.clust.metric.Worst()
		for c, centroid := range d.clust.centroids {
			dd := op.Compute(qs, centroid)
			if d.clust.metric.Better(dd, bestDist) {
				best, bestDist = c, dd
			}
		}
		d.postings[best] = append(d.postings[best], uint32(slot))
	}
	return nil
}

// DeletePoints soft-deletes by external id; unknown ids are a no-op.
func (d *DynamicIndex) DeletePoints(ids []uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		slot, ok := d.extToInt[id]
		if !ok {
			continue
		}
		d.tombstones.Add(slot)
		delete(d.extToInt, id)
	}
	return nil
}

// Compact rewrites every posting list to drop tombstoned slots and
// renumbers the backing store.
func (d *DynamicIndex) Compact() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.st.Size()
	newToOld := make([]int, 0, n)
	oldToNew := make(map[int]uint32, n)
	for v := 0; v < n; v++ {
		if !d.tombstones.Contains(uint32(v)) {
			oldToNew[v] = uint32(len(newToOld))
			newToOld = append(newToOld, v)
		}
	}
	if err := d.st.Compact(newToOld); err != nil {
		return err
	}

	newPostings := make([][]uint32, len(d.postings))
	for c, list := range d.postings {
		out := make([]uint32, 0, len(list))
		for _, old := range list {
			if nw, ok := oldToNew[int(old)]; ok {
				out = append(out, nw)
			}
		}
		newPostings[c] = out
	}
	d.postings = newPostings

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
	return nil
}

// Size reports the number of live points.
func (d *DynamicIndex) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.extToInt)
}

// Dimensions reports the vector dimensionality.
func (d *DynamicIndex) Dimensions() int { return d.clust.dim }

// Search probes NProbes clusters and scans their posting lists, skipping
// tombstoned slots, resolving hits to external ids.
func (d *DynamicIndex) Search(query []float32, k, nProbes int) ([]DynamicResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if nProbes <= 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "ivf.DynamicIndex.Search", "n_probes must be positive")
	}

	metric := d.clust.metric
	op := distance.NewOperator(metric)
	qs := op.Fix(query)

	type scoredCentroid struct {
		id   int
		dist float32
	}
	scored := make([]scoredCentroid, len(d.clust.centroids))
	for c, centroid := range d.clust.centroids {
		scored[c] = scoredCentroid{id: c, dist: op.Compute(qs, centroid)}
	}
	sort.Slice(scored, func(a, b int) bool { return metric.Better(scored[a].dist, scored[b].dist) })

	if nProbes > len(scored) {
		nProbes = len(scored)
	}

	var out []DynamicResult
	for p := 0; p < nProbes; p++ {
		for _, slot := range d.postings[scored[p].id] {
			if d.tombstones.Contains(slot) {
				continue
			}
			dd := op.Compute(qs, d.st.Get(int(slot)))
			out = append(out, DynamicResult{ID: d.intToExt[slot], Dist: dd})
		}
	}
	sort.Slice(out, func(a, b int) bool { return metric.Better(out[a].Dist, out[b].Dist) })
	if k > len(out) {
		k = len(out)
	}
	return out[:k], nil
}
