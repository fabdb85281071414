// Package manager implements the type-erased index manager façade: a
// single interface unifying Flat, Vamana, DynamicVamana, IVF, and
// DynamicIVF behind uniform build/assemble/search/mutate/persist/thread
// operations, so a caller (or a future binding layer) never branches on
// concrete index kind. An explicit `Kind()` discriminator lets a caller
// recover which concrete index it's holding when it needs to.
package manager

import (
	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/flat"
	"github.com/svs-go/svs/ivf"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/threadpool"
	"github.com/svs-go/svs/vamana"
)

// IndexKind discriminates which concrete index a Manager wraps.
type IndexKind int

const (
	Flat IndexKind = iota
	Vamana
	DynamicVamana
	IVF
	DynamicIVF
)

func (k IndexKind) String() string {
	switch k {
	case Flat:
		return "Flat"
	case Vamana:
		return "Vamana"
	case DynamicVamana:
		return "DynamicVamana"
	case IVF:
		return "IVF"
	case DynamicIVF:
		return "DynamicIVF"
	default:
		return "Unknown"
	}
}

// SearchParameters is the union of tunable per-query knobs across every
// index kind; a Manager interprets only the fields relevant to the kind it
// wraps.
type SearchParameters struct {
	WindowSize    int // Vamana/DynamicVamana
	ExtraCapacity int // Vamana/DynamicVamana
	NProbes       int // IVF/DynamicIVF
	KReorder      int // IVF (reranking)
}

// Result is one scored hit at the manager surface, always keyed by the
// external id space (for static indexes, external id == internal slot).
type Result struct {
	ID   uint64
	Dist float32
}

// Manager is the uniform façade every index kind implements.
type Manager interface {
	// Search runs k-NN search for every query and returns one Result slice
	// per query.
	Search(queries [][]float32, k int) ([][]Result, error)
	// RangeSearch returns every point within radius of query. Only the
	// static Vamana kind implements it; every other kind returns
	// NotImplemented.
	RangeSearch(query []float32, radius float32) ([]Result, error)

	// AddPoints/DeletePoints/Consolidate/Compact are valid only for
	// DynamicVamana/DynamicIVF; other kinds return NotImplemented, and
	// DynamicIVF returns NotImplemented for Consolidate.
	AddPoints(ids []uint64, vectors [][]float32) error
	DeletePoints(ids []uint64) error
	Consolidate() error
	Compact() error

	// Save persists the index to dir; not every kind has persistence
	// wired yet (see DESIGN.md) and returns NotImplemented until it does.
	Save(dir string) error

	SetSearchParameters(p SearchParameters)
	GetSearchParameters() SearchParameters

	Size() int
	Dimensions() int
	NumThreads() int
	SetNumThreads(n int)
	Kind() IndexKind
}

func notImplemented(op string) error {
	return svserr.Newf(svserr.NotImplemented, op, "operation not supported by this index kind")
}

// rangeSearchBatchSize is how many results RangeSearch pulls from a
// vamana.RangeIterator per Next call while draining it to completion.
const rangeSearchBatchSize = 64

// ---- Vamana (static) ----

type vamanaManager struct {
	idx    *vamana.Index
	params vamana.SearchParams
}

// BuildVamana builds a static Vamana index and wraps it as a Manager.
func BuildVamana(cfg vamana.Config, src store.Store, metric distance.Metric, pool *threadpool.Pool) (Manager, error) {
	idx, err := vamana.Build(cfg, src, metric, pool)
	if err != nil {
		return nil, err
	}
	return &vamanaManager{idx: idx, params: cfg.DefaultSearchParams()}, nil
}

// AssembleVamana loads a previously saved static Vamana index.
func AssembleVamana(dir string, pool *threadpool.Pool) (Manager, error) {
	idx, err := vamana.Assemble(dir, pool)
	if err != nil {
		return nil, err
	}
	return &vamanaManager{idx: idx, params: idx.DefaultSearchParams()}, nil
}

func (m *vamanaManager) Search(queries [][]float32, k int) ([][]Result, error) {
	out := make([][]Result, len(queries))
	for i, q := range queries {
		hits, err := m.idx.Search(q, k, m.params)
		if err != nil {
			return nil, err
		}
		rs := make([]Result, len(hits))
		for j, h := range hits {
			rs[j] = Result{ID: uint64(h.ID), Dist: h.Dist}
		}
		out[i] = rs
	}
	return out, nil
}

func (m *vamanaManager) RangeSearch(query []float32, radius float32) ([]Result, error) {
	it, err := m.idx.RangeSearch(query, radius, m.params)
	if err != nil {
		return nil, err
	}
	var out []Result
	for {
		batch, done := it.Next(rangeSearchBatchSize, func(n int) []vamana.RangeResult { return make([]vamana.RangeResult, n) })
		for _, h := range batch {
			out = append(out, Result{ID: uint64(h.ID), Dist: h.Dist})
		}
		if done {
			break
		}
	}
	return out, nil
}

func (m *vamanaManager) AddPoints([]uint64, [][]float32) error { return notImplemented("manager.vamanaManager.AddPoints") }
func (m *vamanaManager) DeletePoints([]uint64) error           { return notImplemented("manager.vamanaManager.DeletePoints") }
func (m *vamanaManager) Consolidate() error                    { return notImplemented("manager.vamanaManager.Consolidate") }
func (m *vamanaManager) Compact() error                        { return notImplemented("manager.vamanaManager.Compact") }
func (m *vamanaManager) Save(dir string) error                 { return m.idx.Save(dir) }

func (m *vamanaManager) SetSearchParameters(p SearchParameters) {
	m.params = vamana.SearchParams{WindowSize: p.WindowSize, ExtraCapacity: p.ExtraCapacity}
}
func (m *vamanaManager) GetSearchParameters() SearchParameters {
	return SearchParameters{WindowSize: m.params.WindowSize, ExtraCapacity: m.params.ExtraCapacity}
}
func (m *vamanaManager) Size() int         { return m.idx.Size() }
func (m *vamanaManager) Dimensions() int   { return m.idx.Dimensions() }
func (m *vamanaManager) NumThreads() int   { return 1 }
func (m *vamanaManager) SetNumThreads(int) {}
func (m *vamanaManager) Kind() IndexKind   { return Vamana }

// ---- DynamicVamana ----

type dynamicVamanaManager struct {
	idx    *vamana.DynamicIndex
	params vamana.SearchParams
}

// BuildDynamicVamana allocates an empty dynamic Vamana index.
func BuildDynamicVamana(cfg vamana.Config, dim int, metric distance.Metric, st store.Growable, pool *threadpool.Pool) (Manager, error) {
	idx, err := vamana.NewDynamic(cfg, dim, metric, st, pool)
	if err != nil {
		return nil, err
	}
	return &dynamicVamanaManager{idx: idx, params: cfg.DefaultSearchParams()}, nil
}

func (m *dynamicVamanaManager) Search(queries [][]float32, k int) ([][]Result, error) {
	out := make([][]Result, len(queries))
	for i, q := range queries {
		hits, err := m.idx.Search(q, k, m.params)
		if err != nil {
			return nil, err
		}
		rs := make([]Result, len(hits))
		for j, h := range hits {
			rs[j] = Result{ID: h.ID, Dist: h.Dist}
		}
		out[i] = rs
	}
	return out, nil
}

func (m *dynamicVamanaManager) RangeSearch(query []float32, radius float32) ([]Result, error) {
	return nil, notImplemented("manager.dynamicVamanaManager.RangeSearch")
}
func (m *dynamicVamanaManager) AddPoints(ids []uint64, vectors [][]float32) error {
	return m.idx.AddPoints(ids, vectors)
}
func (m *dynamicVamanaManager) DeletePoints(ids []uint64) error { return m.idx.DeletePoints(ids) }
func (m *dynamicVamanaManager) Consolidate() error              { return m.idx.Consolidate() }
func (m *dynamicVamanaManager) Compact() error                  { return m.idx.Compact() }
func (m *dynamicVamanaManager) Save(string) error {
	return notImplemented("manager.dynamicVamanaManager.Save")
}
func (m *dynamicVamanaManager) SetSearchParameters(p SearchParameters) {
	m.params = vamana.SearchParams{WindowSize: p.WindowSize, ExtraCapacity: p.ExtraCapacity}
}
func (m *dynamicVamanaManager) GetSearchParameters() SearchParameters {
	return SearchParameters{WindowSize: m.params.WindowSize, ExtraCapacity: m.params.ExtraCapacity}
}
func (m *dynamicVamanaManager) Size() int           { return m.idx.Size() }
func (m *dynamicVamanaManager) Dimensions() int     { return m.idx.Dimensions() }
func (m *dynamicVamanaManager) NumThreads() int     { return m.idx.NumThreads() }
func (m *dynamicVamanaManager) SetNumThreads(n int) { m.idx.SetNumThreads(n) }
func (m *dynamicVamanaManager) Kind() IndexKind     { return DynamicVamana }

// ---- IVF (static) ----

type ivfManager struct {
	idx    *ivf.Index
	params ivf.SearchParams
}

// BuildIVF trains a clustering and wraps the static IVF index.
func BuildIVF(cfg ivf.ClusterConfig, src store.Store, metric distance.Metric, pool *threadpool.Pool) (Manager, error) {
	idx, err := ivf.Build(cfg, src, metric, pool)
	if err != nil {
		return nil, err
	}
	return &ivfManager{idx: idx, params: ivf.SearchParams{NProbes: 1}}, nil
}

// AssembleIVF loads a previously saved static IVF index.
func AssembleIVF(dir string, pool *threadpool.Pool) (Manager, error) {
	idx, err := ivf.Assemble(dir, pool)
	if err != nil {
		return nil, err
	}
	return &ivfManager{idx: idx, params: ivf.SearchParams{NProbes: 1}}, nil
}

func (m *ivfManager) Search(queries [][]float32, k int) ([][]Result, error) {
	out := make([][]Result, len(queries))
	for i, q := range queries {
		hits, err := m.idx.Search(q, k, m.params)
		if err != nil {
			return nil, err
		}
		rs := make([]Result, len(hits))
		for j, h := range hits {
			rs[j] = Result{ID: uint64(h.ID), Dist: h.Dist}
		}
		out[i] = rs
	}
	return out, nil
}

func (m *ivfManager) RangeSearch(query []float32, radius float32) ([]Result, error) {
	return nil, notImplemented("manager.ivfManager.RangeSearch")
}
func (m *ivfManager) AddPoints([]uint64, [][]float32) error { return notImplemented("manager.ivfManager.AddPoints") }
func (m *ivfManager) DeletePoints([]uint64) error           { return notImplemented("manager.ivfManager.DeletePoints") }
func (m *ivfManager) Consolidate() error                    { return notImplemented("manager.ivfManager.Consolidate") }
func (m *ivfManager) Compact() error                        { return notImplemented("manager.ivfManager.Compact") }
func (m *ivfManager) Save(dir string) error                 { return m.idx.Save(dir) }

func (m *ivfManager) SetSearchParameters(p SearchParameters) {
	m.params = ivf.SearchParams{NProbes: p.NProbes, KReorder: p.KReorder}
}
func (m *ivfManager) GetSearchParameters() SearchParameters {
	return SearchParameters{NProbes: m.params.NProbes, KReorder: m.params.KReorder}
}
func (m *ivfManager) Size() int         { return m.idx.Size() }
func (m *ivfManager) Dimensions() int   { return m.idx.Dimensions() }
func (m *ivfManager) NumThreads() int   { return 1 }
func (m *ivfManager) SetNumThreads(int) {}
func (m *ivfManager) Kind() IndexKind   { return IVF }

// ---- DynamicIVF ----

type dynamicIVFManager struct {
	idx     *ivf.DynamicIndex
	nProbes int
}

// BuildDynamicIVF trains a clustering and wraps an empty dynamic IVF index.
func BuildDynamicIVF(cfg ivf.ClusterConfig, trainingSrc store.Store, metric distance.Metric, st store.Growable) (Manager, error) {
	idx, err := ivf.NewDynamic(cfg, trainingSrc, metric, st)
	if err != nil {
		return nil, err
	}
	return &dynamicIVFManager{idx: idx, nProbes: 1}, nil
}

// AssembleDynamicIVF loads a previously saved dynamic IVF index.
func AssembleDynamicIVF(dir string) (Manager, error) {
	idx, err := ivf.AssembleDynamic(dir)
	if err != nil {
		return nil, err
	}
	return &dynamicIVFManager{idx: idx, nProbes: 1}, nil
}

func (m *dynamicIVFManager) Search(queries [][]float32, k int) ([][]Result, error) {
	out := make([][]Result, len(queries))
	for i, q := range queries {
		hits, err := m.idx.Search(q, k, m.nProbes)
		if err != nil {
			return nil, err
		}
		rs := make([]Result, len(hits))
		for j, h := range hits {
			rs[j] = Result{ID: h.ID, Dist: h.Dist}
		}
		out[i] = rs
	}
	return out, nil
}

func (m *dynamicIVFManager) RangeSearch(query []float32, radius float32) ([]Result, error) {
	return nil, notImplemented("manager.dynamicIVFManager.RangeSearch")
}
func (m *dynamicIVFManager) AddPoints(ids []uint64, vectors [][]float32) error {
	return m.idx.AddPoints(ids, vectors)
}
func (m *dynamicIVFManager) DeletePoints(ids []uint64) error { return m.idx.DeletePoints(ids) }
func (m *dynamicIVFManager) Consolidate() error {
	return notImplemented("manager.dynamicIVFManager.Consolidate")
}
func (m *dynamicIVFManager) Compact() error                         { return m.idx.Compact() }
func (m *dynamicIVFManager) Save(dir string) error                  { return m.idx.Save(dir) }
func (m *dynamicIVFManager) SetSearchParameters(p SearchParameters) { m.nProbes = p.NProbes }
func (m *dynamicIVFManager) GetSearchParameters() SearchParameters {
	return SearchParameters{NProbes: m.nProbes}
}
func (m *dynamicIVFManager) Size() int         { return m.idx.Size() }
func (m *dynamicIVFManager) Dimensions() int   { return m.idx.Dimensions() }
func (m *dynamicIVFManager) NumThreads() int   { return 1 }
func (m *dynamicIVFManager) SetNumThreads(int) {}
func (m *dynamicIVFManager) Kind() IndexKind   { return DynamicIVF }

// ---- Flat ----

type flatManager struct {
	idx *flat.Index
}

// BuildFlat wraps a store for brute-force reference search.
func BuildFlat(src store.Store, metric distance.Metric, pool *threadpool.Pool) Manager {
	return &flatManager{idx: flat.New(src, metric, pool)}
}

// AssembleFlat loads a previously saved flat index.
func AssembleFlat(dir string, pool *threadpool.Pool) (Manager, error) {
	idx, err := flat.Assemble(dir, pool)
	if err != nil {
		return nil, err
	}
	return &flatManager{idx: idx}, nil
}

func (m *flatManager) Search(queries [][]float32, k int) ([][]Result, error) {
	out := make([][]Result, len(queries))
	for i, q := range queries {
		hits, err := m.idx.Search(q, k, flat.SearchParams{})
		if err != nil {
			return nil, err
		}
		rs := make([]Result, len(hits))
		for j, h := range hits {
			rs[j] = Result{ID: uint64(h.ID), Dist: h.Dist}
		}
		out[i] = rs
	}
	return out, nil
}

func (m *flatManager) RangeSearch(query []float32, radius float32) ([]Result, error) {
	return nil, notImplemented("manager.flatManager.RangeSearch")
}
func (m *flatManager) AddPoints([]uint64, [][]float32) error { return notImplemented("manager.flatManager.AddPoints") }
func (m *flatManager) DeletePoints([]uint64) error           { return notImplemented("manager.flatManager.DeletePoints") }
func (m *flatManager) Consolidate() error                    { return notImplemented("manager.flatManager.Consolidate") }
func (m *flatManager) Compact() error                        { return notImplemented("manager.flatManager.Compact") }
func (m *flatManager) Save(dir string) error                 { return m.idx.Save(dir) }
func (m *flatManager) SetSearchParameters(SearchParameters)   {}
func (m *flatManager) GetSearchParameters() SearchParameters  { return SearchParameters{} }
func (m *flatManager) Size() int                              { return m.idx.Size() }
func (m *flatManager) Dimensions() int                        { return m.idx.Dimensions() }
func (m *flatManager) NumThreads() int                        { return 1 }
func (m *flatManager) SetNumThreads(int)                      {}
func (m *flatManager) Kind() IndexKind                        { return Flat }
