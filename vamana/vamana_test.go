package vamana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/threadpool"
)

func tinyConfig() Config {
	return Config{
		Alpha:                   1.2,
		GraphMaxDegree:          16,
		ConstructionWindowSize:  32,
		MaxCandidatePool:        750,
		PruneTo:                 16,
		DefaultSearchWindowSize: 32,
		TwoPass:                 true,
	}
}

func tinyStore(t *testing.T) store.Store {
	t.Helper()
	vectors := make([][]float32, 7)
	for i := range vectors {
		vectors[i] = []float32{float32(i), float32(i), float32(i), float32(i)}
	}
	s, err := store.NewRawStoreFromF32(store.Float32, 4, vectors)
	require.NoError(t, err)
	return s
}

func TestBuildAndSearchTinyL2(t *testing.T) {
	s := tinyStore(t)
	idx, err := Build(tinyConfig(), s, distance.L2, threadpool.Sequential())
	require.NoError(t, err)

	query := []float32{3.25, 3.25, 3.25, 3.25}
	results, err := idx.Search(query, 3, SearchParams{WindowSize: 32})
	require.NoError(t, err)
	ids := make([]uint32, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.Equal(t, []uint32{3, 4, 2}, ids)
}

func TestSearchTinyL2SecondQuery(t *testing.T) {
	s := tinyStore(t)
	idx, err := Build(tinyConfig(), s, distance.L2, threadpool.Sequential())
	require.NoError(t, err)

	query := []float32{2.25, 2.25, 2.25, 2.25}
	results, err := idx.Search(query, 5, SearchParams{WindowSize: 32})
	require.NoError(t, err)
	ids := make([]uint32, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.Equal(t, []uint32{2, 3, 1, 4, 0}, ids)
}

// TestSelfRecall checks that searching for a stored vector with k=1
// returns its own id.
func TestSelfRecall(t *testing.T) {
	s := tinyStore(t)
	idx, err := Build(tinyConfig(), s, distance.L2, threadpool.Sequential())
	require.NoError(t, err)

	for i := 0; i < s.Size(); i++ {
		results, err := idx.Search(s.Get(i), 1, SearchParams{WindowSize: 32})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint32(i), results[0].ID, "self-recall failed for vector %d", i)
	}
}

func TestGraphDegreeInvariant(t *testing.T) {
	s := tinyStore(t)
	cfg := tinyConfig()
	idx, err := Build(cfg, s, distance.L2, threadpool.Sequential())
	require.NoError(t, err)

	for v := 0; v < idx.g.Size(); v++ {
		neighbors := idx.g.Neighbors(v)
		assert.LessOrEqual(t, len(neighbors), cfg.GraphMaxDegree)
		for _, w := range neighbors {
			assert.NotEqual(t, uint32(v), w, "vertex %d lists itself as a neighbor", v)
			assert.True(t, int(w) < idx.g.Size())
		}
	}
}

func TestRobustPruneInvariant(t *testing.T) {
	s := tinyStore(t)
	var candidates []candidate
	for i := 1; i < 7; i++ {
		d := distance.L2Squared(s.Get(0), s.Get(i))
		candidates = append(candidates, candidate{ID: uint32(i), Dist: d})
	}
	result := robustPrune(0, s, distance.L2, candidates, 1.2, 16)

	assert.NotContains(t, result, uint32(0))
	seen := make(map[uint32]bool)
	for _, id := range result {
		assert.False(t, seen[id], "duplicate id %d in RobustPrune result", id)
		seen[id] = true
	}
}

func TestDynamicAddDeleteConsolidateCycle(t *testing.T) {
	const n = 60
	dim := 4
	vectors := make([][]float32, n)
	ids := make([]uint64, n)
	for i := 0; i < n; i++ {
		vectors[i] = []float32{float32(i), float32(i) * 2, float32(i) % 5, 1}
		ids[i] = uint64(i)
	}

	cfg := tinyConfig()
	cfg.AutoConsolidateFraction = 0.5
	raw := store.NewRawStore(store.Float32, dim)
	idx, err := NewDynamic(cfg, dim, distance.L2, raw, threadpool.Sequential())
	require.NoError(t, err)

	require.NoError(t, idx.AddPoints(ids, vectors))
	assert.Equal(t, n, idx.Size())

	deleted := ids[:20]
	require.NoError(t, idx.DeletePoints(deleted))
	assert.Equal(t, n-20, idx.Size())

	require.NoError(t, idx.AddPoints(deleted, vectors[:20]))
	assert.Equal(t, n, idx.Size())

	for i, v := range vectors {
		results, err := idx.Search(v, 1, SearchParams{WindowSize: 32})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint64(i), results[0].ID, "re-added vector %d should rank first", i)
	}

	require.NoError(t, idx.Consolidate())
	require.NoError(t, idx.Compact())
	assert.Equal(t, n, idx.Size())
}

func TestDynamicDeleteUnknownID(t *testing.T) {
	dim := 4
	raw := store.NewRawStore(store.Float32, dim)
	idx, err := NewDynamic(tinyConfig(), dim, distance.L2, raw, threadpool.Sequential())
	require.NoError(t, err)
	require.NoError(t, idx.AddPoints([]uint64{1}, [][]float32{{0, 0, 0, 0}}))

	assert.NoError(t, idx.DeletePoints([]uint64{999}))
	assert.Equal(t, 1, idx.Size())
}
