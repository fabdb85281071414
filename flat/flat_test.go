package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/threadpool"
)

func tinyLineStore(t *testing.T) store.Store {
	t.Helper()
	var vectors [][]float32
	for i := 0; i < 7; i++ {
		vectors = append(vectors, []float32{float32(i), float32(i), float32(i), float32(i)})
	}
	src, err := store.NewRawStoreFromF32(store.Float32, 4, vectors)
	require.NoError(t, err)
	return src
}

func TestSearchReturnsTrueNearestNeighbors(t *testing.T) {
	src := tinyLineStore(t)
	idx := New(src, distance.L2, threadpool.New(2))

	results, err := idx.Search([]float32{3.25, 3.25, 3.25, 3.25}, 3, SearchParams{})
	require.NoError(t, err)
	require.Len(t, results, 3)

	ids := []uint32{results[0].ID, results[1].ID, results[2].ID}
	assert.Equal(t, []uint32{3, 4, 2}, ids)
}

func TestSearchResultsAreSortedBestFirst(t *testing.T) {
	src := tinyLineStore(t)
	idx := New(src, distance.L2, threadpool.Sequential())

	results, err := idx.Search([]float32{2.25, 2.25, 2.25, 2.25}, 5, SearchParams{})
	require.NoError(t, err)
	for i := 1; i < len(results); i++ {
		assert.True(t, results[i-1].Dist <= results[i].Dist)
	}
}

func TestSearchRejectsNonPositiveK(t *testing.T) {
	src := tinyLineStore(t)
	idx := New(src, distance.L2, threadpool.Sequential())
	_, err := idx.Search([]float32{0, 0, 0, 0}, 0, SearchParams{})
	assert.Error(t, err)
}

func TestSearchHonorsFilterPredicate(t *testing.T) {
	src := tinyLineStore(t)
	idx := New(src, distance.L2, threadpool.New(2))

	filter := func(id uint32) bool { return id != 3 }
	results, err := idx.Search([]float32{3.25, 3.25, 3.25, 3.25}, 1, SearchParams{Filter: filter})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEqual(t, uint32(3), results[0].ID)
	assert.Equal(t, uint32(4), results[0].ID)
}

func TestSearchIsDeterministicAcrossDataBatchSizes(t *testing.T) {
	src := tinyLineStore(t)
	idxWhole := New(src, distance.L2, threadpool.New(3))
	idxChunked := New(src, distance.L2, threadpool.New(3))

	query := []float32{2.25, 2.25, 2.25, 2.25}
	whole, err := idxWhole.Search(query, 4, SearchParams{})
	require.NoError(t, err)
	chunked, err := idxChunked.Search(query, 4, SearchParams{DataBatchSize: 2})
	require.NoError(t, err)

	require.Equal(t, len(whole), len(chunked))
	for i := range whole {
		assert.Equal(t, whole[i].ID, chunked[i].ID)
	}
}

func TestBatchSearchMatchesPerQuerySearch(t *testing.T) {
	src := tinyLineStore(t)
	idx := New(src, distance.L2, threadpool.Sequential())

	queries := [][]float32{
		{0, 0, 0, 0},
		{6, 6, 6, 6},
		{3.25, 3.25, 3.25, 3.25},
	}
	batched, err := idx.BatchSearch(queries, 2, SearchParams{}, 2)
	require.NoError(t, err)
	require.Len(t, batched, 3)

	for i, q := range queries {
		single, err := idx.Search(q, 2, SearchParams{})
		require.NoError(t, err)
		require.Equal(t, len(single), len(batched[i]))
		for j := range single {
			assert.Equal(t, single[j].ID, batched[i][j].ID)
		}
	}
}

func TestSearchOnEmptyStoreReturnsNoResults(t *testing.T) {
	src := store.NewRawStore(store.Float32, 4)
	idx := New(src, distance.L2, threadpool.Sequential())
	results, err := idx.Search([]float32{0, 0, 0, 0}, 3, SearchParams{})
	require.NoError(t, err)
	assert.Empty(t, results)
}
