package vamana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/threadpool"
)

func TestRangeSearchGrowingBatches(t *testing.T) {
	s := tinyStore(t)
	idx, err := Build(tinyConfig(), s, distance.L2, threadpool.Sequential())
	require.NoError(t, err)

	query := []float32{3.25, 3.25, 3.25, 3.25}
	it, err := idx.RangeSearch(query, 3.1, SearchParams{WindowSize: 32})
	require.NoError(t, err)

	var all []RangeResult
	for {
		batch, done := it.Next(3, func(n int) []RangeResult { return make([]RangeResult, n) })
		all = append(all, batch...)
		if done {
			assert.Empty(t, batch)
			break
		}
	}

	for _, r := range all {
		d := distance.L2Squared(query, s.Get(int(r.ID)))
		assert.LessOrEqual(t, d, float32(3.1))
	}
	assert.True(t, it.Done())
}

func TestRangeSearchRejectsNonPositiveRadius(t *testing.T) {
	s := tinyStore(t)
	idx, err := Build(tinyConfig(), s, distance.L2, threadpool.Sequential())
	require.NoError(t, err)

	_, err = idx.RangeSearch([]float32{0, 0, 0, 0}, 0, SearchParams{WindowSize: 32})
	assert.Error(t, err)

	_, err = idx.RangeSearch([]float32{0, 0, 0, 0}, -1, SearchParams{WindowSize: 32})
	assert.Error(t, err)
}

func TestSearchRejectsInvalidK(t *testing.T) {
	s := tinyStore(t)
	idx, err := Build(tinyConfig(), s, distance.L2, threadpool.Sequential())
	require.NoError(t, err)

	_, err = idx.Search([]float32{0, 0, 0, 0}, 0, SearchParams{WindowSize: 4})
	assert.Error(t, err)

	_, err = idx.Search([]float32{0, 0, 0, 0}, 100, SearchParams{WindowSize: 4, ExtraCapacity: 2})
	assert.Error(t, err)
}
