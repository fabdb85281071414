package vamana

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/threadpool"
)

func TestBuildLVQOneLevelSelfRecall(t *testing.T) {
	s := tinyStore(t)
	lvq, err := store.CompressLVQ(s, threadpool.Sequential(), 8, store.Sequential, nil)
	require.NoError(t, err)

	idx, err := BuildLVQ(tinyConfig(), lvq, distance.L2, threadpool.Sequential())
	require.NoError(t, err)
	assert.Nil(t, idx.rerank, "1-level store should not set a rerank source")

	for i := 0; i < s.Size(); i++ {
		results, err := idx.Search(lvq.GetPrimary(i), 1, SearchParams{WindowSize: 32})
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, uint32(i), results[0].ID, "self-recall failed for vector %d", i)
	}
}

func TestBuildLVQTwoLevelReranksFinalResults(t *testing.T) {
	s := tinyStore(t)
	lvq, err := store.CompressLVQ(s, threadpool.Sequential(), 8, store.Sequential, nil)
	require.NoError(t, err)
	require.NoError(t, lvq.AddResidual(s, threadpool.Sequential(), 8))

	idx, err := BuildLVQ(tinyConfig(), lvq, distance.L2, threadpool.Sequential())
	require.NoError(t, err)
	assert.NotNil(t, idx.rerank, "2-level store should set a rerank source")

	query := []float32{3.25, 3.25, 3.25, 3.25}
	results, err := idx.Search(query, 3, SearchParams{WindowSize: 32})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i-1].Dist, results[i].Dist, "rerank must leave results best-first")
	}
}
