package ivf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/threadpool"
)

func TestStaticSaveAssembleRoundTripMatchesSearch(t *testing.T) {
	vectors := clusteredVectors()
	src, err := store.NewRawStoreFromF32(store.Float32, 2, vectors)
	require.NoError(t, err)

	cfg := DefaultClusterConfig(3)
	cfg.TrainingFraction = 1.0
	idx, err := Build(cfg, src, distance.L2, threadpool.New(2))
	require.NoError(t, err)

	before, err := idx.Search([]float32{100, 100}, 1, SearchParams{NProbes: 3})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, idx.Save(dir))

	loaded, err := Assemble(dir, threadpool.New(2))
	require.NoError(t, err)
	assert.Equal(t, idx.Size(), loaded.Size())
	assert.Equal(t, idx.NumCentroids(), loaded.NumCentroids())

	after, err := loaded.Search([]float32{100, 100}, 1, SearchParams{NProbes: 3})
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
	assert.Equal(t, before[0].ID, after[0].ID)
}

func TestDynamicSaveAssembleRoundTripPreservesTombstones(t *testing.T) {
	vectors := clusteredVectors()
	src, err := store.NewRawStoreFromF32(store.Float32, 2, vectors)
	require.NoError(t, err)
	cfg := DefaultClusterConfig(3)
	cfg.TrainingFraction = 1.0

	backing := store.NewRawStore(store.Float32, 2)
	dyn, err := NewDynamic(cfg, src, distance.L2, backing)
	require.NoError(t, err)

	ids := make([]uint64, len(vectors))
	for i := range ids {
		ids[i] = uint64(i)
	}
	require.NoError(t, dyn.AddPoints(ids, vectors))
	require.NoError(t, dyn.DeletePoints(ids[:5]))

	dir := t.TempDir()
	require.NoError(t, dyn.Save(dir))

	loaded, err := AssembleDynamic(dir)
	require.NoError(t, err)
	assert.Equal(t, dyn.Size(), loaded.Size())

	results, err := loaded.Search([]float32{0, 0}, 3, 3)
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.ID, uint64(5), "deleted ids must not resurface after reload")
	}
}
