package flat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/threadpool"
)

func TestSaveAssembleRoundTripMatchesSearch(t *testing.T) {
	src := tinyLineStore(t)
	idx := New(src, distance.L2, threadpool.New(2))

	query := []float32{3.25, 3.25, 3.25, 3.25}
	before, err := idx.Search(query, 3, SearchParams{})
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, idx.Save(dir))

	loaded, err := Assemble(dir, threadpool.New(2))
	require.NoError(t, err)
	assert.Equal(t, idx.Size(), loaded.Size())
	assert.Equal(t, idx.Dimensions(), loaded.Dimensions())

	after, err := loaded.Search(query, 3, SearchParams{})
	require.NoError(t, err)
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
	}
}

func TestAssembleRejectsMissingConfig(t *testing.T) {
	dir := t.TempDir()
	_, err := Assemble(dir, nil)
	assert.Error(t, err)
}
