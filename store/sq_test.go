package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/svs-go/svs/threadpool"
)

func TestCompressSQReconstructsWithinQuantizationStep(t *testing.T) {
	src, err := NewRawStoreFromF32(Float32, 3, [][]float32{
		{-10, 0, 10},
		{-5, 5, 0},
		{10, -10, 0},
	})
	require.NoError(t, err)

	sq, err := CompressSQ(src, threadpool.New(2))
	require.NoError(t, err)
	assert.Equal(t, src.Size(), sq.Size())
	assert.Equal(t, src.Dimensions(), sq.Dimensions())

	step := sq.Scale()
	for i := 0; i < src.Size(); i++ {
		want := src.Get(i)
		got := sq.Get(i)
		for j := range want {
			assert.InDelta(t, want[j], got[j], float64(step)+1e-4)
		}
	}
}

func TestCompressSQRejectsEmptyStore(t *testing.T) {
	empty := NewRawStore(Float32, 3)
	_, err := CompressSQ(empty, threadpool.Sequential())
	assert.Error(t, err)
}

func TestCompressSQCodeIsRawRow(t *testing.T) {
	src, err := NewRawStoreFromF32(Float32, 1, [][]float32{{0}, {127}})
	require.NoError(t, err)
	sq, err := CompressSQ(src, threadpool.Sequential())
	require.NoError(t, err)
	assert.Len(t, sq.Code(0), 1)
	assert.Len(t, sq.Code(1), 1)
}
