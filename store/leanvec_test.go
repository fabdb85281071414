package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/svs-go/svs/threadpool"
)

func rawInnerBuilder(projected Store) (Store, error) { return projected, nil }

// identityProjection builds a D x L projection matrix selecting the first
// L coordinates verbatim, so tests can assert exact projected values
// without depending on PCA's eigenvector sign/ordering.
func identityProjection(t *testing.T, d, l int) *mat.Dense {
	t.Helper()
	p := mat.NewDense(d, l, nil)
	for col := 0; col < l; col++ {
		p.Set(col, col, 1)
	}
	return p
}

func TestReduceRejectsTargetDimLargerThanSource(t *testing.T) {
	src, err := NewRawStoreFromF32(Float32, 4, [][]float32{{1, 2, 3, 4}})
	require.NoError(t, err)
	_, err = Reduce(src, threadpool.Sequential(), 5, nil, nil, rawInnerBuilder)
	assert.Error(t, err)
}

func TestReduceRejectsNonPositiveTargetDim(t *testing.T) {
	src, err := NewRawStoreFromF32(Float32, 4, [][]float32{{1, 2, 3, 4}})
	require.NoError(t, err)
	_, err = Reduce(src, threadpool.Sequential(), 0, nil, nil, rawInnerBuilder)
	assert.Error(t, err)
}

func TestReduceTrainsPCAAndProjects(t *testing.T) {
	// Vectors vary only along the first two axes; a rank-2 PCA should
	// recover that subspace and the third/fourth axes should contribute
	// nothing to reconstruction loss.
	vectors := [][]float32{
		{1, 0, 5, 5},
		{-1, 0, 5, 5},
		{0, 1, 5, 5},
		{0, -1, 5, 5},
		{2, 2, 5, 5},
		{-2, -2, 5, 5},
	}
	src, err := NewRawStoreFromF32(Float32, 4, vectors)
	require.NoError(t, err)

	reduced, err := Reduce(src, threadpool.New(2), 2, nil, nil, rawInnerBuilder)
	require.NoError(t, err)

	assert.Equal(t, 2, reduced.Dimensions())
	assert.Equal(t, 4, reduced.SourceDimensions())
	assert.Equal(t, src.Size(), reduced.Size())

	for i := 0; i < reduced.Size(); i++ {
		assert.Len(t, reduced.Get(i), 2)
	}
}

func TestReduceWithExplicitProjectionSkipsTraining(t *testing.T) {
	src, err := NewRawStoreFromF32(Float32, 2, [][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)

	proj := identityProjection(t, 2, 1)
	reduced, err := Reduce(src, threadpool.Sequential(), 1, nil, proj, rawInnerBuilder)
	require.NoError(t, err)
	assert.Equal(t, float32(1), reduced.Get(0)[0])
	assert.Equal(t, float32(3), reduced.Get(1)[0])
}

func TestProjectQueryUsesQueryProjection(t *testing.T) {
	src, err := NewRawStoreFromF32(Float32, 2, [][]float32{{1, 2}, {3, 4}})
	require.NoError(t, err)
	proj := identityProjection(t, 2, 1)
	reduced, err := Reduce(src, threadpool.Sequential(), 1, nil, proj, rawInnerBuilder)
	require.NoError(t, err)

	out := reduced.ProjectQuery([]float32{7, 9})
	assert.Equal(t, []float32{7}, out)
}
