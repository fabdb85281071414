package distance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL2SquaredBasic(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 2}
	assert.Equal(t, float32(9), L2Squared(a, b))
}

func TestInnerProductBasic(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{4, 5, 6}
	assert.Equal(t, float32(32), InnerProduct(a, b))
}

func TestMetricBetter(t *testing.T) {
	assert.True(t, L2.Better(1, 2))
	assert.False(t, L2.Better(2, 1))
	assert.True(t, IP.Better(2, 1))
	assert.True(t, Cosine.Better(0.9, 0.1))
}

func TestMetricWorstIsDominated(t *testing.T) {
	assert.True(t, L2.Better(0, L2.Worst()))
	assert.True(t, IP.Better(0, IP.Worst()))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("Cosine")
	require.NoError(t, err)
	assert.Equal(t, Cosine, m)

	_, err = ParseMetric("bogus")
	assert.Error(t, err)
}

func TestOperatorComputeL2(t *testing.T) {
	op := NewOperator(L2)
	qs := op.Fix([]float32{1, 1, 1})
	d := op.Compute(qs, []float32{1, 1, 1})
	assert.Equal(t, float32(0), d)
}

func TestOperatorComputeCosine(t *testing.T) {
	op := NewOperator(Cosine)
	qs := op.Fix([]float32{1, 0, 0})
	d := op.Compute(qs, []float32{2, 0, 0})
	assert.InDelta(t, float32(1), d, 1e-6)
}

func TestOperatorComputeCosineZeroVector(t *testing.T) {
	op := NewOperator(Cosine)
	qs := op.Fix([]float32{0, 0, 0})
	d := op.Compute(qs, []float32{1, 2, 3})
	assert.Equal(t, float32(0), d)
}
