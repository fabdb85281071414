package searchbuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/svs-go/svs/distance"
)

func TestInsertKeepsSortedOrder(t *testing.T) {
	b := New(distance.L2, 4, 0)
	b.Insert(1, 5)
	b.Insert(2, 1)
	b.Insert(3, 3)

	assert.Equal(t, uint32(2), b.At(0).ID)
	assert.Equal(t, uint32(3), b.At(1).ID)
	assert.Equal(t, uint32(1), b.At(2).ID)
}

func TestInsertEvictsWorstWhenFull(t *testing.T) {
	b := New(distance.L2, 2, 0)
	assert.True(t, b.Insert(1, 5))
	assert.True(t, b.Insert(2, 1))

	ok := b.Insert(3, 10)
	assert.False(t, ok, "worse than current worst entry should be rejected")
	assert.Equal(t, 2, b.Size())

	ok = b.Insert(4, 0)
	assert.True(t, ok, "better than current worst entry should be accepted")
	assert.Equal(t, uint32(4), b.At(0).ID)
}

func TestNextUnexpandedRespectsWindow(t *testing.T) {
	b := New(distance.L2, 2, 2)
	b.Insert(1, 1)
	b.Insert(2, 2)
	b.Insert(3, 3)
	b.Insert(4, 4)

	var expanded []uint32
	for {
		id, _, ok := b.NextUnexpanded()
		if !ok {
			break
		}
		expanded = append(expanded, id)
	}
	assert.Equal(t, []uint32{1, 2}, expanded, "only the first window entries should ever expand")
}

func TestResultsPadsWithSentinel(t *testing.T) {
	b := New(distance.L2, 4, 0)
	b.Insert(1, 1)

	results := b.Results(3)
	assert.Len(t, results, 3)
	assert.Equal(t, uint32(1), results[0].ID)
	assert.Equal(t, ^uint32(0), results[1].ID)
	assert.Equal(t, distance.L2.Worst(), results[1].Dist)
}

func TestVisitedSetDedup(t *testing.T) {
	v := NewVisitedSet()
	assert.True(t, v.Add(5))
	assert.False(t, v.Add(5))
	assert.True(t, v.Contains(5))
	assert.Equal(t, 1, v.Len())
}
