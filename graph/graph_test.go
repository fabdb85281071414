package graph

import (
	"bytes"
	"encoding/gob"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceNodeAndNeighbors(t *testing.T) {
	g := New(5, 3)
	require.NoError(t, g.ReplaceNode(0, []uint32{1, 2}))
	assert.Equal(t, []uint32{1, 2}, g.Neighbors(0))
	assert.Equal(t, 2, g.Degree(0))
}

func TestReplaceNodeRejectsOversizedEdgeList(t *testing.T) {
	g := New(5, 2)
	err := g.ReplaceNode(0, []uint32{1, 2, 3})
	assert.Error(t, err)
}

func TestAddEdgeDedupesAndReportsOverflow(t *testing.T) {
	g := New(4, 2)
	require.NoError(t, g.ReplaceNode(0, []uint32{1, 2}))

	overflow := g.AddEdge(0, 1)
	assert.False(t, overflow, "re-adding an existing edge should not overflow")
	assert.Equal(t, 2, g.Degree(0))

	overflow = g.AddEdge(0, 3)
	assert.True(t, overflow, "adding a third edge over max degree 2 should overflow")
	assert.Equal(t, 3, g.Degree(0))
}

func TestClearNode(t *testing.T) {
	g := New(3, 2)
	require.NoError(t, g.ReplaceNode(0, []uint32{1, 2}))
	g.ClearNode(0)
	assert.Empty(t, g.Neighbors(0))
}

func TestResizeGrowsPreservingExisting(t *testing.T) {
	g := New(2, 2)
	require.NoError(t, g.ReplaceNode(0, []uint32{1}))
	g.Resize(4)
	assert.Equal(t, 4, g.Size())
	assert.Equal(t, []uint32{1}, g.Neighbors(0))
	assert.Empty(t, g.Neighbors(3))
}

func TestCompactRenumbersAndDropsDanglingEdges(t *testing.T) {
	g := New(4, 4)
	require.NoError(t, g.ReplaceNode(0, []uint32{1, 2, 3}))
	require.NoError(t, g.ReplaceNode(2, []uint32{0}))

	// Keep vertices 0 and 2 only; 2 becomes the new vertex 1.
	g.Compact([]int{0, 2})

	assert.Equal(t, 2, g.Size())
	assert.Equal(t, []uint32{1}, g.Neighbors(0), "edges into dropped vertices 1,3 must be removed")
	assert.Equal(t, []uint32{0}, g.Neighbors(1))
}

func TestConcurrentReplaceNodeIsSerializedPerVertex(t *testing.T) {
	g := New(1, 64)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = g.ReplaceNode(0, []uint32{uint32(i % 10)})
		}(i)
	}
	wg.Wait()
	assert.Len(t, g.Neighbors(0), 1, "concurrent ReplaceNode calls must not corrupt the adjacency slice")
}

func TestGraphGobRoundTrip(t *testing.T) {
	g := New(3, 4)
	require.NoError(t, g.ReplaceNode(0, []uint32{1, 2}))
	require.NoError(t, g.ReplaceNode(1, []uint32{2}))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(g))

	var loaded Graph
	require.NoError(t, gob.NewDecoder(&buf).Decode(&loaded))

	assert.Equal(t, g.Size(), loaded.Size())
	assert.Equal(t, g.MaxDegree(), loaded.MaxDegree())
	assert.Equal(t, g.Neighbors(0), loaded.Neighbors(0))
	assert.Equal(t, g.Neighbors(1), loaded.Neighbors(1))

	// Loaded graph's mutation path must still be usable (stripes rebuilt).
	require.NoError(t, loaded.ReplaceNode(2, []uint32{0}))
	assert.Equal(t, []uint32{0}, loaded.Neighbors(2))
}
