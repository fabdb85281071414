// Package graph implements the proximity-graph container: bounded
// out-degree adjacency lists over a compact vertex-index space, with
// per-vertex mutation serialized during concurrent build.
//
// The adjacency representation is a plain [][]uint32, the same shape as a
// from-scratch Vamana/DiskANN graph's edge list, serialized through a
// striped-lock array rather than one mutex per vertex (cheaper at scale,
// same exclusion guarantee).
package graph

import (
	"bytes"
	"encoding/gob"
	"sync"

	"github.com/pkg/errors"

	"github.com/svs-go/svs/svserr"
)

// Graph is a mutable, bounded out-degree adjacency-list container over
// [0, capacity).
type Graph struct {
	maxDegree int
	adj       [][]uint32

	stripes []sync.Mutex
}

const defaultStripes = 256

// New allocates a graph over n vertices with the given maximum out-degree.
func New(n, maxDegree int) *Graph {
	g := &Graph{maxDegree: maxDegree, adj: make([][]uint32, n)}
	g.stripes = make([]sync.Mutex, stripeCount(n))
	return g
}

func stripeCount(n int) int {
	if n < defaultStripes {
		if n < 1 {
			return 1
		}
		return n
	}
	return defaultStripes
}

func (g *Graph) lockFor(v int) *sync.Mutex {
	return &g.stripes[uint32(v)%uint32(len(g.stripes))]
}

// Size reports the number of vertices.
func (g *Graph) Size() int { return len(g.adj) }

// MaxDegree reports the configured maximum out-degree.
func (g *Graph) MaxDegree() int { return g.maxDegree }

// Neighbors returns a copy of v's current adjacency list, taken under v's
// stripe lock; a later ReplaceNode does not change the returned slice.
func (g *Graph) Neighbors(v int) []uint32 {
	g.lockFor(v).Lock()
	defer g.lockFor(v).Unlock()
	out := make([]uint32, len(g.adj[v]))
	copy(out, g.adj[v])
	return out
}

// Degree reports the current out-degree of v.
func (g *Graph) Degree(v int) int {
	g.lockFor(v).Lock()
	defer g.lockFor(v).Unlock()
	return len(g.adj[v])
}

// ReplaceNode atomically replaces v's adjacency list with edges. Pruning
// to MaxDegree is the caller's responsibility — ReplaceNode rejects an
// oversized list outright to surface build bugs immediately.
func (g *Graph) ReplaceNode(v int, edges []uint32) error {
	if len(edges) > g.maxDegree {
		return svserr.Newf(svserr.InvalidArgument, "graph.ReplaceNode", "edge list of length %d exceeds max degree %d", len(edges), g.maxDegree)
	}
	cp := make([]uint32, len(edges))
	copy(cp, edges)
	mu := g.lockFor(v)
	mu.Lock()
	g.adj[v] = cp
	mu.Unlock()
	return nil
}

// ClearNode empties v's adjacency list.
func (g *Graph) ClearNode(v int) {
	mu := g.lockFor(v)
	mu.Lock()
	g.adj[v] = nil
	mu.Unlock()
}

// AddEdge appends w to v's adjacency list if not already present, even
// when that takes the list past MaxDegree; it reports whether the degree
// bound is now exceeded (true) so the caller can trigger a back-edge
// repruning pass.
func (g *Graph) AddEdge(v int, w uint32) (overflow bool) {
	mu := g.lockFor(v)
	mu.Lock()
	defer mu.Unlock()
	for _, x := range g.adj[v] {
		if x == w {
			return len(g.adj[v]) > g.maxDegree
		}
	}
	g.adj[v] = append(g.adj[v], w)
	return len(g.adj[v]) > g.maxDegree
}

// Resize grows or shrinks the vertex space, preserving existing adjacency
// for retained indices. New vertices start with empty adjacency.
func (g *Graph) Resize(n int) {
	if n <= len(g.adj) {
		g.adj = g.adj[:n]
		return
	}
	grown := make([][]uint32, n)
	copy(grown, g.adj)
	g.adj = grown
}

// Compact renumbers the graph according to newToOld (vertex k after
// compaction is the pre-compact vertex newToOld[k]) and drops edges into
// vertices not present in newToOld.
func (g *Graph) Compact(newToOld []int) {
	oldToNew := make(map[int]uint32, len(newToOld))
	for k, old := range newToOld {
		oldToNew[old] = uint32(k)
	}
	out := make([][]uint32, len(newToOld))
	for k, old := range newToOld {
		oldEdges := g.adj[old]
		newEdges := make([]uint32, 0, len(oldEdges))
		for _, w := range oldEdges {
			if nw, ok := oldToNew[int(w)]; ok {
				newEdges = append(newEdges, nw)
			}
		}
		out[k] = newEdges
	}
	g.adj = out
	g.stripes = make([]sync.Mutex, stripeCount(len(out)))
}

// graphWire mirrors Graph's unexported fields with exported ones so gob can
// (de)serialize it; used by the persist package's graph payload.
type graphWire struct {
	MaxDegree int
	Adj       [][]uint32
}

// GobEncode implements gob.GobEncoder.
func (g *Graph) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	w := graphWire{MaxDegree: g.maxDegree, Adj: g.adj}
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, errors.Wrap(err, "graph.Graph.GobEncode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (g *Graph) GobDecode(data []byte) error {
	var w graphWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return errors.Wrap(err, "graph.Graph.GobDecode")
	}
	g.maxDegree = w.MaxDegree
	g.adj = w.Adj
	g.stripes = make([]sync.Mutex, stripeCount(len(w.Adj)))
	return nil
}
