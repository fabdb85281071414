// Package threadpool implements the work-dispatch plane: a fixed-size
// worker pool and the parallel-partition primitive used by every
// build/compression/search-batch pass.
//
// Forks a fixed worker count and hands each a contiguous slice of task
// indices, built on golang.org/x/sync/errgroup for join-and-propagate-
// first-error semantics.
package threadpool

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Pool owns a fixed worker count. It has no goroutines of its own at
// rest; ParallelFor spins up one goroutine per partition (at most
// NumWorkers, fewer when n is smaller) per call and joins them before
// returning, blocking the caller until every worker finishes.
type Pool struct {
	numWorkers int
}

// New returns a Pool with the given worker count. A count <= 1 behaves as
// a sequential pool.
func New(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Pool{numWorkers: numWorkers}
}

// Sequential returns a single-worker pool, used for deterministic tests.
func Sequential() *Pool { return New(1) }

// NumWorkers reports the configured worker count.
func (p *Pool) NumWorkers() int { return p.numWorkers }

// SetNumWorkers adjusts the worker count for subsequent ParallelFor calls.
func (p *Pool) SetNumWorkers(n int) {
	if n < 1 {
		n = 1
	}
	p.numWorkers = n
}

// Range is a contiguous, half-open partition [Start, End) of task indices
// assigned to one worker.
type Range struct {
	Start, End int
}

// Len reports the number of indices covered by the range.
func (r Range) Len() int { return r.End - r.Start }

// Partition splits [0, n) into up to numWorkers contiguous equal(-ish)
// shares, static partitioning (no work-stealing).
func Partition(n, numWorkers int) []Range {
	if n <= 0 {
		return nil
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > n {
		numWorkers = n
	}
	base := n / numWorkers
	rem := n % numWorkers
	ranges := make([]Range, 0, numWorkers)
	start := 0
	for w := 0; w < numWorkers; w++ {
		size := base
		if w < rem {
			size++
		}
		ranges = append(ranges, Range{Start: start, End: start + size})
		start += size
	}
	return ranges
}

// ParallelFor partitions [0, n) across the pool's workers and runs fn once
// per partition, passing the worker id and the assigned range. It blocks
// until every worker completes (or one returns an error, in which case the
// first such error is returned to the caller after every worker has been
// joined — ctx is canceled for the others, matching errgroup's contract).
func (p *Pool) ParallelFor(ctx context.Context, n int, fn func(ctx context.Context, workerID int, r Range) error) error {
	ranges := Partition(n, p.numWorkers)
	if len(ranges) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	for id, r := range ranges {
		id, r := id, r
		g.Go(func() error {
			return fn(gctx, id, r)
		})
	}
	return g.Wait()
}

// For is a convenience wrapper over ParallelFor for closures that only
// need the range, not the worker id or a cancelable context.
func (p *Pool) For(n int, fn func(r Range)) {
	_ = p.ParallelFor(context.Background(), n, func(_ context.Context, _ int, r Range) error {
		fn(r)
		return nil
	})
}
