// Package ivf implements the inverted-file index: k-means clustering of
// the corpus into centroids with per-cluster posting lists, and a
// probe-top-m-clusters search path, plus a dynamic variant.
//
// Uses gonum.org/v1/gonum for the centroid-mean recomputation step.
package ivf

import (
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"github.com/svs-go/svs/distance"
	"github.com/svs-go/svs/store"
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/svslog"
	"github.com/svs-go/svs/threadpool"
)

// ClusterConfig bundles the k-means build parameters.
type ClusterConfig struct {
	NumCentroids     int
	NumIterations    int
	TrainingFraction float64
	Seed             int64
	MinibatchSize    int
}

// DefaultClusterConfig picks reasonable defaults for small-to-medium
// corpora; callers with large N should raise TrainingFraction's floor via
// NumCentroids's multiplier (see sampleTrainingSet).
func DefaultClusterConfig(numCentroids int) ClusterConfig {
	return ClusterConfig{
		NumCentroids:     numCentroids,
		NumIterations:    10,
		TrainingFraction: 0.1,
		Seed:             1,
		MinibatchSize:    1024,
	}
}

func (c ClusterConfig) Validate() error {
	if c.NumCentroids <= 0 {
		return svserr.Newf(svserr.InvalidArgument, "ivf.ClusterConfig.Validate", "num_centroids must be positive")
	}
	if c.NumIterations <= 0 {
		return svserr.Newf(svserr.InvalidArgument, "ivf.ClusterConfig.Validate", "num_iterations must be positive")
	}
	return nil
}

// clustering holds the trained centroid matrix, shared by the static and
// dynamic index.
type clustering struct {
	dim       int
	metric    distance.Metric
	centroids [][]float32
}

// trainKMeans runs the k-means loop: sample a training subset,
// seed centroids by random selection, iterate assign/recompute with
// farthest-point reseeding of emptied clusters.
func trainKMeans(src store.Store, metric distance.Metric, cfg ClusterConfig, pool *threadpool.Pool) (*clustering, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n, dim := src.Size(), src.Dimensions()
	if n == 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "ivf.trainKMeans", "empty source store")
	}
	if cfg.NumCentroids > n {
		return nil, svserr.Newf(svserr.InvalidArgument, "ivf.trainKMeans", "num_centroids %d exceeds corpus size %d", cfg.NumCentroids, n)
	}

	log := svslog.Component("ivf.kmeans")
	trainIdx := sampleTrainingSet(n, cfg, rand.New(rand.NewSource(cfg.Seed)))
	log.Debug().Int("train_size", len(trainIdx)).Int("centroids", cfg.NumCentroids).Msg("k-means training sample drawn")

	r := rand.New(rand.NewSource(cfg.Seed))
	perm := r.Perm(len(trainIdx))
	centroids := make([][]float32, cfg.NumCentroids)
	for i := 0; i < cfg.NumCentroids; i++ {
		v := src.Get(trainIdx[perm[i]])
		cp := make([]float32, dim)
		copy(cp, v)
		centroids[i] = cp
	}

	assign := make([]int, len(trainIdx))
	op := distance.NewOperator(metric)

	for iter := 0; iter < cfg.NumIterations; iter++ {
		assignBatch(src, trainIdx, centroids, op, metric, assign, pool, cfg.MinibatchSize)
		sums := make([][]float64, cfg.NumCentroids)
		counts := make([]int, cfg.NumCentroids)
		for c := range sums {
			sums[c] = make([]float64, dim)
		}
		vf64 := make([]float64, dim)
		for k, idx := range trainIdx {
			c := assign[k]
			v := src.Get(idx)
			counts[c]++
			for j, x := range v {
				vf64[j] = float64(x)
			}
			floats.Add(sums[c], vf64)
		}
		for c := 0; c < cfg.NumCentroids; c++ {
			if counts[c] == 0 {
				reseedEmptyCluster(c, src, trainIdx, assign, centroids, op, metric)
				continue
			}
			floats.Scale(1/float64(counts[c]), sums[c])
			newC := make([]float32, dim)
			for j, x := range sums[c] {
				newC[j] = float32(x)
			}
			centroids[c] = newC
		}
		log.Debug().Int("iteration", iter).Msg("k-means iteration complete")
	}

	return &clustering{dim: dim, metric: metric, centroids: centroids}, nil
}

// sampleTrainingSet draws max(trainingFraction*N, C*multiplier) distinct
// indices.
func sampleTrainingSet(n int, cfg ClusterConfig, r *rand.Rand) []int {
	const multiplier = 8
	want := int(cfg.TrainingFraction * float64(n))
	if floor := cfg.NumCentroids * multiplier; want < floor {
		want = floor
	}
	if want > n {
		want = n
	}
	perm := r.Perm(n)
	return perm[:want]
}

// assignBatch assigns every training vector to its nearest centroid,
// partitioned across the pool. The minibatch argument is not used: each
// worker scans its whole range in one pass.
func assignBatch(src store.Store, trainIdx []int, centroids [][]float32, op distance.Operator, metric distance.Metric, assign []int, pool *threadpool.Pool, minibatch int) {
	n := len(trainIdx)
	pool.For(n, func(r threadpool.Range) {
		for k := r.Start; k < r.End; k++ {
			v := src.Get(trainIdx[k])
			best, bestDist := 0, metric.Worst()
			for c, centroid := range centroids {
				qs := op.Fix(centroid)
				d := op.Compute(qs, v)
				if metric.Better(d, bestDist) {
					best, bestDist = c, d
				}
			}
			assign[k] = best
		}
	})
}

// reseedEmptyCluster replaces an emptied centroid with the farthest
// currently-assigned training vector from its own centroid.
func reseedEmptyCluster(empty int, src store.Store, trainIdx []int, assign []int, centroids [][]float32, op distance.Operator, metric distance.Metric) {
	farthest := -1
	var worstDist float32
	for k, idx := range trainIdx {
		c := assign[k]
		v := src.Get(idx)
		qs := op.Fix(centroids[c])
		d := op.Compute(qs, v)
		if farthest < 0 || metric.Better(worstDist, d) {
			farthest, worstDist = k, d
		}
	}
	if farthest < 0 {
		return
	}
	v := src.Get(trainIdx[farthest])
	cp := make([]float32, len(v))
	copy(cp, v)
	centroids[empty] = cp
}
