package store

import (
	"gonum.org/v1/gonum/mat"

	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/threadpool"
)

// LeanVecStore is a dimensionality-reducing front-end: vectors are stored
// in their projected L-dimensional form (L <= D) inside an arbitrary inner
// store (raw or LVQ). A distinct query-projection matrix supports
// out-of-distribution training.
type LeanVecStore struct {
	sourceDim, targetDim int
	projection           *mat.Dense // D x L
	queryProjection      *mat.Dense // D x L; equals projection when not OOD-trained
	inner                Store
}

// Dimensions reports the logical (projected) dimension L, since that is
// what Get returns — matching the read interface contract shared with
// every other Store.
func (s *LeanVecStore) Dimensions() int { return s.targetDim }
func (s *LeanVecStore) Size() int       { return s.inner.Size() }
func (s *LeanVecStore) Prefetch(i int)  { s.inner.Prefetch(i) }
func (s *LeanVecStore) Get(i int) []float32 { return s.inner.Get(i) }

// SourceDimensions reports the pre-projection dimension D.
func (s *LeanVecStore) SourceDimensions() int { return s.sourceDim }

// ProjectQuery applies the query-projection matrix once per query: the
// index transforms it once and then searches in L-dim space.
func (s *LeanVecStore) ProjectQuery(q []float32) []float32 {
	return projectRow(q, s.queryProjection, s.targetDim)
}

// Reduce trains (or reuses) a D->L projection and projects src through it,
// storing the result via innerBuilder (e.g. a plain RawStore, or an LVQ
// compressor composed on top), so the projected vectors can live in any
// inner representation.
//
// When projection is nil, it is trained by PCA on src: the data are
// centered on their mean (not the medoid) and the top-L principal
// directions of the centered covariance are taken, via gonum's symmetric
// eigendecomposition (gonum.org/v1/gonum/mat.EigenSym). When
// trainingQueries is non-empty, a separate query projection is trained the
// same way on that query set, for OOD search.
func Reduce(src Store, pool *threadpool.Pool, targetDim int, trainingQueries [][]float32, projection *mat.Dense, innerBuilder func(projected Store) (Store, error)) (*LeanVecStore, error) {
	d := src.Dimensions()
	if targetDim > d {
		return nil, svserr.Newf(svserr.InvalidArgument, "store.Reduce", "projection dim L=%d exceeds source dim D=%d", targetDim, d)
	}
	if targetDim <= 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "store.Reduce", "projection dim L must be positive, got %d", targetDim)
	}

	trainSet := collectAll(src)
	var queryProj *mat.Dense
	if projection == nil {
		p, err := trainPCA(trainSet, d, targetDim)
		if err != nil {
			return nil, err
		}
		projection = p
		if len(trainingQueries) > 0 {
			qp, err := trainPCA(trainingQueries, d, targetDim)
			if err != nil {
				return nil, err
			}
			queryProj = qp
		}
	}
	if queryProj == nil {
		queryProj = projection
	}

	n := src.Size()
	projected := make([][]float32, n)
	pool.For(n, func(r threadpool.Range) {
		for i := r.Start; i < r.End; i++ {
			projected[i] = projectRow(src.Get(i), projection, targetDim)
		}
	})
	projectedStore, err := NewRawStoreFromF32(Float32, targetDim, projected)
	if err != nil {
		return nil, err
	}
	inner, err := innerBuilder(projectedStore)
	if err != nil {
		return nil, err
	}

	return &LeanVecStore{
		sourceDim: d, targetDim: targetDim,
		projection: projection, queryProjection: queryProj,
		inner: inner,
	}, nil
}

func collectAll(s Store) [][]float32 {
	n := s.Size()
	out := make([][]float32, n)
	for i := 0; i < n; i++ {
		v := s.Get(i)
		cp := make([]float32, len(v))
		copy(cp, v)
		out[i] = cp
	}
	return out
}

func projectRow(v []float32, p *mat.Dense, targetDim int) []float32 {
	d, l := p.Dims()
	out := make([]float32, targetDim)
	for j := 0; j < l && j < targetDim; j++ {
		var sum float64
		for i := 0; i < d && i < len(v); i++ {
			sum += float64(v[i]) * p.At(i, j)
		}
		out[j] = float32(sum)
	}
	return out
}

// trainPCA centers data on its mean (an approximation of the medoid,
// cheap for arbitrary D) and returns the D x L matrix of the top-L
// eigenvectors of the covariance matrix.
func trainPCA(data [][]float32, d, l int) (*mat.Dense, error) {
	if len(data) == 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "store.trainPCA", "no training vectors supplied")
	}
	mean := make([]float64, d)
	for _, v := range data {
		for i := 0; i < d; i++ {
			mean[i] += float64(v[i])
		}
	}
	for i := range mean {
		mean[i] /= float64(len(data))
	}

	cov := mat.NewSymDense(d, nil)
	for a := 0; a < d; a++ {
		for b := a; b < d; b++ {
			var sum float64
			for _, v := range data {
				sum += (float64(v[a]) - mean[a]) * (float64(v[b]) - mean[b])
			}
			sum /= float64(len(data))
			cov.SetSym(a, b, sum)
		}
	}

	var eig mat.EigenSym
	ok := eig.Factorize(cov, true)
	if !ok {
		return nil, svserr.Newf(svserr.RuntimeError, "store.trainPCA", "eigendecomposition failed")
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// eigenvalues ascend; take the last L columns (largest variance).
	type idxVal struct {
		idx int
		val float64
	}
	order := make([]idxVal, len(values))
	for i, v := range values {
		order[i] = idxVal{i, v}
	}
	// simple selection sort descending by value, d is expected small/mid
	for i := 0; i < len(order); i++ {
		best := i
		for j := i + 1; j < len(order); j++ {
			if order[j].val > order[best].val {
				best = j
			}
		}
		order[i], order[best] = order[best], order[i]
	}

	proj := mat.NewDense(d, l, nil)
	for col := 0; col < l; col++ {
		srcCol := order[col].idx
		for row := 0; row < d; row++ {
			proj.Set(row, col, vectors.At(row, srcCol))
		}
	}
	return proj, nil
}

