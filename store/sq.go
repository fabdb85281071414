package store

import (
	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/threadpool"
)

// SQStore is a scalar-quantized (int8) store: one dataset-wide scale and
// bias, D int8 codes per vector. Reconstruction: value[j] = b + s*code[j].
type SQStore struct {
	dim   int
	scale float32
	bias  float32
	codes []int8 // n*dim
	n     int
}

// CompressSQ scans src to compute a single dataset-wide scale/bias (min/max
// of all scalar values, linearly mapped onto [-127, 127]) and encodes
// every vector in parallel across pool.
func CompressSQ(src Store, pool *threadpool.Pool) (*SQStore, error) {
	n, dim := src.Size(), src.Dimensions()
	if n == 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "store.CompressSQ", "empty source store")
	}

	var minV, maxV float32
	minV, maxV = src.Get(0)[0], src.Get(0)[0]
	for i := 0; i < n; i++ {
		v := src.Get(i)
		for _, x := range v {
			if x < minV {
				minV = x
			}
			if x > maxV {
				maxV = x
			}
		}
	}
	bias := (minV + maxV) / 2
	halfRange := (maxV - minV) / 2
	scale := float32(1)
	if halfRange > 0 {
		scale = halfRange / 127
	}

	out := &SQStore{dim: dim, scale: scale, bias: bias, n: n, codes: make([]int8, n*dim)}
	pool.For(n, func(r threadpool.Range) {
		for i := r.Start; i < r.End; i++ {
			v := src.Get(i)
			row := out.codes[i*dim : (i+1)*dim]
			for j, x := range v {
				code := (x - bias) / scale
				row[j] = int8(clamp(code, -127, 127))
			}
		}
	})
	return out, nil
}

func (s *SQStore) Size() int       { return s.n }
func (s *SQStore) Dimensions() int { return s.dim }
func (s *SQStore) Prefetch(int)    {}

func (s *SQStore) Get(i int) []float32 {
	row := s.codes[i*s.dim : (i+1)*s.dim]
	out := make([]float32, s.dim)
	for j, c := range row {
		out[j] = s.bias + s.scale*float32(c)
	}
	return out
}

// Scale and Bias expose the dataset-wide reconstruction constants, used by
// distance closures bound against a compressed store.
func (s *SQStore) Scale() float32 { return s.scale }
func (s *SQStore) Bias() float32  { return s.bias }

// Code returns the raw int8 code row for vector i, without reconstruction
// — the fast path a graph-search distance closure uses.
func (s *SQStore) Code(i int) []int8 { return s.codes[i*s.dim : (i+1)*s.dim] }
