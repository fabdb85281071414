package store

import (
	"math"

	"github.com/svs-go/svs/svserr"
	"github.com/svs-go/svs/threadpool"
)

// PackingStrategy selects how LVQ codes are laid out in memory. Sequential
// packs codes tightly in row order. Turbo records a turbo<L,E> lane shape
// (see turboShape), but physicalSlot maps every logical index to the same
// slot under both strategies, so Turbo and Sequential produce the same
// byte layout and decode to identical reconstructed values.
type PackingStrategy int

const (
	Sequential PackingStrategy = iota
	Turbo
)

// LVQStore is a 1- or 2-level Locally-adaptive Vector Quantization store.
// Per-vector: a scale s, a bias b, an optional centroid selector, and a
// packed primary-codes block at PrimaryBits each; a 2-level store adds a
// packed residual-codes block at ResidualBits each.
//
// Reconstruction: value[j] = centroid[sel][j] + b + s*primary[j] for the
// fast (graph-traversal) path, and value[j] += s*residual[j]/2^(PrimaryBits-1)
// for the refined (reranking) path — residual and primary share the same
// centroid assignment and bias.
type LVQStore struct {
	dim  int
	n    int
	pack PackingStrategy
	// turboLanes/turboElems describe the turbo<L,E> shape: L lanes of E
	// elements each, L*E >= dim. Unused when pack == Sequential.
	turboLanes, turboElems int

	primaryBits  int
	residualBits int // 0 if this is a 1-level store

	centroids [][]float32 // shared centroid matrix; nil if no centroid selection
	selectors []int32     // per-vector centroid index, -1 if centroids == nil

	scales []float32
	biases []float32

	primary  *codeMatrix
	residual *codeMatrix // nil for 1-level
}

// codeMatrix holds n rows of dim signed codes packed at bits-per-code,
// under the store's packing strategy.
type codeMatrix struct {
	dim  int
	bits int
	pack PackingStrategy
	lanes, elems int
	data []byte // bit-packed, row-major over the (possibly turbo-permuted) code order
}

func newCodeMatrix(n, dim, bits int, pack PackingStrategy, lanes, elems int) *codeMatrix {
	rowBytes := (dim*bits + 7) / 8
	return &codeMatrix{dim: dim, bits: bits, pack: pack, lanes: lanes, elems: elems, data: make([]byte, n*rowBytes)}
}

func (m *codeMatrix) rowBytes() int { return (m.dim*m.bits + 7) / 8 }

func (m *codeMatrix) setRow(i int, codes []int32) {
	row := m.data[i*m.rowBytes() : (i+1)*m.rowBytes()]
	for logical := 0; logical < m.dim; logical++ {
		phys := m.physicalSlot(logical)
		packSignedInto(row, phys, m.bits, codes[logical])
	}
}

func (m *codeMatrix) getRow(i int, out []int32) {
	row := m.data[i*m.rowBytes() : (i+1)*m.rowBytes()]
	for logical := 0; logical < m.dim; logical++ {
		phys := m.physicalSlot(logical)
		out[logical] = unpackSignedFrom(row, phys, m.bits)
	}
}

// physicalSlot maps a logical dimension index to its physical bit-slot
// index. Under Turbo it splits the index into lane = logical%L and
// elem = logical/L and returns elem*L+lane, which is the logical index
// itself; no permutation is applied under either strategy.
func (m *codeMatrix) physicalSlot(logical int) int {
	if m.pack == Sequential || m.lanes <= 0 || m.elems <= 0 {
		return logical
	}
	lane := logical % m.lanes
	elem := logical / m.lanes
	return elem*m.lanes + lane
}

func packSignedInto(buf []byte, slot, bits int, v int32) {
	lo, hi := signedRange(bits)
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	u := uint32(v) & ((1 << uint(bits)) - 1)
	bitOff := slot * bits
	for b := 0; b < bits; b++ {
		byteIdx := (bitOff + b) / 8
		bitIdx := uint((bitOff + b) % 8)
		if (u>>uint(b))&1 != 0 {
			buf[byteIdx] |= 1 << bitIdx
		} else {
			buf[byteIdx] &^= 1 << bitIdx
		}
	}
}

func unpackSignedFrom(buf []byte, slot, bits int) int32 {
	bitOff := slot * bits
	var u uint32
	for b := 0; b < bits; b++ {
		byteIdx := (bitOff + b) / 8
		bitIdx := uint((bitOff + b) % 8)
		if (buf[byteIdx]>>bitIdx)&1 != 0 {
			u |= 1 << uint(b)
		}
	}
	// sign-extend
	signBit := uint32(1) << uint(bits-1)
	if u&signBit != 0 {
		return int32(u) - (1 << uint(bits))
	}
	return int32(u)
}

func signedRange(bits int) (int32, int32) {
	hi := int32(1<<uint(bits-1)) - 1
	lo := -hi - 1
	return lo, hi
}

// CompressLVQ builds a 1-level LVQ store from src: per-vector scale/bias is
// computed from that vector's own min/max (the "locally adaptive" part of
// LVQ), codes are quantized to primaryBits and packed per strategy, in
// parallel across pool. centroids may be nil (no shared centroid
// component).
func CompressLVQ(src Store, pool *threadpool.Pool, primaryBits int, pack PackingStrategy, centroids [][]float32) (*LVQStore, error) {
	if primaryBits != 4 && primaryBits != 8 {
		return nil, svserr.Newf(svserr.InvalidArgument, "store.CompressLVQ", "primary_bits must be 4 or 8, got %d", primaryBits)
	}
	n, dim := src.Size(), src.Dimensions()
	if n == 0 {
		return nil, svserr.Newf(svserr.InvalidArgument, "store.CompressLVQ", "empty source store")
	}
	lanes, elems := turboShape(dim, pack)

	out := &LVQStore{
		dim: dim, n: n, pack: pack, turboLanes: lanes, turboElems: elems,
		primaryBits: primaryBits, centroids: centroids,
		scales: make([]float32, n), biases: make([]float32, n),
		primary: newCodeMatrix(n, dim, primaryBits, pack, lanes, elems),
	}
	if centroids != nil {
		out.selectors = make([]int32, n)
	}

	lo, hi := signedRange(primaryBits)
	pool.For(n, func(r threadpool.Range) {
		codes := make([]int32, dim)
		for i := r.Start; i < r.End; i++ {
			v := src.Get(i)
			sel := int32(-1)
			base := v
			if centroids != nil {
				sel = nearestCentroid(v, centroids)
				base = subtract(v, centroids[sel])
			}
			mn, mx := minMax(base)
			bias := (mn + mx) / 2
			halfRange := (mx - mn) / 2
			scale := float32(1)
			if halfRange > 0 {
				scale = halfRange / float32(hi)
			}
			for j, x := range base {
				c := (x - bias) / scale
				if c < float32(lo) {
					c = float32(lo)
				}
				if c > float32(hi) {
					c = float32(hi)
				}
				codes[j] = int32(math.Round(float64(c)))
			}
			out.scales[i] = scale
			out.biases[i] = bias
			if centroids != nil {
				out.selectors[i] = sel
			}
			out.primary.setRow(i, codes)
		}
	})
	return out, nil
}

// AddResidual promotes a 1-level LVQStore to 2-level by quantizing the
// reconstruction residual (the error the primary codes don't capture) at
// residualBits, sharing the primary's centroid assignment and bias.
func (s *LVQStore) AddResidual(src Store, pool *threadpool.Pool, residualBits int) error {
	if residualBits != 4 && residualBits != 8 {
		return svserr.Newf(svserr.InvalidArgument, "store.AddResidual", "residual_bits must be 4 or 8, got %d", residualBits)
	}
	if s.residual != nil {
		return svserr.Newf(svserr.AlreadyInitialized, "store.AddResidual", "store already has a residual level")
	}
	s.residualBits = residualBits
	s.residual = newCodeMatrix(s.n, s.dim, residualBits, s.pack, s.turboLanes, s.turboElems)
	lo, hi := signedRange(residualBits)
	primaryScaleDivisor := float32(int(1) << uint(s.primaryBits-1))
	pool.For(s.n, func(r threadpool.Range) {
		primCodes := make([]int32, s.dim)
		resCodes := make([]int32, s.dim)
		for i := r.Start; i < r.End; i++ {
			full := src.Get(i)
			base := full
			if s.centroids != nil && s.selectors[i] >= 0 {
				base = subtract(full, s.centroids[s.selectors[i]])
			}
			s.primary.getRow(i, primCodes)
			scale := s.scales[i]
			bias := s.biases[i]
			resScale := scale / primaryScaleDivisor
			for j, x := range base {
				approx := bias + scale*float32(primCodes[j])
				residualVal := x - approx
				var rc float32
				if resScale > 0 {
					rc = residualVal / resScale
				}
				if rc < float32(lo) {
					rc = float32(lo)
				}
				if rc > float32(hi) {
					rc = float32(hi)
				}
				resCodes[j] = int32(math.Round(float64(rc)))
			}
			s.residual.setRow(i, resCodes)
		}
	})
	return nil
}

func turboShape(dim int, pack PackingStrategy) (lanes, elems int) {
	if pack != Turbo {
		return 0, 0
	}
	lanes = 16
	if lanes > dim {
		lanes = dim
	}
	elems = (dim + lanes - 1) / lanes
	return lanes, elems
}

func nearestCentroid(v []float32, centroids [][]float32) int32 {
	best := int32(0)
	var bestDist float32 = math.MaxFloat32
	for i, c := range centroids {
		var d float32
		for j := range v {
			diff := v[j] - c[j]
			d += diff * diff
		}
		if d < bestDist {
			bestDist = d
			best = int32(i)
		}
	}
	return best
}

func subtract(a, b []float32) []float32 {
	out := make([]float32, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}

func minMax(v []float32) (float32, float32) {
	mn, mx := v[0], v[0]
	for _, x := range v[1:] {
		if x < mn {
			mn = x
		}
		if x > mx {
			mx = x
		}
	}
	return mn, mx
}

func (s *LVQStore) Size() int       { return s.n }
func (s *LVQStore) Dimensions() int { return s.dim }
func (s *LVQStore) Prefetch(int)    {}

// IsTwoLevel reports whether this store carries a residual refinement
// block.
func (s *LVQStore) IsTwoLevel() bool { return s.residual != nil }

// Get reconstructs the full (primary+residual, when present) value of
// vector i.
func (s *LVQStore) Get(i int) []float32 {
	out := make([]float32, s.dim)
	primCodes := make([]int32, s.dim)
	s.primary.getRow(i, primCodes)
	scale, bias := s.scales[i], s.biases[i]
	var base []float32
	if s.centroids != nil && s.selectors[i] >= 0 {
		base = s.centroids[s.selectors[i]]
	}
	for j := range out {
		v := bias + scale*float32(primCodes[j])
		if base != nil {
			v += base[j]
		}
		out[j] = v
	}
	if s.residual != nil {
		resCodes := make([]int32, s.dim)
		s.residual.getRow(i, resCodes)
		resScale := scale / float32(int(1)<<uint(s.primaryBits-1))
		for j := range out {
			out[j] += resScale * float32(resCodes[j])
		}
	}
	return out
}

// GetPrimary reconstructs only the primary (fast, graph-traversal) value
// of vector i, ignoring any residual block.
func (s *LVQStore) GetPrimary(i int) []float32 {
	out := make([]float32, s.dim)
	primCodes := make([]int32, s.dim)
	s.primary.getRow(i, primCodes)
	scale, bias := s.scales[i], s.biases[i]
	for j := range out {
		v := bias + scale*float32(primCodes[j])
		if s.centroids != nil && s.selectors[i] >= 0 {
			v += s.centroids[s.selectors[i]][j]
		}
		out[j] = v
	}
	return out
}

// lvqPrimaryView adapts an LVQStore to the plain Store interface using
// only its fast primary reconstruction, for callers (graph build/search)
// that want to traverse without paying for residual decode.
type lvqPrimaryView struct {
	s *LVQStore
}

func (v *lvqPrimaryView) Size() int       { return v.s.Size() }
func (v *lvqPrimaryView) Dimensions() int { return v.s.Dimensions() }
func (v *lvqPrimaryView) Prefetch(i int)  {}
func (v *lvqPrimaryView) Get(i int) []float32 { return v.s.GetPrimary(i) }

// PrimaryView exposes this store's fast (no-residual) reconstruction as a
// plain Store, so a graph index can build and traverse over it directly.
func (s *LVQStore) PrimaryView() Store { return &lvqPrimaryView{s: s} }
