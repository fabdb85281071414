// Package store implements the vector-store layer: random access to N
// vectors of fixed logical dimension D, with growable variants supporting
// set/resize/compact, plus the compressed representations (scalar
// quantization, LVQ, LeanVec) that implement the same read interface so the
// graph and IVF indexes consume them polymorphically.
//
// Every concrete store exposes decoded float32 views through the single
// Store interface; the only place the concrete element type matters is
// inside each store's own Get/Set implementation.
package store

import (
	"bytes"
	"encoding/gob"

	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/svs-go/svs/svserr"
)

// ElementType is the closed manifest of element types raw stores support.
type ElementType int

const (
	Float32 ElementType = iota
	Float16
	Int8
	Uint8
)

func (t ElementType) String() string {
	switch t {
	case Float32:
		return "f32"
	case Float16:
		return "f16"
	case Int8:
		return "i8"
	case Uint8:
		return "u8"
	default:
		return "unknown"
	}
}

// Store is the read interface every vector store (raw or compressed)
// implements.
type Store interface {
	// Size reports the number of vectors held.
	Size() int
	// Dimensions reports the logical dimension D.
	Dimensions() int
	// Get returns a view of D scalars for vector i. For raw f32 stores
	// this aliases the backing array; for other element types and all
	// compressed stores it is a freshly decoded slice. Callers must not
	// rely on the view surviving a subsequent mutation.
	Get(i int) []float32
	// Prefetch is an advisory hint; the default implementation is a
	// no-op (no SIMD/cache-line prefetch intrinsics).
	Prefetch(i int)
}

// Growable is implemented by stores that support incremental mutation.
type Growable interface {
	Store
	// Set overwrites vector i with v (len(v) must equal Dimensions()).
	Set(i int, v []float32) error
	// Resize extends or truncates the store to n vectors; new slots have
	// unspecified contents.
	Resize(n int) error
	// Compact permutes/truncates in place: afterwards, vector k equals
	// the pre-compact vector newToOld[k]. Callers must exclude
	// concurrent reads while Compact runs.
	Compact(newToOld []int) error
}

// RawStore is a dense store of one of the four raw element types. Reads
// always yield decoded float32 views; only Float32 avoids a copy.
type RawStore struct {
	dtype ElementType
	dim   int
	n     int

	f32 []float32 // Float32: n*dim, row-major
	f16 []uint16  // Float16: n*dim raw bit patterns
	i8  []int8    // Int8: n*dim
	u8  []uint8   // Uint8: n*dim
}

// NewRawStore allocates an empty growable raw store of the given element
// type and dimension.
func NewRawStore(dtype ElementType, dim int) *RawStore {
	return &RawStore{dtype: dtype, dim: dim}
}

// NewRawStoreFromF32 builds a raw store by encoding source (n vectors of
// dim floats, row-major) into dtype.
func NewRawStoreFromF32(dtype ElementType, dim int, source [][]float32) (*RawStore, error) {
	s := NewRawStore(dtype, dim)
	if err := s.Resize(len(source)); err != nil {
		return nil, err
	}
	for i, v := range source {
		if err := s.Set(i, v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *RawStore) Size() int          { return s.n }
func (s *RawStore) Dimensions() int    { return s.dim }
func (s *RawStore) ElementType() ElementType { return s.dtype }
func (s *RawStore) Prefetch(int)       {}

// Get decodes vector i into a freshly allocated slice (except for Float32,
// which aliases the backing array directly). A fresh allocation per call
// is required for Float16/Int8/Uint8 because Get must be safe to call
// concurrently from independent per-query search buffers once the store is
// read-only; a shared scratch buffer would race.
func (s *RawStore) Get(i int) []float32 {
	switch s.dtype {
	case Float32:
		return s.f32[i*s.dim : (i+1)*s.dim]
	case Float16:
		row := s.f16[i*s.dim : (i+1)*s.dim]
		out := make([]float32, s.dim)
		for j, bits := range row {
			out[j] = float16.Frombits(bits).Float32()
		}
		return out
	case Int8:
		row := s.i8[i*s.dim : (i+1)*s.dim]
		out := make([]float32, s.dim)
		for j, v := range row {
			out[j] = float32(v)
		}
		return out
	case Uint8:
		row := s.u8[i*s.dim : (i+1)*s.dim]
		out := make([]float32, s.dim)
		for j, v := range row {
			out[j] = float32(v)
		}
		return out
	default:
		return make([]float32, s.dim)
	}
}

func (s *RawStore) Set(i int, v []float32) error {
	if len(v) != s.dim {
		return svserr.Newf(svserr.InvalidArgument, "store.Set", "dimension mismatch: expected %d, got %d", s.dim, len(v))
	}
	switch s.dtype {
	case Float32:
		copy(s.f32[i*s.dim:(i+1)*s.dim], v)
	case Float16:
		row := s.f16[i*s.dim : (i+1)*s.dim]
		for j, x := range v {
			row[j] = float16.Fromfloat32(x).Bits()
		}
	case Int8:
		row := s.i8[i*s.dim : (i+1)*s.dim]
		for j, x := range v {
			row[j] = int8(clamp(x, -128, 127))
		}
	case Uint8:
		row := s.u8[i*s.dim : (i+1)*s.dim]
		for j, x := range v {
			row[j] = uint8(clamp(x, 0, 255))
		}
	}
	return nil
}

func clamp(x float32, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func (s *RawStore) Resize(n int) error {
	if n < 0 {
		return svserr.Newf(svserr.InvalidArgument, "store.Resize", "negative size %d", n)
	}
	sz := n * s.dim
	switch s.dtype {
	case Float32:
		s.f32 = growF32(s.f32, sz)
	case Float16:
		s.f16 = growU16(s.f16, sz)
	case Int8:
		s.i8 = growI8(s.i8, sz)
	case Uint8:
		s.u8 = growU8(s.u8, sz)
	}
	s.n = n
	return nil
}

func (s *RawStore) Compact(newToOld []int) error {
	switch s.dtype {
	case Float32:
		out := make([]float32, len(newToOld)*s.dim)
		for k, old := range newToOld {
			copy(out[k*s.dim:(k+1)*s.dim], s.f32[old*s.dim:(old+1)*s.dim])
		}
		s.f32 = out
	case Float16:
		out := make([]uint16, len(newToOld)*s.dim)
		for k, old := range newToOld {
			copy(out[k*s.dim:(k+1)*s.dim], s.f16[old*s.dim:(old+1)*s.dim])
		}
		s.f16 = out
	case Int8:
		out := make([]int8, len(newToOld)*s.dim)
		for k, old := range newToOld {
			copy(out[k*s.dim:(k+1)*s.dim], s.i8[old*s.dim:(old+1)*s.dim])
		}
		s.i8 = out
	case Uint8:
		out := make([]uint8, len(newToOld)*s.dim)
		for k, old := range newToOld {
			copy(out[k*s.dim:(k+1)*s.dim], s.u8[old*s.dim:(old+1)*s.dim])
		}
		s.u8 = out
	}
	s.n = len(newToOld)
	return nil
}

func growF32(s []float32, sz int) []float32 {
	if sz <= len(s) {
		return s[:sz]
	}
	out := make([]float32, sz)
	copy(out, s)
	return out
}

func growU16(s []uint16, sz int) []uint16 {
	if sz <= len(s) {
		return s[:sz]
	}
	out := make([]uint16, sz)
	copy(out, s)
	return out
}

func growI8(s []int8, sz int) []int8 {
	if sz <= len(s) {
		return s[:sz]
	}
	out := make([]int8, sz)
	copy(out, s)
	return out
}

func growU8(s []uint8, sz int) []uint8 {
	if sz <= len(s) {
		return s[:sz]
	}
	out := make([]uint8, sz)
	copy(out, s)
	return out
}

// ErrDimensionMismatch is a sentinel for callers that want one to compare
// against rather than inspecting svserr.Kind; no function in this module
// returns it.
var ErrDimensionMismatch = errors.New("svs/store: dimension mismatch")

// rawStoreWire mirrors RawStore's unexported fields with exported ones so
// gob (which only encodes exported struct fields) can (de)serialize it; see
// GobEncode/GobDecode below, used by the persist package's "uncompressed_data"
// payload.
type rawStoreWire struct {
	Dtype ElementType
	Dim   int
	N     int
	F32   []float32
	F16   []uint16
	I8    []int8
	U8    []uint8
}

// GobEncode implements gob.GobEncoder.
func (s *RawStore) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	w := rawStoreWire{Dtype: s.dtype, Dim: s.dim, N: s.n, F32: s.f32, F16: s.f16, I8: s.i8, U8: s.u8}
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, errors.Wrap(err, "store.RawStore.GobEncode")
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder.
func (s *RawStore) GobDecode(data []byte) error {
	var w rawStoreWire
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return errors.Wrap(err, "store.RawStore.GobDecode")
	}
	s.dtype, s.dim, s.n = w.Dtype, w.Dim, w.N
	s.f32, s.f16, s.i8, s.u8 = w.F32, w.F16, w.I8, w.U8
	return nil
}
