// Package distance implements the distance-kernel contract: a closed set
// of metrics, each exposing a comparator (a strict weak order over
// distances) and an operator split into a one-time "fix" phase and a
// per-candidate "compute" phase.
//
// The fix/compute split mirrors hnsw/distancer's L2SquaredProvider, which
// separates New(a) from Distance(b); it is generalized here to all three
// metrics and exposed as plain function values (package-level var, not a
// struct method table) so a specialized build could rebind them without
// touching call sites.
package distance

import (
	"math"

	"github.com/pkg/errors"
)

// Metric is the closed set of supported distance metrics.
type Metric int

const (
	L2 Metric = iota
	IP
	Cosine
)

func (m Metric) String() string {
	switch m {
	case L2:
		return "L2"
	case IP:
		return "IP"
	case Cosine:
		return "Cosine"
	default:
		return "Unknown"
	}
}

// ParseMetric maps the external distance-type enum names onto Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "L2":
		return L2, nil
	case "IP":
		return IP, nil
	case "Cosine":
		return Cosine, nil
	default:
		return 0, errors.Errorf("unknown metric %q", s)
	}
}

// Better reports whether a is a strictly better distance than b under m.
// L2 is minimized (natural <); IP and Cosine are maximized (>).
func (m Metric) Better(a, b float32) bool {
	if m == L2 {
		return a < b
	}
	return a > b
}

// Worst returns the sentinel value that compares as worse than any real
// distance under m — used to pad short k-NN result lists and to seed
// running "best so far" accumulators.
func (m Metric) Worst() float32 {
	if m == L2 {
		return float32(math.Inf(1))
	}
	return float32(math.Inf(-1))
}

// QueryState is the amortized state produced by Fix, consumed by Compute.
type QueryState struct {
	Query []float32
	// norm is the precomputed query norm, used by Cosine.
	norm float32
}

// Operator is a metric bound to its fix/compute split.
type Operator struct {
	Metric  Metric
	Fix     func(query []float32) QueryState
	Compute func(qs QueryState, v []float32) float32
}

// NewOperator returns the Operator for m.
func NewOperator(m Metric) Operator {
	switch m {
	case L2:
		return Operator{Metric: L2, Fix: fixIdentity, Compute: computeL2}
	case IP:
		return Operator{Metric: IP, Fix: fixIdentity, Compute: computeIP}
	case Cosine:
		return Operator{Metric: Cosine, Fix: fixCosine, Compute: computeCosine}
	default:
		return Operator{Metric: m, Fix: fixIdentity, Compute: computeL2}
	}
}

func fixIdentity(query []float32) QueryState { return QueryState{Query: query} }

func fixCosine(query []float32) QueryState {
	return QueryState{Query: query, norm: safeNorm(query)}
}

// l2SquaredImpl/l2SquaredStepImpl are a package-level function-value split
// so a microarchitecture-specialized build can rebind them without
// touching any call site.
var l2SquaredImpl = func(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += l2SquaredStepImpl(a[i], b[i])
	}
	return sum
}

var l2SquaredStepImpl = func(a, b float32) float32 {
	diff := a - b
	return diff * diff
}

var innerProductImpl = func(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func computeL2(qs QueryState, v []float32) float32 { return l2SquaredImpl(qs.Query, v) }
func computeIP(qs QueryState, v []float32) float32 { return innerProductImpl(qs.Query, v) }

func computeCosine(qs QueryState, v []float32) float32 {
	if qs.norm == 0 {
		return 0
	}
	vn := safeNorm(v)
	if vn == 0 {
		return 0
	}
	return innerProductImpl(qs.Query, v) / (qs.norm * vn)
}

func safeNorm(v []float32) float32 {
	var sum float32
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return 0
	}
	return sqrt32(sum)
}

func sqrt32(x float32) float32 {
	// Newton-Raphson refinement from a float64 seed; kept in pure Go,
	// no SIMD dispatch.
	if x <= 0 {
		return 0
	}
	g := float64(x)
	for i := 0; i < 8; i++ {
		g = 0.5 * (g + float64(x)/g)
	}
	return float32(g)
}

// L2Squared computes squared Euclidean distance directly (convenience for
// callers outside the graph/search hot path, e.g. k-means in the IVF
// index).
func L2Squared(a, b []float32) float32 { return l2SquaredImpl(a, b) }

// InnerProduct computes the raw inner product directly.
func InnerProduct(a, b []float32) float32 { return innerProductImpl(a, b) }
