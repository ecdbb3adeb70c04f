// Package distance implements the Lp distance family the VP-tree indexes
// against. Grounded on original_source/src/vpTree.h's LpDistance hierarchy
// (L1Distance, L2Distance, L2DistanceNan, L2DistanceNanIndexed).
package distance

import (
	"errors"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// ErrDifferentSizes is returned when two vectors being compared (or a mask
// and a vector, for the indexed variant) have mismatched lengths.
var ErrDifferentSizes = errors.New("distance: vectors have different sizes")

// Func computes the distance between two equal-length feature vectors.
type Func func(a, b []float32) (float32, error)

// L1 is the taxicab distance: sum of absolute per-dimension differences.
func L1(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDifferentSizes
	}
	var d float32
	for i := range a {
		diff := a[i] - b[i]
		if diff < 0 {
			diff = -diff
		}
		d += diff
	}
	return d, nil
}

// L2 is the Euclidean distance.
func L2(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDifferentSizes
	}
	var d float64
	for i := range a {
		diff := float64(a[i] - b[i])
		d += diff * diff
	}
	return float32(math.Sqrt(d)), nil
}

// L2Nan is the Euclidean distance skipping any dimension where either
// operand is NaN ("missing").
func L2Nan(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, ErrDifferentSizes
	}
	var d float64
	for i := range a {
		if IsNaN(a[i]) || IsNaN(b[i]) {
			continue
		}
		diff := float64(a[i] - b[i])
		d += diff * diff
	}
	return float32(math.Sqrt(d)), nil
}

// NanIndexed is the Euclidean distance restricted to the dimensions where an
// immutable reference mask vector is not NaN. Unlike L2Nan, the skipped
// dimensions are fixed per-tree (the mask), not re-evaluated per comparison;
// the VP-tree must be rebuilt whenever the mask's NaN pattern changes.
type NanIndexed struct {
	Mask []float32
}

func NewNanIndexed(mask []float32) *NanIndexed {
	cp := make([]float32, len(mask))
	copy(cp, mask)
	return &NanIndexed{Mask: cp}
}

func (n *NanIndexed) Distance(a, b []float32) (float32, error) {
	if len(a) != len(n.Mask) || len(b) != len(n.Mask) {
		return 0, ErrDifferentSizes
	}
	var d float64
	for i := range a {
		if IsNaN(n.Mask[i]) {
			continue
		}
		diff := float64(a[i] - b[i])
		d += diff * diff
	}
	return float32(math.Sqrt(d)), nil
}

// Pattern encodes the mask's NaN/non-NaN pattern as a bitset, one bit set
// per non-NaN dimension — the comparable form used to decide whether a
// cached VP-tree built against an older mask can still be reused.
func (n *NanIndexed) Pattern() *bitset.BitSet {
	return Pattern(n.Mask)
}

// Pattern builds the same bitset directly from a record, for callers that
// have not yet constructed a NanIndexed.
func Pattern(mask []float32) *bitset.BitSet {
	b := bitset.New(uint(len(mask)))
	for i, v := range mask {
		if !IsNaN(v) {
			b.Set(uint(i))
		}
	}
	return b
}

// SamePattern reports whether two masks have identical NaN/non-NaN shapes,
// i.e. whether a VP-tree built against one can serve the other unchanged.
func SamePattern(a, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	return Pattern(a).Equal(Pattern(b))
}

func IsNaN(f float32) bool { return math.IsNaN(float64(f)) }
