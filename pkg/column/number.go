package column

import (
	"io"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/cran/ganGenerativeData/pkg/wire"
)

// NumberColumn holds parallel raw and normalised f32 vectors for a single
// NUMERICAL column, plus the derived min/max used to scale between them.
// Grounded on original_source/src/numberColumn.h, generalised to also
// support the LOGARITHMIC scale (spec.md §4.1) that the original's
// normalize path only partially implemented.
type NumberColumn struct {
	base
	raw        []float32
	normalized []float32
	min, max   float32
}

// NewNumberColumn creates an empty NUMERICAL column with the given scale.
func NewNumberColumn(name string, scale Scale) *NumberColumn {
	return &NumberColumn{
		base: base{typ: Numerical, scale: scale, name: name, active: true},
	}
}

// Clone deep-copies the raw and normalised vectors and the derived min/max,
// matching the original's NumberColumn copy constructor.
func (c *NumberColumn) Clone() *NumberColumn {
	raw := make([]float32, len(c.raw))
	copy(raw, c.raw)
	normalized := make([]float32, len(c.normalized))
	copy(normalized, c.normalized)
	return &NumberColumn{
		base:       c.base,
		raw:        raw,
		normalized: normalized,
		min:        c.min,
		max:        c.max,
	}
}

func (c *NumberColumn) Dimension() int { return 1 }
func (c *NumberColumn) RawSize() int   { return len(c.raw) }
func (c *NumberColumn) NormSize() int  { return len(c.normalized) }

func (c *NumberColumn) Min() float32 { return c.min }
func (c *NumberColumn) Max() float32 { return c.max }

// SetMinMax sets the derived min/max directly (used when restoring from
// persistence or when a caller wants to reuse previously computed bounds).
func (c *NumberColumn) SetMinMax(min, max float32) {
	c.min = min
	c.max = max
}

// AddValue appends a raw value (NaN is a valid "missing" sentinel).
func (c *NumberColumn) AddValue(v float32) {
	c.raw = append(c.raw, v)
}

// AddNormalizedValue appends a value directly into the normalised vector,
// bypassing raw storage. Used by GenerativeData ingestion, which only ever
// receives already-normalised values from the external generator.
func (c *NumberColumn) AddNormalizedValue(v float32) {
	c.normalized = append(c.normalized, v)
}

// RawValues exposes the raw vector for read (e.g. min/max derivation).
func (c *NumberColumn) RawValues() []float32 { return c.raw }

// NormalizedValues exposes the normalised vector for read.
func (c *NumberColumn) NormalizedValues() []float32 { return c.normalized }

// SetNormalizedValues replaces the entire normalised vector (used by
// normalisation and by the density engine, which fills then discards a raw
// vector in favour of the normalised one).
func (c *NumberColumn) SetNormalizedValues(v []float32) { c.normalized = v }

// SetRawValues replaces the entire raw vector.
func (c *NumberColumn) SetRawValues(v []float32) { c.raw = v }

// ClearRaw drops the raw vector only, keeping the normalised vector — the
// density column's lifecycle after normalisation (spec.md §3 "Density
// column").
func (c *NumberColumn) ClearRaw() { c.raw = nil }

func (c *NumberColumn) Clear() {
	c.min, c.max = 0, 0
	c.raw = nil
	c.normalized = nil
}

func (c *NumberColumn) NumberVec(i int) ([]float32, error) {
	if i < 0 || i >= len(c.raw) {
		return nil, ErrOutOfRange
	}
	return []float32{c.raw[i]}, nil
}

func (c *NumberColumn) NormalizedNumberVec(i int) ([]float32, error) {
	if i < 0 || i >= len(c.normalized) {
		return nil, ErrOutOfRange
	}
	return []float32{c.normalized[i]}, nil
}

func (c *NumberColumn) DenormalizedNumberVec(i int) ([]float32, error) {
	if i < 0 || i >= len(c.normalized) {
		return nil, ErrOutOfRange
	}
	return []float32{c.DenormalizeValue(c.normalized[i])}, nil
}

// NormalizeValue maps a raw value into [0, 1] per the column's scale,
// NaN-preserving (spec.md §4.1).
func (c *NumberColumn) NormalizeValue(x float32) float32 {
	if IsNA(x) {
		return x
	}
	switch c.scale {
	case Linear:
		if c.max-c.min > 0 {
			return (x - c.min) / (c.max - c.min)
		}
		if c.max > 0 {
			return 1
		}
		return 0
	case Logarithmic:
		if c.max-c.min > 0 {
			return float32(math.Log(float64(x-c.min+1)) / math.Log(float64(c.max-c.min+1)))
		}
		if c.max > 0 {
			return 1
		}
		return 0
	default:
		return x
	}
}

// DenormalizeValue is the inverse of NormalizeValue, NaN-preserving.
func (c *NumberColumn) DenormalizeValue(x float32) float32 {
	if IsNA(x) {
		return x
	}
	switch c.scale {
	case Linear:
		return c.min + (c.max-c.min)*x
	case Logarithmic:
		return c.min - 1 + float32(math.Exp(float64(x)*math.Log(float64(c.max-c.min+1))))
	default:
		return x
	}
}

// ComputeMinMax scans the raw vector ignoring NaNs; when nothing was seen it
// returns the spec-mandated default of max=1, min=0.
func (c *NumberColumn) ComputeMinMax() (min, max float32) {
	seen := false
	fmax := float32(math.Inf(-1))
	fmin := float32(math.Inf(1))
	for _, v := range c.raw {
		if IsNA(v) {
			continue
		}
		seen = true
		if v > fmax {
			fmax = v
		}
		if v < fmin {
			fmin = v
		}
	}
	if !seen {
		return 0, 1
	}
	return fmin, fmax
}

// Write serialises the column body: header, max, min, raw, normalized —
// per spec.md §6's NUMERICAL column body layout.
func (c *NumberColumn) Write(w io.Writer) error {
	if err := writeHeader(w, c.name, c.active, c.scale); err != nil {
		return err
	}
	if err := wire.WriteF32(w, c.max); err != nil {
		return err
	}
	if err := wire.WriteF32(w, c.min); err != nil {
		return err
	}
	if err := wire.WriteVecF32(w, c.raw); err != nil {
		return err
	}
	return wire.WriteVecF32(w, c.normalized)
}

// ReadNumberColumn deserialises a NUMERICAL column body written by Write.
func ReadNumberColumn(r io.Reader) (*NumberColumn, error) {
	name, active, scale, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	max, err := wire.ReadF32(r)
	if err != nil {
		return nil, err
	}
	min, err := wire.ReadF32(r)
	if err != nil {
		return nil, err
	}
	raw, err := wire.ReadVecF32(r)
	if err != nil {
		return nil, err
	}
	normalized, err := wire.ReadVecF32(r)
	if err != nil {
		return nil, err
	}
	return &NumberColumn{
		base:       base{typ: Numerical, scale: scale, name: name, active: active},
		raw:        raw,
		normalized: normalized,
		min:        min,
		max:        max,
	}, nil
}

// Summary is a diagnostic snapshot of a column's raw distribution. It is
// never consulted on the normalize/search hot path — callers reach for it
// from reporting tools, not from AddValue/NormalizeValue.
type Summary struct {
	Mean, StdDev float64
	Min, Max     float32
	Count        int
}

// Describe computes Mean/StdDev over the column's non-NaN raw values via
// gonum/stat, alongside the already-tracked Min/Max.
func (c *NumberColumn) Describe() Summary {
	values := make([]float64, 0, len(c.raw))
	for _, v := range c.raw {
		if IsNA(v) {
			continue
		}
		values = append(values, float64(v))
	}
	s := Summary{Min: c.min, Max: c.max, Count: len(values)}
	if len(values) == 0 {
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	return s
}
