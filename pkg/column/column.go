// Package column implements the columnar store's typed column family:
// NumberColumn (NUMERICAL), StringColumn (STRING/NOMINAL) and
// NumberArrayColumn (NUMERICAL_ARRAY). The three variants are a closed set
// dispatching on Type(), following the teacher's pattern of small focused
// per-concern files under one package (pkg/index/flat.go, hnsw.go in
// liliang-cn/sqvect) rather than a base-class hierarchy.
package column

import (
	"errors"
	"io"
	"math"

	"github.com/cran/ganGenerativeData/pkg/wire"
)

// Type identifies which of the three closed column variants a Column is.
type Type int

const (
	String Type = iota
	Numerical
	NumericalArray
)

// Scale identifies the per-column normalisation rule.
type Scale int

const (
	Linear Scale = iota
	Logarithmic
	Binary
	Nominal
)

// NA is the sentinel token meaning "missing" in cell text and NUMERICAL_ARRAY
// slot lookups.
const NA = "NA"

var (
	// ErrOutOfRange is returned when a row index falls outside a column's
	// raw or normalised range.
	ErrOutOfRange = errors.New("index out of range")
	// ErrInvalidScaleType is returned when an operation is attempted
	// against a column whose scale type does not support it.
	ErrInvalidScaleType = errors.New("invalid scale type")
	// ErrInvalidColumnType is returned when an operation encounters a
	// column variant the path does not support.
	ErrInvalidColumnType = errors.New("invalid column type")
)

// Column is the polymorphic contract shared by all three variants.
type Column interface {
	Type() Type
	ScaleType() Scale
	Name() string
	SetName(name string)
	Active() bool
	SetActive(active bool)

	Dimension() int
	RawSize() int
	NormSize() int

	NumberVec(i int) ([]float32, error)
	NormalizedNumberVec(i int) ([]float32, error)
	DenormalizedNumberVec(i int) ([]float32, error)

	Clear()
}

// base holds the fields common to every column variant (Column's
// non-virtual header in the original design).
type base struct {
	typ      Type
	scale    Scale
	name     string
	active   bool
}

func (b *base) Type() Type        { return b.typ }
func (b *base) ScaleType() Scale  { return b.scale }
func (b *base) Name() string      { return b.name }
func (b *base) SetName(n string)  { b.name = n }
func (b *base) Active() bool      { return b.active }
func (b *base) SetActive(a bool)  { b.active = a }

// IsNA reports whether f is the "missing" sentinel (NaN).
func IsNA(f float32) bool {
	return math.IsNaN(float64(f))
}

// writeHeader writes a column body's common header: name, active, scale.
func writeHeader(w io.Writer, name string, active bool, scale Scale) error {
	if err := wire.WriteWString(w, name); err != nil {
		return err
	}
	if err := wire.WriteBool(w, active); err != nil {
		return err
	}
	return wire.WriteI32(w, int32(scale))
}

// readHeader reads a column body's common header.
func readHeader(r io.Reader) (name string, active bool, scale Scale, err error) {
	if name, err = wire.ReadWString(r); err != nil {
		return
	}
	if active, err = wire.ReadBool(r); err != nil {
		return
	}
	var s int32
	if s, err = wire.ReadI32(r); err != nil {
		return
	}
	scale = Scale(s)
	return
}
