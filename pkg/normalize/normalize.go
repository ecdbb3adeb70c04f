// Package normalize implements the column normalisation pass: deriving (or
// reusing) each active NUMERICAL column's min/max and filling its
// normalised vector. Grounded on original_source/src/normalizeData.h.
package normalize

import (
	"errors"

	"github.com/cran/ganGenerativeData/pkg/column"
)

// ErrActiveStringColumn is returned by NormalizedNumberVector when an active
// column is STRING: a single query row can only be normalised against
// NUMERICAL and NUMERICAL_ARRAY columns, so string columns must first be
// materialised into a NUMERICAL_ARRAY one-hot (via GenerativeData).
var ErrActiveStringColumn = errors.New("normalize: active STRING column must be materialised before normalization")

// Source is the minimal surface normalize needs from a DataSource: the
// active column list and a way to mark the result normalised.
type Source interface {
	Columns() []column.Column
	SetNormalized(bool)
}

// Normalize fills the normalised vector of every active NUMERICAL column in
// source. When calculateMinMax is true each column's min/max is
// recomputed from its raw values first; otherwise the column's existing
// min/max (e.g. restored from a prior run) is reused as-is. Active STRING
// columns are left untouched: their one-hot vector is already their
// normalised form.
func Normalize(source Source, calculateMinMax bool) error {
	for _, col := range source.Columns() {
		if !col.Active() {
			continue
		}
		switch col.Type() {
		case column.Numerical:
			nc := col.(*column.NumberColumn)
			if err := NormalizeColumn(nc, calculateMinMax); err != nil {
				return err
			}
		case column.String:
			continue
		default:
			return column.ErrInvalidColumnType
		}
	}
	source.SetNormalized(true)
	return nil
}

// NormalizeColumn normalises a single NUMERICAL column in place. It is also
// used directly by the density engine to normalise the derived density
// column outside of a full DataSource pass.
func NormalizeColumn(nc *column.NumberColumn, calculateMinMax bool) error {
	if calculateMinMax {
		min, max := nc.ComputeMinMax()
		nc.SetMinMax(min, max)
	}

	raw := nc.RawValues()
	normalized := make([]float32, len(raw))
	for i, v := range raw {
		normalized[i] = nc.NormalizeValue(v)
	}
	nc.SetNormalizedValues(normalized)
	return nil
}

// NormalizedNumber normalises a single scalar against a column's existing
// min/max. When limit is true, x is clamped into [min, max] first, so a
// value seen outside the training range (e.g. a freshly measured density)
// still maps into a sane [0, 1] output instead of extrapolating past it.
func NormalizedNumber(nc *column.NumberColumn, x float32, limit bool) float32 {
	if limit {
		if x < nc.Min() {
			x = nc.Min()
		}
		if x > nc.Max() {
			x = nc.Max()
		}
	}
	return nc.NormalizeValue(x)
}

// NormalizedNumberVector normalises one raw feature row against columns'
// already-established min/max, without mutating or appending to the
// columns. NumberColumn slots apply NormalizeValue; NumberArrayColumn slots
// pass through unchanged (a BINARY one-hot has no further normalisation).
// Used to prepare a single new/query row for density lookup or nearest-
// neighbor search, as opposed to Normalize which bulk-normalises stored
// rows.
func NormalizedNumberVector(columns []column.Column, raw []float32) ([]float32, error) {
	out := make([]float32, 0, len(raw))
	offset := 0
	for _, col := range columns {
		if !col.Active() {
			continue
		}
		width := col.Dimension()
		if offset+width > len(raw) {
			return nil, column.ErrOutOfRange
		}
		switch c := col.(type) {
		case *column.NumberColumn:
			out = append(out, c.NormalizeValue(raw[offset]))
		case *column.NumberArrayColumn:
			out = append(out, raw[offset:offset+width]...)
		default:
			return nil, ErrActiveStringColumn
		}
		offset += width
	}
	return out, nil
}
