// Package datasource implements the columnar store: an ordered list of
// typed columns sharing a row count, plus the derived density column and
// the row-assembly operations the rest of the engine builds on. Grounded on
// original_source/src/dataSource.h.
package datasource

import (
	"errors"
	"fmt"
	"io"
	mrand "math/rand"
	"strconv"
	"strings"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/randsrc"
	"github.com/cran/ganGenerativeData/pkg/wire"
)

const densityColumnName = "Densities"

// dataSourceTypeID is the DataSource record's leading type tag, per
// spec.md §6.
const dataSourceTypeID = "c46afa0e-51b6-4877-b4f4-53d909e34a7d"

const wireVersion = int32(1)

var (
	ErrColumnCountMismatch = errors.New("datasource: value row length does not match column count")
	ErrNotNormalized       = errors.New("datasource: data source has not been normalized")
	ErrInvalidIndex        = errors.New("datasource: index out of range")
	// ErrInvalidTypeID is returned when a serialized blob's leading type
	// tag does not match the record kind a Read call expects.
	ErrInvalidTypeID = errors.New("datasource: invalid type id")
)

// writeColumn writes a column's type tag followed by its body, dispatching
// on the closed set of concrete column variants.
func writeColumn(w io.Writer, c column.Column) error {
	if err := wire.WriteI32(w, int32(c.Type())); err != nil {
		return err
	}
	switch t := c.(type) {
	case *column.StringColumn:
		return t.Write(w)
	case *column.NumberColumn:
		return t.Write(w)
	case *column.NumberArrayColumn:
		return t.Write(w)
	default:
		return column.ErrInvalidColumnType
	}
}

// readColumn reads a column's type tag and dispatches to the matching body
// reader.
func readColumn(r io.Reader) (column.Column, error) {
	t, err := wire.ReadI32(r)
	if err != nil {
		return nil, err
	}
	switch column.Type(t) {
	case column.String:
		return column.ReadStringColumn(r)
	case column.Numerical:
		return column.ReadNumberColumn(r)
	case column.NumericalArray:
		return column.ReadNumberArrayColumn(r)
	default:
		return nil, column.ErrInvalidColumnType
	}
}

// ParseError is returned by AddValueRow when a cell cannot be parsed as a
// NUMERICAL value.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("datasource: value %q is not a valid number", e.Value)
}

// DataSource is an ordered set of columns sharing a row count, plus the
// density column the k-NN density engine fills in.
type DataSource struct {
	columns       []column.Column
	densityColumn *column.NumberColumn
	normalized    bool
	cache         [][]float32
	sampler       *mrand.Rand
}

// New creates an empty DataSource with one column per (type, name) pair.
func New(types []column.Type, names []string) (*DataSource, error) {
	ds := &DataSource{
		densityColumn: column.NewNumberColumn(densityColumnName, column.Logarithmic),
		sampler:       randsrc.Entropy(),
	}
	for i, t := range types {
		if err := ds.AddColumn(t, names[i]); err != nil {
			return nil, err
		}
	}
	return ds, nil
}

// AddColumn appends a new empty column. Only STRING and NUMERICAL are
// valid here; NUMERICAL_ARRAY columns are only ever created by materialising
// a STRING column into a GenerativeData.
func (ds *DataSource) AddColumn(t column.Type, name string) error {
	switch t {
	case column.String:
		ds.columns = append(ds.columns, column.NewStringColumn(name))
	case column.Numerical:
		ds.columns = append(ds.columns, column.NewNumberColumn(name, column.Linear))
	default:
		return column.ErrInvalidColumnType
	}
	return nil
}

// Columns exposes the column list for read and for consumers (normalize,
// engine) that need type-switch access.
func (ds *DataSource) Columns() []column.Column { return ds.columns }

func (ds *DataSource) DensityColumn() *column.NumberColumn { return ds.densityColumn }

func (ds *DataSource) Normalized() bool       { return ds.normalized }
func (ds *DataSource) SetNormalized(v bool)   { ds.normalized = v }

// Clear wipes every column's data and the row-vector cache, keeping column
// definitions (types, names, scales) intact.
func (ds *DataSource) Clear() {
	for _, c := range ds.columns {
		c.Clear()
	}
	ds.cache = nil
}

// Clone deep-copies STRING and NUMERICAL columns (GenerativeData's
// materialised NUMERICAL_ARRAY columns are never present on a plain
// DataSource). The clone is always unnormalised, mirroring the original
// copy constructor's explicit reset.
func (ds *DataSource) Clone() (*DataSource, error) {
	clone := &DataSource{
		densityColumn: column.NewNumberColumn(densityColumnName, column.Logarithmic),
		sampler:       randsrc.Entropy(),
	}
	for _, c := range ds.columns {
		switch t := c.(type) {
		case *column.StringColumn:
			clone.columns = append(clone.columns, t.Clone())
		case *column.NumberColumn:
			clone.columns = append(clone.columns, t.Clone())
		default:
			return nil, column.ErrInvalidColumnType
		}
	}
	clone.buildCache()
	return clone, nil
}

// GetFloatValue parses a single cell, treating the literal "NA" as missing.
func (ds *DataSource) GetFloatValue(s string) (float32, error) {
	if s == column.NA {
		return float32(nan()), nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
	if err != nil {
		return 0, &ParseError{Value: s}
	}
	return float32(v), nil
}

// AddValueRow appends one raw text row, one cell per column in order.
func (ds *DataSource) AddValueRow(values []string) error {
	if len(values) != len(ds.columns) {
		return ErrColumnCountMismatch
	}
	for i, v := range values {
		switch c := ds.columns[i].(type) {
		case *column.StringColumn:
			c.AddValue(v, true)
		case *column.NumberColumn:
			f, err := ds.GetFloatValue(v)
			if err != nil {
				return err
			}
			c.AddValue(f)
		default:
			return column.ErrInvalidColumnType
		}
	}
	return nil
}

// AddData appends rows from another DataSource with identical column
// layout. When indices is nil every row of other is appended; otherwise
// only the given row positions, in the given order. Only STRING and
// NUMERICAL columns are supported, matching the original's addData.
func (ds *DataSource) AddData(other *DataSource, indices []int) error {
	if len(other.columns) != len(ds.columns) {
		return ErrColumnCountMismatch
	}
	for i, c := range ds.columns {
		switch a := c.(type) {
		case *column.StringColumn:
			b, ok := other.columns[i].(*column.StringColumn)
			if !ok {
				return column.ErrInvalidColumnType
			}
			rows := indices
			if rows == nil {
				rows = sequence(b.RawSize())
			}
			for _, j := range rows {
				v, err := b.Value(j)
				if err != nil {
					return err
				}
				a.AddValue(v, false)
			}
		case *column.NumberColumn:
			b, ok := other.columns[i].(*column.NumberColumn)
			if !ok {
				return column.ErrInvalidColumnType
			}
			rows := indices
			if rows == nil {
				rows = sequence(b.RawSize())
			}
			raw := b.RawValues()
			for _, j := range rows {
				if j < 0 || j >= len(raw) {
					return ErrInvalidIndex
				}
				a.AddValue(raw[j])
			}
		default:
			return column.ErrInvalidColumnType
		}
	}
	return nil
}

func sequence(n int) []int {
	s := make([]int, n)
	for i := range s {
		s[i] = i
	}
	return s
}

// Dimension is the total width of the active-column feature vector.
func (ds *DataSource) Dimension() int {
	d := 0
	for _, c := range ds.columns {
		if c.Active() {
			d += c.Dimension()
		}
	}
	return d
}

// DimensionAt returns the dimension of the column at position i (active or
// not).
func (ds *DataSource) DimensionAt(i int) (int, error) {
	if i < 0 || i >= len(ds.columns) {
		return 0, ErrInvalidIndex
	}
	return ds.columns[i].Dimension(), nil
}

// Size is the row count, read off the first active column.
func (ds *DataSource) Size() int {
	for _, c := range ds.columns {
		if c.Active() {
			return c.RawSize()
		}
	}
	return 0
}

// NormalizedSize is the normalised row count; zero until Normalized.
func (ds *DataSource) NormalizedSize() int {
	if !ds.normalized {
		return 0
	}
	for _, c := range ds.columns {
		if c.Active() {
			return c.NormSize()
		}
	}
	return 0
}

func (ds *DataSource) assembleRow(get func(column.Column, int) ([]float32, error), i int) ([]float32, error) {
	var row []float32
	for _, c := range ds.columns {
		if !c.Active() {
			continue
		}
		v, err := get(c, i)
		if err != nil {
			return nil, err
		}
		row = append(row, v...)
	}
	return row, nil
}

func (ds *DataSource) NumberVector(i int) ([]float32, error) {
	return ds.assembleRow(column.Column.NumberVec, i)
}

func (ds *DataSource) NormalizedNumberVector(i int) ([]float32, error) {
	return ds.assembleRow(column.Column.NormalizedNumberVec, i)
}

func (ds *DataSource) DenormalizedNumberVector(i int) ([]float32, error) {
	return ds.assembleRow(column.Column.DenormalizedNumberVec, i)
}

func (ds *DataSource) Row(i int) ([]float32, error)             { return ds.NumberVector(i) }
func (ds *DataSource) NormalizedRow(i int) ([]float32, error)   { return ds.NormalizedNumberVector(i) }
func (ds *DataSource) DenormalizedRow(i int) ([]float32, error) { return ds.DenormalizedNumberVector(i) }

func (ds *DataSource) GetActiveColumnNames() []string {
	var names []string
	for _, c := range ds.columns {
		if c.Active() {
			names = append(names, c.Name())
		}
	}
	return names
}

func (ds *DataSource) GetInactiveColumnNames() []string {
	var names []string
	for _, c := range ds.columns {
		if !c.Active() {
			names = append(names, c.Name())
		}
	}
	return names
}

// GetColumnIndex maps a position in the assembled feature vector back to
// its owning column's index in Columns().
func (ds *DataSource) GetColumnIndex(numberVectorIndex int) (int, error) {
	dim := ds.Dimension()
	if numberVectorIndex < 0 || numberVectorIndex >= dim {
		return 0, ErrInvalidIndex
	}
	j := 0
	for i, c := range ds.columns {
		if !c.Active() {
			continue
		}
		if numberVectorIndex < j+c.Dimension() {
			return i, nil
		}
		j += c.Dimension()
	}
	return 0, ErrInvalidIndex
}

// GetNumberVectorIndexName names a feature-vector position as
// "<column>.<slot>" for NUMERICAL_ARRAY columns, or just "<column>" for a
// scalar NUMERICAL column.
func (ds *DataSource) GetNumberVectorIndexName(numberVectorIndex int) (string, error) {
	dim := ds.Dimension()
	if numberVectorIndex < 0 || numberVectorIndex >= dim {
		return "", ErrInvalidIndex
	}
	j := 0
	var idx int
	found := false
	for i, c := range ds.columns {
		if !c.Active() {
			continue
		}
		if numberVectorIndex < j+c.Dimension() {
			idx = i
			found = true
			break
		}
		j += c.Dimension()
	}
	if !found {
		return "", ErrInvalidIndex
	}

	c := ds.columns[idx]
	name := c.Name()
	switch t := c.(type) {
	case *column.NumberColumn:
		return name, nil
	case *column.NumberArrayColumn:
		k := numberVectorIndex - j
		if k < 0 || k >= len(t.Columns()) {
			return "", ErrInvalidIndex
		}
		return name + "." + t.Columns()[k].Name(), nil
	default:
		return "", column.ErrInvalidColumnType
	}
}

func (ds *DataSource) GetColumnNames(indices []int) ([]string, error) {
	names := make([]string, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= len(ds.columns) {
			return nil, ErrInvalidIndex
		}
		names[i] = ds.columns[idx].Name()
	}
	return names, nil
}

func (ds *DataSource) SetColumnActive(i int, active bool) error {
	if i < 0 || i >= len(ds.columns) {
		return ErrInvalidIndex
	}
	ds.columns[i].SetActive(active)
	return nil
}

func (ds *DataSource) SetColumnsActive(indices []int, active bool) error {
	for _, i := range indices {
		if err := ds.SetColumnActive(i, active); err != nil {
			return err
		}
	}
	return nil
}

// GetDataRandom draws rowCount rows (with replacement) from the raw
// feature vectors and concatenates them.
func (ds *DataSource) GetDataRandom(rowCount int) ([]float32, error) {
	var out []float32
	n := ds.Size()
	if n == 0 {
		return out, nil
	}
	for i := 0; i < rowCount; i++ {
		row, err := ds.Row(ds.sampler.Intn(n))
		if err != nil {
			return nil, err
		}
		out = append(out, row...)
	}
	return out, nil
}

// GetNormalizedDataRandom draws rowCount normalised rows with replacement.
func (ds *DataSource) GetNormalizedDataRandom(rowCount int) ([]float32, error) {
	if !ds.normalized {
		return nil, ErrNotNormalized
	}
	var out []float32
	n := ds.NormalizedSize()
	if n == 0 {
		return out, nil
	}
	for i := 0; i < rowCount; i++ {
		row, err := ds.NormalizedRow(ds.sampler.Intn(n))
		if err != nil {
			return nil, err
		}
		out = append(out, row...)
	}
	return out, nil
}

// AllNormalizedRows concatenates every normalised row in row order (not a
// random sample) into one flat vector, the shape GenerativeData's
// AddNormalizedRows expects when seeding it with the full, already-
// normalised data set rather than a GAN-style percentage sample.
func (ds *DataSource) AllNormalizedRows() ([]float32, error) {
	if !ds.normalized {
		return nil, ErrNotNormalized
	}
	n := ds.NormalizedSize()
	var out []float32
	for i := 0; i < n; i++ {
		row, err := ds.NormalizedRow(i)
		if err != nil {
			return nil, err
		}
		out = append(out, row...)
	}
	return out, nil
}

// GetNormalizedDataRandomPercent is GetNormalizedDataRandom sized as a
// percentage of the normalised row count, rounded down, at least one row
// when the source is non-empty.
func (ds *DataSource) GetNormalizedDataRandomPercent(percent float32) ([]float32, error) {
	n := ds.NormalizedSize()
	rowCount := int(percent / 100 * float32(n))
	if rowCount < 1 && n > 0 {
		rowCount = 1
	}
	return ds.GetNormalizedDataRandom(rowCount)
}

// GetNormalizedDataRandomPercentWithDensities is the percent-based sampler
// with each row's density value appended after its feature vector, for
// callers that want to inspect the density distribution of a sample
// without a second pass over the index.
func (ds *DataSource) GetNormalizedDataRandomPercentWithDensities(percent float32) ([]float32, error) {
	if !ds.normalized {
		return nil, ErrNotNormalized
	}
	n := ds.NormalizedSize()
	rowCount := int(percent / 100 * float32(n))
	if rowCount < 1 && n > 0 {
		rowCount = 1
	}
	densities := ds.densityColumn.NormalizedValues()
	var out []float32
	for i := 0; i < rowCount; i++ {
		idx := ds.sampler.Intn(n)
		row, err := ds.NormalizedRow(idx)
		if err != nil {
			return nil, err
		}
		out = append(out, row...)
		if idx < len(densities) {
			out = append(out, densities[idx])
		} else {
			out = append(out, float32(nan()))
		}
	}
	return out, nil
}

// BuildNormalizedNumberVectorVector (re)builds the per-row normalised
// feature vector cache vptree search reads from; call after Normalize.
func (ds *DataSource) buildCache() {
	n := ds.NormalizedSize()
	ds.cache = make([][]float32, n)
	for i := 0; i < n; i++ {
		row, err := ds.NormalizedRow(i)
		if err != nil {
			row = nil
		}
		ds.cache[i] = row
	}
}

func (ds *DataSource) BuildNormalizedNumberVectorVector() { ds.buildCache() }

// NormalizedNumberVectorRef returns the cached row, panicking-free: an
// out-of-range i yields nil, matching vptree.Data's no-error contract.
func (ds *DataSource) NormalizedNumberVectorRef(i int) []float32 {
	if i < 0 || i >= len(ds.cache) {
		return nil
	}
	return ds.cache[i]
}

// Adapter implements vptree.Data over this DataSource's normalised cache.
type Adapter struct{ DS *DataSource }

func (a Adapter) NumberVector(i int) []float32 { return a.DS.NormalizedNumberVectorRef(i) }
func (a Adapter) Size() int                    { return len(a.DS.cache) }

// Write serialises the DataSource record: type_id, version, normalized,
// columns, density column — per spec.md §6.
func (ds *DataSource) Write(w io.Writer) error {
	if err := wire.WriteString(w, dataSourceTypeID); err != nil {
		return err
	}
	if err := wire.WriteI32(w, wireVersion); err != nil {
		return err
	}
	if err := wire.WriteBool(w, ds.normalized); err != nil {
		return err
	}
	if err := wire.WriteI32(w, int32(len(ds.columns))); err != nil {
		return err
	}
	for _, c := range ds.columns {
		if err := writeColumn(w, c); err != nil {
			return err
		}
	}
	if err := wire.WriteI32(w, int32(column.Numerical)); err != nil {
		return err
	}
	return ds.densityColumn.Write(w)
}

// Read replaces ds's contents with a DataSource record deserialised from r.
func (ds *DataSource) Read(r io.Reader) error {
	gotID, err := wire.ReadString(r)
	if err != nil {
		return err
	}
	if gotID != dataSourceTypeID {
		return ErrInvalidTypeID
	}
	if _, err := wire.ReadI32(r); err != nil { // version, unused for now
		return err
	}
	normalized, err := wire.ReadBool(r)
	if err != nil {
		return err
	}
	n, err := wire.ReadI32(r)
	if err != nil {
		return err
	}
	columns := make([]column.Column, n)
	for i := range columns {
		if columns[i], err = readColumn(r); err != nil {
			return err
		}
	}
	if _, err := wire.ReadI32(r); err != nil { // density column's type tag, always NUMERICAL
		return err
	}
	densityColumn, err := column.ReadNumberColumn(r)
	if err != nil {
		return err
	}

	ds.columns = columns
	ds.densityColumn = densityColumn
	ds.normalized = normalized
	ds.cache = nil
	if ds.sampler == nil {
		ds.sampler = randsrc.Entropy()
	}
	return nil
}

func nan() float64 {
	var zero float64
	return zero / zero
}
