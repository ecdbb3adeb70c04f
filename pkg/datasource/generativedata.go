package datasource

import (
	"errors"
	"io"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/randsrc"
	"github.com/cran/ganGenerativeData/pkg/wire"
)

// ErrVectorSize is returned when a flat value vector's length is not a
// multiple of the generative data's dimension.
var ErrVectorSize = errors.New("datasource: value vector length is not a multiple of the dimension")

// generativeDataTypeID is the GenerativeData record's leading type tag,
// per spec.md §6.
const generativeDataTypeID = "15e02d71-de25-4e2f-8b79-d9e1d7c4a5ed"

// GenerativeData is a DataSource materialised for training and generation:
// every STRING column has been expanded into a NUMERICAL_ARRAY one-hot, and
// every value arriving through AddNormalizedRow is already in normalised
// form (it comes from an external generator, not from raw text).
// Grounded on original_source/src/generativeData.h.
type GenerativeData struct {
	DataSource
}

// NewGenerativeData materialises a normalised DataSource: active STRING
// columns become NUMERICAL_ARRAY one-hots (named after their known
// values), active NUMERICAL columns are cloned with their name, scale and
// min/max but without rows, and the density column is cloned too. The
// result holds no rows until AddNormalizedRow(s) fills it. The source must
// already be normalised NOMINAL-only for its STRING columns, matching the
// original's scale-type check.
func NewGenerativeData(ds *DataSource) (*GenerativeData, error) {
	gd := &GenerativeData{
		DataSource: DataSource{
			densityColumn: ds.densityColumn.Clone(),
			normalized:    true,
		},
	}
	gd.sampler = ds.sampler

	for _, c := range ds.columns {
		if !c.Active() {
			continue
		}
		switch t := c.(type) {
		case *column.StringColumn:
			if t.ScaleType() != column.Nominal {
				return nil, column.ErrInvalidScaleType
			}
			names := make([]string, 0, len(t.InverseValueMap()))
			for id := int32(1); id <= int32(len(t.InverseValueMap())); id++ {
				names = append(names, t.InverseValueMap()[id])
			}
			nac := column.NewNumberArrayColumn(t.Name(), len(names))
			nac.SetColumnNames(names)
			gd.columns = append(gd.columns, nac)
		case *column.NumberColumn:
			nc := t.Clone()
			nc.SetRawValues(nil)
			nc.SetNormalizedValues(nil)
			gd.columns = append(gd.columns, nc)
		default:
			return nil, column.ErrInvalidColumnType
		}
	}
	return gd, nil
}

// AddNormalizedRow appends one row of already-normalised values, offset
// dimensions into valueVector, routing each column's slice to
// NumberColumn.AddNormalizedValue or NumberArrayColumn.AddNormalizedValue.
func (gd *GenerativeData) AddNormalizedRow(valueVector []float32, offset int) error {
	index := offset
	for _, c := range gd.columns {
		switch t := c.(type) {
		case *column.NumberColumn:
			t.AddNormalizedValue(valueVector[index])
			index += t.Dimension()
		case *column.NumberArrayColumn:
			t.AddNormalizedValue(valueVector, index)
			index += t.Dimension()
		default:
			return column.ErrInvalidColumnType
		}
	}
	if index-offset != gd.Dimension() {
		return ErrInvalidIndex
	}
	return nil
}

// AddNormalizedRows splits a flat vector into consecutive Dimension()-sized
// rows and appends each in turn.
func (gd *GenerativeData) AddNormalizedRows(valueVector []float32) error {
	dim := gd.Dimension()
	if dim == 0 || len(valueVector)%dim != 0 {
		return ErrVectorSize
	}
	for i := 0; i < len(valueVector)/dim; i++ {
		if err := gd.AddNormalizedRow(valueVector, i*dim); err != nil {
			return err
		}
	}
	return nil
}

// Write serialises the GenerativeData record: same body as DataSource.Write,
// under its own type tag, per spec.md §6. Only NUMERICAL and NUMERICAL_ARRAY
// columns are legal.
func (gd *GenerativeData) Write(w io.Writer) error {
	if err := wire.WriteString(w, generativeDataTypeID); err != nil {
		return err
	}
	if err := wire.WriteI32(w, wireVersion); err != nil {
		return err
	}
	if err := wire.WriteBool(w, gd.normalized); err != nil {
		return err
	}
	if err := wire.WriteI32(w, int32(len(gd.columns))); err != nil {
		return err
	}
	for _, c := range gd.columns {
		if c.Type() == column.String {
			return column.ErrInvalidColumnType
		}
		if err := writeColumn(w, c); err != nil {
			return err
		}
	}
	if err := wire.WriteI32(w, int32(column.Numerical)); err != nil {
		return err
	}
	return gd.densityColumn.Write(w)
}

// Read replaces gd's contents with a GenerativeData record deserialised
// from r.
func (gd *GenerativeData) Read(r io.Reader) error {
	gotID, err := wire.ReadString(r)
	if err != nil {
		return err
	}
	if gotID != generativeDataTypeID {
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
		c, err := readColumn(r)
		if err != nil {
			return err
		}
		if c.Type() == column.String {
			return column.ErrInvalidColumnType
		}
		columns[i] = c
	}
	if _, err := wire.ReadI32(r); err != nil { // density column's type tag, always NUMERICAL
		return err
	}
	densityColumn, err := column.ReadNumberColumn(r)
	if err != nil {
		return err
	}

	gd.columns = columns
	gd.densityColumn = densityColumn
	gd.normalized = normalized
	gd.cache = nil
	if gd.sampler == nil {
		gd.sampler = randsrc.Entropy()
	}
	return nil
}
