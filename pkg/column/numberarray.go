package column

import (
	"io"

	"github.com/cran/ganGenerativeData/pkg/wire"
)

// NumberArrayColumn bundles a fixed-arity set of BINARY NumberColumns under
// named slots, materialising a StringColumn's one-hot encoding into its own
// addressable column family. Grounded on
// original_source/src/numberArrayColumn.h.
type NumberArrayColumn struct {
	base
	columns  []*NumberColumn
	slotName map[string]int
}

// NewNumberArrayColumn creates a NUMERICAL_ARRAY column with size slots, all
// BINARY-scaled NumberColumns.
func NewNumberArrayColumn(name string, size int) *NumberArrayColumn {
	cols := make([]*NumberColumn, size)
	for i := range cols {
		cols[i] = NewNumberColumn("", Binary)
	}
	return &NumberArrayColumn{
		base:     base{typ: NumericalArray, scale: Binary, name: name, active: true},
		columns:  cols,
		slotName: make(map[string]int),
	}
}

// SetColumnNames assigns a slot name to each bundled column and rebuilds the
// name -> slot index lookup used by GetNormalizedNumberVectorForValue.
func (c *NumberArrayColumn) SetColumnNames(names []string) {
	for i, n := range names {
		if i >= len(c.columns) {
			break
		}
		c.columns[i].SetName(n)
	}
	c.rebuildSlotNames()
}

func (c *NumberArrayColumn) rebuildSlotNames() {
	c.slotName = make(map[string]int, len(c.columns))
	for i, col := range c.columns {
		c.slotName[col.Name()] = i
	}
}

func (c *NumberArrayColumn) Columns() []*NumberColumn { return c.columns }

func (c *NumberArrayColumn) Dimension() int { return len(c.columns) }

func (c *NumberArrayColumn) RawSize() int {
	if len(c.columns) == 0 {
		return 0
	}
	return c.columns[0].RawSize()
}

func (c *NumberArrayColumn) NormSize() int {
	if len(c.columns) == 0 {
		return 0
	}
	return c.columns[0].NormSize()
}

func (c *NumberArrayColumn) Clear() {
	for _, col := range c.columns {
		col.Clear()
	}
}

// AddValue appends one raw row of the bundle, reading size values from
// valueVector starting at offset.
func (c *NumberArrayColumn) AddValue(valueVector []float32, offset int) {
	for i, col := range c.columns {
		col.AddValue(valueVector[offset+i])
	}
}

// AddNormalizedValue appends one normalised row of the bundle.
func (c *NumberArrayColumn) AddNormalizedValue(valueVector []float32, offset int) {
	for i, col := range c.columns {
		col.AddNormalizedValue(valueVector[offset+i])
	}
}

func (c *NumberArrayColumn) NumberVec(i int) ([]float32, error) {
	vec := make([]float32, len(c.columns))
	for j, col := range c.columns {
		v, err := col.NumberVec(i)
		if err != nil {
			return nil, err
		}
		vec[j] = v[0]
	}
	return vec, nil
}

func (c *NumberArrayColumn) NormalizedNumberVec(i int) ([]float32, error) {
	vec := make([]float32, len(c.columns))
	for j, col := range c.columns {
		v, err := col.NormalizedNumberVec(i)
		if err != nil {
			return nil, err
		}
		vec[j] = v[0]
	}
	return vec, nil
}

// DenormalizedNumberVec mirrors NormalizedNumberVec: a BINARY bundle has no
// further denormalisation to apply.
func (c *NumberArrayColumn) DenormalizedNumberVec(i int) ([]float32, error) {
	return c.NormalizedNumberVec(i)
}

// GetMaxValue returns the slot name whose normalised value at row i is both
// the row's maximum and at least 0.5, or NA when no slot qualifies.
func (c *NumberArrayColumn) GetMaxValue(i int) (string, error) {
	vec, err := c.NormalizedNumberVec(i)
	if err != nil {
		return "", err
	}
	return c.GetMaxValueFromVector(vec), nil
}

// GetMaxValueFromVector is the vector-only variant of GetMaxValue, used when
// the caller already holds the row (e.g. during record completion).
func (c *NumberArrayColumn) GetMaxValueFromVector(vec []float32) string {
	max := float32(0)
	index := -1
	for j, v := range vec {
		if v > max {
			max = v
			index = j
		}
	}
	if index != -1 && max >= 0.5 {
		return c.columns[index].Name()
	}
	return NA
}

// GetNormalizedNumberVectorForValue builds a one-hot row for the given slot
// name, all zero when the name is unknown.
func (c *NumberArrayColumn) GetNormalizedNumberVectorForValue(value string) []float32 {
	vec := make([]float32, len(c.columns))
	if idx, ok := c.slotName[value]; ok {
		vec[idx] = 1
	}
	return vec
}

// Write serialises the column body: header, value_map (slot name -> index),
// column_count, then each bundled NumberColumn — per spec.md §6's
// NUMERICAL_ARRAY column body layout.
func (c *NumberArrayColumn) Write(w io.Writer) error {
	if err := writeHeader(w, c.name, c.active, c.scale); err != nil {
		return err
	}
	slotMap := make(map[string]int32, len(c.slotName))
	for name, idx := range c.slotName {
		slotMap[name] = int32(idx)
	}
	if err := wire.WriteStringMap(w, slotMap); err != nil {
		return err
	}
	if err := wire.WriteI32(w, int32(len(c.columns))); err != nil {
		return err
	}
	for _, col := range c.columns {
		if err := col.Write(w); err != nil {
			return err
		}
	}
	return nil
}

// ReadNumberArrayColumn deserialises a NUMERICAL_ARRAY column body written
// by Write, rebuilding the slot-name lookup from the decoded value map.
func ReadNumberArrayColumn(r io.Reader) (*NumberArrayColumn, error) {
	name, active, scale, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	slotMap, err := wire.ReadStringMap(r)
	if err != nil {
		return nil, err
	}
	n, err := wire.ReadI32(r)
	if err != nil {
		return nil, err
	}
	columns := make([]*NumberColumn, n)
	for i := range columns {
		columns[i], err = ReadNumberColumn(r)
		if err != nil {
			return nil, err
		}
	}
	slotName := make(map[string]int, len(slotMap))
	for k, v := range slotMap {
		slotName[k] = int(v)
	}
	return &NumberArrayColumn{
		base:     base{typ: NumericalArray, scale: scale, name: name, active: active},
		columns:  columns,
		slotName: slotName,
	}, nil
}
