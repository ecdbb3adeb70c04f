package column

import (
	"io"
	mrand "math/rand"

	"github.com/cran/ganGenerativeData/pkg/randsrc"
	"github.com/cran/ganGenerativeData/pkg/wire"
)

// StringColumn holds a NOMINAL STRING column: a value -> id (1..K) map in
// insertion order, its inverse, and a vector of ids (0 means "unknown").
// Grounded on original_source/src/stringColumn.h.
type StringColumn struct {
	base
	valueMap  map[string]int32
	inverse   map[int32]string
	ids       []int32
	substRand *mrand.Rand // lazy, entropy-seeded NOMINAL substitution stream
}

// NewStringColumn creates an empty NOMINAL STRING column.
func NewStringColumn(name string) *StringColumn {
	return &StringColumn{
		base:     base{typ: String, scale: Nominal, name: name, active: true},
		valueMap: make(map[string]int32),
		inverse:  make(map[int32]string),
	}
}

// Clone deep-copies the value map, its inverse and the id vector, matching
// the original's StringColumn copy constructor field-for-field.
func (c *StringColumn) Clone() *StringColumn {
	vm := make(map[string]int32, len(c.valueMap))
	for k, v := range c.valueMap {
		vm[k] = v
	}
	inv := make(map[int32]string, len(c.inverse))
	for k, v := range c.inverse {
		inv[k] = v
	}
	ids := make([]int32, len(c.ids))
	copy(ids, c.ids)
	return &StringColumn{
		base:     c.base,
		valueMap: vm,
		inverse:  inv,
		ids:      ids,
	}
}

func (c *StringColumn) Dimension() int  { return len(c.valueMap) }
func (c *StringColumn) RawSize() int    { return len(c.ids) }
func (c *StringColumn) NormSize() int   { return len(c.ids) }

func (c *StringColumn) Clear() {
	c.ids = nil
}

// AddValue records a value, assigning it a new id if unseen and addNewValue
// is true; otherwise unseen values get id 0 ("unknown").
func (c *StringColumn) AddValue(value string, addNewValue bool) {
	var n int32
	if id, ok := c.valueMap[value]; ok {
		n = id
	} else if addNewValue {
		n = int32(len(c.valueMap)) + 1
		c.valueMap[value] = n
		c.inverse[n] = value
	} else {
		n = 0
	}
	c.ids = append(c.ids, n)
}

// Value returns the string recorded for row i ("" for id 0).
func (c *StringColumn) Value(i int) (string, error) {
	if i < 0 || i >= len(c.ids) {
		return "", ErrOutOfRange
	}
	if c.ids[i] == 0 {
		return "", nil
	}
	v, ok := c.inverse[c.ids[i]]
	if !ok {
		return "", ErrOutOfRange
	}
	return v, nil
}

func (c *StringColumn) ValueMap() map[string]int32  { return c.valueMap }
func (c *StringColumn) InverseValueMap() map[int32]string { return c.inverse }

func (c *StringColumn) NumberVec(i int) ([]float32, error) {
	if i < 0 || i >= len(c.ids) {
		return nil, ErrOutOfRange
	}
	vec := make([]float32, len(c.valueMap))
	if c.ids[i] > 0 {
		vec[c.ids[i]-1] = 1
	}
	return vec, nil
}

// NormalizedNumberVec substitutes a uniformly random slot for id = 0, to
// avoid sparse-zero artefacts; the random choice is lazy and re-drawn on
// every call, matching the original's per-call uniform_int_distribution
// draw.
func (c *StringColumn) NormalizedNumberVec(i int) ([]float32, error) {
	if i < 0 || i >= len(c.ids) {
		return nil, ErrOutOfRange
	}
	vec := make([]float32, len(c.valueMap))
	if len(vec) == 0 {
		return vec, nil
	}
	idx := int(c.ids[i]) - 1
	if c.ids[i] == 0 {
		if c.substRand == nil {
			c.substRand = randsrc.Entropy()
		}
		idx = c.substRand.Intn(len(vec))
	}
	vec[idx] = 1
	return vec, nil
}

// DenormalizedNumberVec has no random-substitution semantics: it is the
// plain one-hot (all zeros for id 0), matching how a completed/denormalised
// record should report "no value" rather than a random guess.
func (c *StringColumn) DenormalizedNumberVec(i int) ([]float32, error) {
	return c.NumberVec(i)
}

// Write serialises the column body: header, value_map, inverse_value_map,
// ids — per spec.md §6's STRING column body layout.
func (c *StringColumn) Write(w io.Writer) error {
	if err := writeHeader(w, c.name, c.active, c.scale); err != nil {
		return err
	}
	if err := wire.WriteStringMap(w, c.valueMap); err != nil {
		return err
	}
	if err := wire.WriteIntStringMap(w, c.inverse); err != nil {
		return err
	}
	return wire.WriteVecI32(w, c.ids)
}

// ReadStringColumn deserialises a STRING column body written by Write.
func ReadStringColumn(r io.Reader) (*StringColumn, error) {
	name, active, scale, err := readHeader(r)
	if err != nil {
		return nil, err
	}
	valueMap, err := wire.ReadStringMap(r)
	if err != nil {
		return nil, err
	}
	inverse, err := wire.ReadIntStringMap(r)
	if err != nil {
		return nil, err
	}
	ids, err := wire.ReadVecI32(r)
	if err != nil {
		return nil, err
	}
	return &StringColumn{
		base:     base{typ: String, scale: scale, name: name, active: active},
		valueMap: valueMap,
		inverse:  inverse,
		ids:      ids,
	}, nil
}
