package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/normalize"
)

type fakeSource struct {
	cols       []column.Column
	normalized bool
}

func (f *fakeSource) Columns() []column.Column { return f.cols }
func (f *fakeSource) SetNormalized(v bool)     { f.normalized = v }

func TestNormalizeFillsNormalizedVector(t *testing.T) {
	c := column.NewNumberColumn("x", column.Linear)
	c.AddValue(0)
	c.AddValue(5)
	c.AddValue(10)
	src := &fakeSource{cols: []column.Column{c}}

	require.NoError(t, normalize.Normalize(src, true))
	require.True(t, src.normalized)
	require.Equal(t, []float32{0, 0.5, 1}, c.NormalizedValues())
}

func TestNormalizeLeavesActiveStringColumnUntouched(t *testing.T) {
	s := column.NewStringColumn("name")
	s.AddValue("a", true)
	src := &fakeSource{cols: []column.Column{s}}

	err := normalize.Normalize(src, true)
	require.NoError(t, err)
	require.True(t, src.normalized)
}

func TestNormalizeSkipsInactiveColumns(t *testing.T) {
	c := column.NewNumberColumn("x", column.Linear)
	c.AddValue(1)
	c.SetActive(false)
	src := &fakeSource{cols: []column.Column{c}}

	require.NoError(t, normalize.Normalize(src, true))
	require.Empty(t, c.NormalizedValues())
}

func TestNormalizedNumberClampsWhenLimited(t *testing.T) {
	c := column.NewNumberColumn("x", column.Linear)
	c.SetMinMax(0, 10)

	require.Equal(t, float32(1), normalize.NormalizedNumber(c, 100, true))
	require.Equal(t, float32(0), normalize.NormalizedNumber(c, -5, true))
}

func TestNormalizedNumberVector(t *testing.T) {
	c := column.NewNumberColumn("x", column.Linear)
	c.SetMinMax(0, 10)
	arr := column.NewNumberArrayColumn("color", 2)
	arr.SetColumnNames([]string{"red", "blue"})
	cols := []column.Column{c, arr}

	out, err := normalize.NormalizedNumberVector(cols, []float32{5, 0, 1})
	require.NoError(t, err)
	require.Equal(t, []float32{0.5, 0, 1}, out)
}

func TestNormalizedNumberVectorSkipsInactive(t *testing.T) {
	c := column.NewNumberColumn("x", column.Linear)
	c.SetMinMax(0, 10)
	c.SetActive(false)
	cols := []column.Column{c}

	out, err := normalize.NormalizedNumberVector(cols, []float32{5})
	require.NoError(t, err)
	require.Empty(t, out)
}
