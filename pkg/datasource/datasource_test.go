package datasource_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/normalize"
)

func newFixture(t *testing.T) *datasource.DataSource {
	t.Helper()
	ds, err := datasource.New(
		[]column.Type{column.Numerical, column.String},
		[]string{"age", "color"},
	)
	require.NoError(t, err)
	require.NoError(t, ds.AddValueRow([]string{"10", "red"}))
	require.NoError(t, ds.AddValueRow([]string{"20", "blue"}))
	require.NoError(t, ds.AddValueRow([]string{"NA", "red"}))
	return ds
}

func TestAddValueRowParsesNAAsMissing(t *testing.T) {
	ds := newFixture(t)
	require.Equal(t, 3, ds.Size())

	row, err := ds.Row(2)
	require.NoError(t, err)
	require.True(t, math.IsNaN(float64(row[0])))
}

func TestAddValueRowColumnCountMismatch(t *testing.T) {
	ds := newFixture(t)
	err := ds.AddValueRow([]string{"1"})
	require.ErrorIs(t, err, datasource.ErrColumnCountMismatch)
}

func TestAddValueRowInvalidNumber(t *testing.T) {
	ds := newFixture(t)
	err := ds.AddValueRow([]string{"not-a-number", "red"})
	var parseErr *datasource.ParseError
	require.ErrorAs(t, err, &parseErr)
}

func TestNormalizeAndDimension(t *testing.T) {
	ds := newFixture(t)
	require.NoError(t, normalize.Normalize(ds, true))
	require.True(t, ds.Normalized())
	require.Equal(t, 3, ds.NormalizedSize())
	// age (1) + color one-hot via NumberVec width... color is STRING with
	// Dimension() = number of distinct values seen so far.
	require.Equal(t, 1+2, ds.Dimension())
}

func TestCloneForcesUnnormalized(t *testing.T) {
	ds := newFixture(t)
	require.NoError(t, normalize.Normalize(ds, true))

	clone, err := ds.Clone()
	require.NoError(t, err)
	require.False(t, clone.Normalized())
	require.Equal(t, 3, clone.Size())
}

func TestAddDataAppendsRows(t *testing.T) {
	ds := newFixture(t)
	other, err := datasource.New(
		[]column.Type{column.Numerical, column.String},
		[]string{"age", "color"},
	)
	require.NoError(t, err)
	require.NoError(t, other.AddValueRow([]string{"99", "green"}))

	require.NoError(t, ds.AddData(other, nil))
	require.Equal(t, 4, ds.Size())
}

func TestSetColumnsActiveExcludesFromDimension(t *testing.T) {
	ds := newFixture(t)
	before := ds.Dimension()
	require.NoError(t, ds.SetColumnActive(1, false))
	require.Less(t, ds.Dimension(), before)
}

func TestGetColumnIndexAndName(t *testing.T) {
	ds := newFixture(t)
	idx, err := ds.GetColumnIndex(0)
	require.NoError(t, err)
	require.Equal(t, 0, idx)

	name, err := ds.GetNumberVectorIndexName(0)
	require.NoError(t, err)
	require.Equal(t, "age", name)
}

func TestGetFloatValueRejectsGarbage(t *testing.T) {
	ds := newFixture(t)
	_, err := ds.GetFloatValue("abc")
	require.Error(t, err)
}
