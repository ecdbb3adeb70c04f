package datasource_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/normalize"
)

func normalizedFixture(t *testing.T) *datasource.DataSource {
	t.Helper()
	ds := newFixture(t)
	require.NoError(t, normalize.Normalize(ds, true))
	return ds
}

func TestNewGenerativeDataMaterializesStringAsOneHot(t *testing.T) {
	ds := normalizedFixture(t)
	gd, err := datasource.NewGenerativeData(ds)
	require.NoError(t, err)

	require.Equal(t, ds.Dimension(), gd.Dimension())
	require.Equal(t, 0, gd.NormalizedSize(), "structure-only until rows are added")
}

func TestAddNormalizedRowsPopulatesFromSource(t *testing.T) {
	ds := normalizedFixture(t)
	gd, err := datasource.NewGenerativeData(ds)
	require.NoError(t, err)

	rows, err := ds.AllNormalizedRows()
	require.NoError(t, err)
	require.NoError(t, gd.AddNormalizedRows(rows))

	require.Equal(t, ds.Size(), gd.NormalizedSize())
}

func TestAddNormalizedRowsRejectsBadVectorSize(t *testing.T) {
	ds := normalizedFixture(t)
	gd, err := datasource.NewGenerativeData(ds)
	require.NoError(t, err)

	err = gd.AddNormalizedRows([]float32{1, 2})
	require.ErrorIs(t, err, datasource.ErrVectorSize)
}

func TestStringColumnsAreNominalForGenerativeData(t *testing.T) {
	ds, err := datasource.New([]column.Type{column.String}, []string{"name"})
	require.NoError(t, err)
	require.NoError(t, ds.AddValueRow([]string{"a"}))
	require.NoError(t, normalize.Normalize(ds, true))

	// every StringColumn is NOMINAL by construction in this repo, so the
	// non-NOMINAL rejection in NewGenerativeData is not reachable through
	// the public API; confirm the scale it checks is NOMINAL instead.
	sc, ok := ds.Columns()[0].(*column.StringColumn)
	require.True(t, ok)
	require.Equal(t, column.Nominal, sc.ScaleType())
}
