package datasource_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/normalize"
	"github.com/cran/ganGenerativeData/pkg/wire"
)

func TestDataSourceWriteReadRoundTrip(t *testing.T) {
	ds := newFixture(t)
	require.NoError(t, normalize.Normalize(ds, true))

	var buf bytes.Buffer
	require.NoError(t, ds.Write(&buf))

	got := &datasource.DataSource{}
	require.NoError(t, got.Read(bytes.NewReader(buf.Bytes())))

	require.Equal(t, ds.Normalized(), got.Normalized())
	require.Equal(t, ds.Dimension(), got.Dimension())
	require.Equal(t, ds.Size(), got.Size())
	require.Equal(t, ds.GetActiveColumnNames(), got.GetActiveColumnNames())

	for i := 0; i < ds.Size(); i++ {
		want, err := ds.NormalizedRow(i)
		require.NoError(t, err)
		gotRow, err := got.NormalizedRow(i)
		require.NoError(t, err)
		require.Len(t, gotRow, len(want))
		for j := range want {
			if math.IsNaN(float64(want[j])) {
				require.True(t, math.IsNaN(float64(gotRow[j])))
				continue
			}
			require.InDelta(t, want[j], gotRow[j], 1e-6)
		}
	}
}

func TestDataSourceReadRejectsForeignTypeID(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteString(&buf, "some-other-type-id"))

	got := &datasource.DataSource{}
	err := got.Read(bytes.NewReader(buf.Bytes()))
	require.ErrorIs(t, err, datasource.ErrInvalidTypeID)
}
