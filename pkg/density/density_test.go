package density_test

import (
	"context"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/datasource"
	"github.com/cran/ganGenerativeData/pkg/density"
	"github.com/cran/ganGenerativeData/pkg/distance"
	"github.com/cran/ganGenerativeData/pkg/normalize"
	"github.com/cran/ganGenerativeData/pkg/vptree"
)

// fixture builds a materialised, indexed GenerativeData over a small 2-D
// numerical data source: rows cluster at the origin and far away, so k-NN
// density estimates clearly separate the two groups.
func fixture(t *testing.T) (*datasource.GenerativeData, *vptree.Tree) {
	t.Helper()
	ds, err := datasource.New([]column.Type{column.Numerical, column.Numerical}, []string{"x", "y"})
	require.NoError(t, err)

	rows := [][2]string{
		{"0", "0"}, {"0.1", "0"}, {"0", "0.1"}, {"0.1", "0.1"},
		{"10", "10"}, {"10.1", "10"}, {"10", "10.1"},
	}
	for _, r := range rows {
		require.NoError(t, ds.AddValueRow([]string{r[0], r[1]}))
	}
	require.NoError(t, normalize.Normalize(ds, true))

	gd, err := datasource.NewGenerativeData(ds)
	require.NoError(t, err)
	all, err := ds.AllNormalizedRows()
	require.NoError(t, err)
	require.NoError(t, gd.AddNormalizedRows(all))
	gd.BuildNormalizedNumberVectorVector()

	tree := vptree.New(distance.L2)
	adapter := datasource.Adapter{DS: &gd.DataSource}
	require.NoError(t, tree.Build(context.Background(), adapter, distance.L2, nil))
	return gd, tree
}

// fixtureNan is fixture, but indexed under a NaN-tolerant distance: tests
// that search with a partial (NA-bearing) record need a tree whose distance
// function does not propagate NaN through every comparison, mirroring the
// L2DistanceNanIndexed tree the engine builds before calling KNearestNeighbors
// or Complete with a partial record (spec.md's mask-select/rebuild step).
func fixtureNan(t *testing.T) (*datasource.GenerativeData, *vptree.Tree) {
	t.Helper()
	ds, err := datasource.New([]column.Type{column.Numerical, column.Numerical}, []string{"x", "y"})
	require.NoError(t, err)

	rows := [][2]string{
		{"0", "0"}, {"0.1", "0"}, {"0", "0.1"}, {"0.1", "0.1"},
		{"10", "10"}, {"10.1", "10"}, {"10", "10.1"},
	}
	for _, r := range rows {
		require.NoError(t, ds.AddValueRow([]string{r[0], r[1]}))
	}
	require.NoError(t, normalize.Normalize(ds, true))

	gd, err := datasource.NewGenerativeData(ds)
	require.NoError(t, err)
	all, err := ds.AllNormalizedRows()
	require.NoError(t, err)
	require.NoError(t, gd.AddNormalizedRows(all))
	gd.BuildNormalizedNumberVectorVector()

	tree := vptree.New(distance.L2Nan)
	adapter := datasource.Adapter{DS: &gd.DataSource}
	require.NoError(t, tree.Build(context.Background(), adapter, distance.L2Nan, nil))
	return gd, tree
}

func TestUnitSphereVolume(t *testing.T) {
	require.InDelta(t, 2.0, density.UnitSphereVolume(1), 1e-6) // [-1,1] has length 2
	require.InDelta(t, math.Pi, density.UnitSphereVolume(2), 1e-6)
}

func TestKNearestNeighborDensityEstimationEmpty(t *testing.T) {
	require.Equal(t, float32(0), density.KNearestNeighborDensityEstimation(nil, 10, 2))
}

func TestKNearestNeighborDensityEstimationCloserIsDenser(t *testing.T) {
	close := []vptree.Element{{Index: 0, Distance: 0.1}, {Index: 1, Distance: 0.2}}
	far := []vptree.Element{{Index: 0, Distance: 1.0}, {Index: 1, Distance: 2.0}}

	dClose := density.KNearestNeighborDensityEstimation(close, 100, 2)
	dFar := density.KNearestNeighborDensityEstimation(far, 100, 2)
	require.Greater(t, dClose, dFar)
}

func TestCalculateDensityValuesFillsAndNormalizesColumn(t *testing.T) {
	gd, tree := fixture(t)
	require.NoError(t, density.CalculateDensityValues(context.Background(), gd, tree, 2, nil))

	dc := gd.DensityColumn()
	require.Equal(t, gd.NormalizedSize(), dc.NormSize())
	require.Empty(t, dc.RawValues(), "raw values cleared after normalization")
}

func TestCalculateDensityValuesRespectsContextCancellation(t *testing.T) {
	gd, tree := fixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := density.CalculateDensityValues(ctx, gd, tree, 2, nil)
	require.Error(t, err)
}

func TestCalculateDensityValueOfNewPoint(t *testing.T) {
	gd, tree := fixture(t)
	require.NoError(t, density.CalculateDensityValues(context.Background(), gd, tree, 2, nil))

	d, err := density.CalculateDensityValue(gd, tree, 2, []float32{0.05, 0.05})
	require.NoError(t, err)
	require.False(t, math.IsNaN(float64(d)))
}

func TestQuantileEmptyColumnIsZero(t *testing.T) {
	ds, err := datasource.New([]column.Type{column.Numerical}, []string{"x"})
	require.NoError(t, err)
	require.NoError(t, normalize.Normalize(ds, true))
	gd, err := datasource.NewGenerativeData(ds)
	require.NoError(t, err)

	require.Equal(t, float32(0), density.Quantile(gd, 50))
	require.Equal(t, float32(0), density.InverseQuantile(gd, 1))
}

func TestQuantileAndInverseQuantileRoundTrip(t *testing.T) {
	gd, tree := fixture(t)
	require.NoError(t, density.CalculateDensityValues(context.Background(), gd, tree, 2, nil))

	median := density.Quantile(gd, 50)
	pct := density.InverseQuantile(gd, median)
	require.GreaterOrEqual(t, pct, float32(0))
	require.LessOrEqual(t, pct, float32(100))

	// the maximum density value is at or above the 100th percentile's rank.
	max := density.Quantile(gd, 100)
	require.Equal(t, float32(100), density.InverseQuantile(gd, max))
}

func TestCompleteRejectsMismatchedLists(t *testing.T) {
	gd, tree := fixture(t)
	_, err := density.Complete(gd, tree, density.Record{Names: []string{"x"}, Values: []string{"1", "2"}}, true)
	require.ErrorIs(t, err, density.ErrDifferentListSizes)
}

func TestKNearestNeighborsRejectsNonPositiveK(t *testing.T) {
	gd, tree := fixture(t)
	_, err := density.KNearestNeighbors(gd, tree, 0, density.Record{Names: []string{"x"}, Values: []string{"1"}}, true)
	require.ErrorIs(t, err, density.ErrInvalidNearestNeighborsSize)
}

func TestKNearestNeighborsReturnsRequestedCount(t *testing.T) {
	gd, tree := fixtureNan(t)

	out, err := density.KNearestNeighbors(gd, tree, 3, density.Record{
		Names:  []string{"x", "y"},
		Values: []string{"0", column.NA},
	}, true)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for _, r := range out {
		require.Equal(t, []string{"x", "y"}, r.Names)
		require.Len(t, r.Values, 2)
	}
}

func TestCompleteImputesMissingColumnFromNeighbors(t *testing.T) {
	// Complete always uses the single nearest neighbor (k=1), so the tree
	// must be indexed under a distance tolerant of the record's own NaN
	// pattern, as engine.CompleteRecord arranges via its indexed rebuild.
	gd, tree := fixtureNan(t)

	out, err := density.Complete(gd, tree, density.Record{
		Names:  []string{"x", "y"},
		Values: []string{"0", column.NA},
	}, true)
	require.NoError(t, err)
	require.Len(t, out, 2)

	y, err := strconv.ParseFloat(out[1], 32)
	require.NoError(t, err)
	// neighbors of x=0 cluster near y=0, so the imputed y should be small.
	require.Less(t, math.Abs(y), 1.0)
}
