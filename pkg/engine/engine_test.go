package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/column"
	"github.com/cran/ganGenerativeData/pkg/density"
	"github.com/cran/ganGenerativeData/pkg/engine"
)

func loadedEngine(t *testing.T) *engine.Engine {
	t.Helper()
	e := engine.Open(engine.Config{NearestNeighbors: 2})
	require.NoError(t, e.NewDataSource([]column.Type{column.Numerical, column.Numerical}, []string{"x", "y"}))

	rows := [][2]string{
		{"0", "0"}, {"0.1", "0"}, {"0", "0.1"}, {"0.1", "0.1"},
		{"10", "10"}, {"10.1", "10"}, {"10", "10.1"},
	}
	for _, r := range rows {
		require.NoError(t, e.AddRow([]string{r[0], r[1]}))
	}
	require.NoError(t, e.Normalize(true))
	require.NoError(t, e.Materialize())
	require.NoError(t, e.BuildIndex(context.Background(), "l2", nil))
	return e
}

func TestOpenAppliesDefaults(t *testing.T) {
	e := engine.Open(engine.Config{})
	_, err := e.DataSource()
	require.ErrorIs(t, err, engine.ErrNoDataSource)
}

func TestOperationsBeforeLoadReturnSentinels(t *testing.T) {
	e := engine.Open(engine.Config{})

	require.ErrorIs(t, e.AddRow([]string{"1"}), engine.ErrNoDataSource)
	require.ErrorIs(t, e.Normalize(true), engine.ErrNoDataSource)
	require.ErrorIs(t, e.Materialize(), engine.ErrNoDataSource)

	_, err := e.Model()
	require.ErrorIs(t, err, engine.ErrNoModel)

	_, err = e.GenerativeData()
	require.ErrorIs(t, err, engine.ErrNoGenerativeData)

	require.ErrorIs(t, e.BuildIndex(context.Background(), "l2", nil), engine.ErrNoGenerativeData)

	_, err = e.Search([]float32{0, 0}, 1)
	require.ErrorIs(t, err, engine.ErrNoIndex)
}

func TestBuildIndexRejectsUnknownDistanceKind(t *testing.T) {
	e := engine.Open(engine.Config{})
	require.NoError(t, e.NewDataSource([]column.Type{column.Numerical}, []string{"x"}))
	require.NoError(t, e.AddRow([]string{"1"}))
	require.NoError(t, e.Normalize(true))
	require.NoError(t, e.Materialize())

	err := e.BuildIndex(context.Background(), "bogus", nil)
	require.Error(t, err)
}

func TestEndToEndSearchDensityQuantileComplete(t *testing.T) {
	e := loadedEngine(t)

	results, err := e.Search([]float32{0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	require.NoError(t, e.CalculateDensities(context.Background(), 2))

	q, err := e.Quantile(50)
	require.NoError(t, err)
	pct, err := e.InverseQuantile(q)
	require.NoError(t, err)
	require.GreaterOrEqual(t, pct, float32(0))

	out, err := e.CompleteRecord(context.Background(), density.Record{Names: []string{"x", "y"}, Values: []string{"0", column.NA}}, true)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "0", out[0])
}

func TestCompleteRecordRebuildsIndexedTreeForRecordMask(t *testing.T) {
	e := loadedEngine(t)

	out, err := e.CompleteRecord(context.Background(), density.Record{Names: []string{"x", "y"}, Values: []string{"0", column.NA}}, true)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.NotEqual(t, column.NA, out[1])
}

func TestKNearestNeighborsRebuildsIndexedTreeForRecordMask(t *testing.T) {
	e := loadedEngine(t)

	out, err := e.KNearestNeighbors(context.Background(), density.Record{Names: []string{"x", "y"}, Values: []string{"0", column.NA}}, 2, true)
	require.NoError(t, err)
	require.Len(t, out, 2)
	for _, r := range out {
		require.Equal(t, []string{"x", "y"}, r.Names)
		require.Len(t, r.Values, 2)
	}
}

func TestTestIndexAgreesWithLinearSearch(t *testing.T) {
	e := loadedEngine(t)
	require.NoError(t, e.TestIndex(0, 7, 3))
}

func TestBuildIndexSkipsRebuildWhenIndexedMaskUnchanged(t *testing.T) {
	e := loadedEngine(t)
	mask := []float32{0, 0}

	require.NoError(t, e.BuildIndex(context.Background(), "l2nan_indexed", mask))
	firstResults, err := e.Search([]float32{0, 0}, 2)
	require.NoError(t, err)

	require.NoError(t, e.BuildIndex(context.Background(), "l2nan_indexed", append([]float32(nil), mask...)))
	secondResults, err := e.Search([]float32{0, 0}, 2)
	require.NoError(t, err)

	require.Equal(t, firstResults, secondResults)
}

func TestClearResetsAllSlots(t *testing.T) {
	e := loadedEngine(t)
	e.Clear()

	_, err := e.DataSource()
	require.ErrorIs(t, err, engine.ErrNoDataSource)
	_, err = e.GenerativeData()
	require.ErrorIs(t, err, engine.ErrNoGenerativeData)
	_, err = e.Search([]float32{0, 0}, 1)
	require.ErrorIs(t, err, engine.ErrNoIndex)
}

func TestDensityOfRequiresIndex(t *testing.T) {
	e := engine.Open(engine.Config{})
	require.NoError(t, e.NewDataSource([]column.Type{column.Numerical}, []string{"x"}))
	require.NoError(t, e.AddRow([]string{"1"}))
	require.NoError(t, e.Normalize(true))
	require.NoError(t, e.Materialize())

	_, err := e.DensityOf([]float32{1}, 1)
	require.ErrorIs(t, err, engine.ErrNoIndex)
}
