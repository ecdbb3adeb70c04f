package distance_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/distance"
)

func TestL1(t *testing.T) {
	d, err := distance.L1([]float32{1, 2, 3}, []float32{4, 0, 3})
	require.NoError(t, err)
	require.Equal(t, float32(5), d)
}

func TestL1SizeMismatch(t *testing.T) {
	_, err := distance.L1([]float32{1}, []float32{1, 2})
	require.ErrorIs(t, err, distance.ErrDifferentSizes)
}

func TestL2(t *testing.T) {
	d, err := distance.L2([]float32{0, 0}, []float32{3, 4})
	require.NoError(t, err)
	require.Equal(t, float32(5), d)
}

func TestL2NanSkipsMissingDims(t *testing.T) {
	nan := float32(math.NaN())
	d, err := distance.L2Nan([]float32{0, nan, 0}, []float32{3, 99, 4})
	require.NoError(t, err)
	require.Equal(t, float32(5), d)
}

func TestL2NanAllMissingIsZero(t *testing.T) {
	nan := float32(math.NaN())
	d, err := distance.L2Nan([]float32{nan}, []float32{nan})
	require.NoError(t, err)
	require.Equal(t, float32(0), d)
}

func TestNanIndexedUsesFixedMask(t *testing.T) {
	nan := float32(math.NaN())
	ni := distance.NewNanIndexed([]float32{0, nan, 0})
	// second dimension is masked out regardless of what a/b actually hold
	d, err := ni.Distance([]float32{0, 1000, 0}, []float32{3, -5000, 4})
	require.NoError(t, err)
	require.Equal(t, float32(5), d)
}

func TestNanIndexedSizeMismatch(t *testing.T) {
	ni := distance.NewNanIndexed([]float32{0, 0})
	_, err := ni.Distance([]float32{0}, []float32{0, 0})
	require.ErrorIs(t, err, distance.ErrDifferentSizes)
}

func TestSamePattern(t *testing.T) {
	nan := float32(math.NaN())
	require.True(t, distance.SamePattern([]float32{1, nan, 2}, []float32{99, nan, -1}))
	require.False(t, distance.SamePattern([]float32{1, nan, 2}, []float32{1, 2, nan}))
	require.False(t, distance.SamePattern([]float32{1, 2}, []float32{1, 2, 3}))
}

func TestNanIndexedMaskIsCopied(t *testing.T) {
	mask := []float32{0, 0}
	ni := distance.NewNanIndexed(mask)
	mask[0] = float32(math.NaN())
	_, err := ni.Distance([]float32{5, 1}, []float32{2, 1})
	require.NoError(t, err)
}
