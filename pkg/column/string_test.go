package column_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/column"
)

func TestStringColumnAddValueAssignsIdsInOrder(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	c.AddValue("blue", true)
	c.AddValue("red", true)

	require.Equal(t, int32(1), c.ValueMap()["red"])
	require.Equal(t, int32(2), c.ValueMap()["blue"])
	require.Equal(t, 3, c.RawSize())

	v, err := c.Value(0)
	require.NoError(t, err)
	require.Equal(t, "red", v)
}

func TestStringColumnUnseenValueWithoutAddIsUnknown(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	c.AddValue("green", false)

	v, err := c.Value(1)
	require.NoError(t, err)
	require.Equal(t, "", v)
}

func TestStringColumnNumberVecOneHot(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	c.AddValue("blue", true)
	c.AddValue("red", true)

	vec, err := c.NumberVec(1)
	require.NoError(t, err)
	require.Equal(t, []float32{0, 1}, vec)
}

func TestStringColumnNumberVecUnknownIsAllZero(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	c.AddValue("unseen", false)

	vec, err := c.NumberVec(1)
	require.NoError(t, err)
	require.Equal(t, []float32{0}, vec)
}

func TestStringColumnNormalizedNumberVecSubstitutesUnknown(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	c.AddValue("blue", true)
	c.AddValue("unseen", false)

	vec, err := c.NormalizedNumberVec(2)
	require.NoError(t, err)
	sum := vec[0] + vec[1]
	require.Equal(t, float32(1), sum)
}

func TestStringColumnDenormalizedNumberVecNeverSubstitutes(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	c.AddValue("unseen", false)

	vec, err := c.DenormalizedNumberVec(1)
	require.NoError(t, err)
	require.Equal(t, []float32{0}, vec)
}

func TestStringColumnClone(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	clone := c.Clone()
	clone.AddValue("blue", true)

	require.Equal(t, 1, c.RawSize())
	require.Equal(t, 2, clone.RawSize())
	require.Len(t, c.ValueMap(), 1)
	require.Len(t, clone.ValueMap(), 2)
}

func TestStringColumnClear(t *testing.T) {
	c := column.NewStringColumn("color")
	c.AddValue("red", true)
	c.Clear()
	require.Equal(t, 0, c.RawSize())
	require.Len(t, c.ValueMap(), 1, "clearing rows keeps the learned value map")
}
