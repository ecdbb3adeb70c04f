package model_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cran/ganGenerativeData/pkg/model"
)

func openRegistry(t *testing.T) *model.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.db")
	reg, err := model.OpenRegistry(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := openRegistry(t)
	ctx := context.Background()

	hp := model.Hyperparameters{TrainingIterations: 100, HiddenLayerUnits: 16, LearningRate: 0.05}
	registered, err := reg.Register(ctx, "m1", hp)
	require.NoError(t, err)
	require.Equal(t, "m1", registered.Name)
	require.NotEmpty(t, registered.ID)

	got, err := reg.Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, hp, got.Hyperparameters)
	require.Equal(t, registered.ID, got.ID)
}

func TestRegistryRegisterUpsertsByName(t *testing.T) {
	reg := openRegistry(t)
	ctx := context.Background()

	first, err := reg.Register(ctx, "m1", model.Hyperparameters{TrainingIterations: 1})
	require.NoError(t, err)
	second, err := reg.Register(ctx, "m1", model.Hyperparameters{TrainingIterations: 2})
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID, "re-registering the same name keeps its id")
	got, err := reg.Get(ctx, "m1")
	require.NoError(t, err)
	require.Equal(t, int32(2), got.TrainingIterations)
}

func TestRegistryGetUnknownNameIsNoRows(t *testing.T) {
	reg := openRegistry(t)
	_, err := reg.Get(context.Background(), "missing")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestRegistryList(t *testing.T) {
	reg := openRegistry(t)
	ctx := context.Background()
	_, err := reg.Register(ctx, "a", model.Hyperparameters{})
	require.NoError(t, err)
	_, err = reg.Register(ctx, "b", model.Hyperparameters{})
	require.NoError(t, err)

	entries, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
}

func TestRegistryDelete(t *testing.T) {
	reg := openRegistry(t)
	ctx := context.Background()
	_, err := reg.Register(ctx, "a", model.Hyperparameters{})
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, "a"))
	_, err = reg.Get(ctx, "a")
	require.True(t, errors.Is(err, sql.ErrNoRows))
}
