package core

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bakerycore/internal/infra/persistence/memory"
	"bakerycore/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, closer, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: StorageMemory}, NewDefaultRulesEngine())
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, store)
	assert.NoError(t, closer.Close())
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "bakery.db")
	store, closer, err := OpenPersistentStore(ctx, StorageConfig{SQLitePath: path}, NewDefaultRulesEngine())
	require.NoError(t, err)
	lite, ok := store.(*sqlite.Store)
	require.True(t, ok, "got %T", store)
	assert.Equal(t, path, lite.Path())

	svc := NewService(store)
	_, err = svc.CreateIngredient(ctx, Ingredient{Name: "Flour", Unit: "kilogram", CurrentStock: dec("3")})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	reopened, closer, err := OpenPersistentStore(ctx, StorageConfig{Driver: StorageSQLite, SQLitePath: path}, NewDefaultRulesEngine())
	require.NoError(t, err)
	defer closer.Close()
	ingredients := reopened.NewUnitOfWork().Ingredients().GetAll()
	require.Len(t, ingredients, 1)
	assert.True(t, ingredients[0].CurrentStock.Equal(dec("3")))
}

func TestOpenPersistentStoreUnknownDriver(t *testing.T) {
	_, _, err := OpenPersistentStore(context.Background(), StorageConfig{Driver: "cassandra"}, nil)
	assert.ErrorContains(t, err, "cassandra")
}
