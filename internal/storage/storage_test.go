package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func openTestSQLite(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_PutGetDelete(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "cart", []byte(`{"a":1}`)))

	got, err := store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":1}`), got)

	// Overwrite wins.
	require.NoError(t, store.Put(ctx, "cart", []byte(`{"a":2}`)))
	got, err = store.Get(ctx, "cart")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"a":2}`), got)

	require.NoError(t, store.Delete(ctx, "cart"))
	_, err = store.Get(ctx, "cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "language", []byte(`"de"`)))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "language")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"de"`), got)
}

func TestJSONEnvelope_RoundTrip(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	in := fixture{Name: "marille", Count: 3}
	require.NoError(t, PutJSON(ctx, store, "cart", in))

	var out fixture
	require.NoError(t, GetJSON(ctx, store, "cart", &out))
	assert.Equal(t, in, out)
}

func TestJSONEnvelope_StaleVersionDiscarded(t *testing.T) {
	store := openTestSQLite(t)
	ctx := context.Background()

	// Simulate a blob written by a future (or ancient) build.
	blob, err := json.Marshal(map[string]any{
		"schema_version": SchemaVersion + 1,
		"data":           fixture{Name: "old"},
	})
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "cart", blob))

	var out fixture
	err = GetJSON(ctx, store, "cart", &out)
	assert.ErrorIs(t, err, ErrStaleSchema)
	assert.True(t, Absent(err))
}

func TestJSONEnvelope_MissingKey(t *testing.T) {
	store := openTestSQLite(t)

	var out fixture
	err := GetJSON(context.Background(), store, "nope", &out)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, Absent(err))
}
