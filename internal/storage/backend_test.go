package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	sqlite, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(0),
		"sqlite": sqlite,
	}
}

func TestBackend_ReadWriteDelete(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.Read(ctx, "weather:favorites")
			assert.ErrorIs(t, err, ErrNotExist)

			require.NoError(t, b.Write(ctx, "weather:favorites", []byte(`{"a":1}`)))
			require.NoError(t, b.Write(ctx, "weather:favorites", []byte(`{"a":2}`)))

			got, err := b.Read(ctx, "weather:favorites")
			require.NoError(t, err)
			assert.Equal(t, `{"a":2}`, string(got))

			require.NoError(t, b.Delete(ctx, "weather:favorites"))
			_, err = b.Read(ctx, "weather:favorites")
			assert.ErrorIs(t, err, ErrNotExist)

			// Deleting a missing key is not an error.
			assert.NoError(t, b.Delete(ctx, "weather:favorites"))
		})
	}
}

func TestBackend_ListByPrefix(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, key := range []string{"weather:b", "weather:a", "other:a", "weather_x:c"} {
				require.NoError(t, b.Write(ctx, key, []byte("1")))
			}

			keys, err := b.List(ctx, "weather:")
			require.NoError(t, err)
			assert.Equal(t, []string{"weather:a", "weather:b"}, keys)
		})
	}
}

func TestBackend_ListEscapesWildcards(t *testing.T) {
	ctx := context.Background()

	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, b.Write(ctx, "ns_1:key", []byte("1")))
			require.NoError(t, b.Write(ctx, "nsX1:key", []byte("1")))

			keys, err := b.List(ctx, "ns_1:")
			require.NoError(t, err)
			assert.Equal(t, []string{"ns_1:key"}, keys)
		})
	}
}

func TestMemoryBackend_Quota(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend(20)

	require.NoError(t, b.Write(ctx, "k", []byte("0123456789")))
	assert.ErrorIs(t, b.Write(ctx, "j", []byte("0123456789")), ErrQuotaExceeded)

	// Overwriting reuses the key's existing allowance.
	require.NoError(t, b.Write(ctx, "k", []byte("abcdefghijklmnopqr")))

	got, err := b.Read(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abcdefghijklmnopqr", string(got))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\_b\%c\\`, escapeLike(`a_b%c\`))
}
