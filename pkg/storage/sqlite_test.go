package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteManyKeysIsolated(t *testing.T) {
	t.Parallel()

	kv, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer kv.Close()

	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "cart:cust-1:lines", `{"a":1}`))
	require.NoError(t, kv.Set(ctx, "cart:cust-2:lines", `{"b":2}`))
	require.NoError(t, kv.Set(ctx, "credential:cust-1", "tok-1"))

	got, err := kv.Get(ctx, "cart:cust-1:lines")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, got)

	require.NoError(t, kv.Delete(ctx, "cart:cust-1:lines"))

	_, err = kv.Get(ctx, "cart:cust-1:lines")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err = kv.Get(ctx, "cart:cust-2:lines")
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, got)

	got, err = kv.Get(ctx, "credential:cust-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)
}
