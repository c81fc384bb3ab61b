package repo

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *LocalCache {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache, err := NewLocalCache(context.Background(), db)
	require.NoError(t, err)
	return cache
}

func TestLocalCacheRoundTrip(t *testing.T) {
	cache := newTestCache(t)

	_, ok, err := cache.Get("p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put("p1", []byte(`[{"id":"a"}]`)))
	require.NoError(t, cache.Put("p1", []byte(`[{"id":"b"}]`)))
	require.NoError(t, cache.Put("p2", []byte(`[]`)))

	data, ok, err := cache.Get("p1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"b"}]`, string(data))

	require.NoError(t, cache.Delete("p1"))
	_, ok, err = cache.Get("p1")
	require.NoError(t, err)
	assert.False(t, ok)

	data, ok, err = cache.Get("p2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(data))
}

func TestLocalCacheSchemaIsIdempotent(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer db.Close()

	first, err := NewLocalCache(context.Background(), db)
	require.NoError(t, err)
	require.NoError(t, first.Put("p1", []byte(`[]`)))

	second, err := NewLocalCache(context.Background(), db)
	require.NoError(t, err)
	_, ok, err := second.Get("p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseProjectID(t *testing.T) {
	_, err := parseProjectID("not-a-uuid")
	assert.Error(t, err)

	id, err := parseProjectID("6f1c2f7e-2d8a-4c9e-9a0b-3a4b5c6d7e8f")
	require.NoError(t, err)
	assert.Equal(t, "6f1c2f7e-2d8a-4c9e-9a0b-3a4b5c6d7e8f", id.String())
}
