package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTableCache(t *testing.T) (*TableCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	cache, err := NewTableCache(&redis.Options{Addr: mr.Addr()}, "test", time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache, mr
}

func TestTableCacheRoundTrip(t *testing.T) {
	cache, mr := setupTableCache(t)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "Comanda")
	require.NoError(t, err)
	assert.False(t, ok)

	store := newFakeStore()
	store.add("Comanda", "rec1", map[string]interface{}{"Status": "Valid"})
	records, _ := store.FetchAll(ctx, "Comanda")
	require.NoError(t, cache.Set(ctx, "Comanda", records))
	assert.True(t, mr.Exists("test:table:Comanda"))

	got, ok, err := cache.Get(ctx, "Comanda")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Valid", got[0].Fields["Status"])

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "Comanda")
	require.NoError(t, err)
	assert.False(t, ok, "snapshots expire")
}

func TestNewTableCacheRejectsZeroTTL(t *testing.T) {
	_, err := NewTableCache(&redis.Options{Addr: "localhost:6379"}, "", 0)
	assert.Error(t, err)
}

func TestCachedStoreServesSnapshotsAndInvalidatesOnWrite(t *testing.T) {
	cache, _ := setupTableCache(t)
	ctx := context.Background()

	inner := newFakeStore()
	inner.add("Comanda", "rec1", map[string]interface{}{"Status": "Pending"})
	store := NewCachedStore(inner, cache, zap.NewNop())

	_, err := store.FetchAll(ctx, "Comanda")
	require.NoError(t, err)
	_, err = store.FetchAll(ctx, "Comanda")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.fetches["Comanda"], "second read is served from the snapshot")

	_, err = store.Update(ctx, "Comanda", "rec1", map[string]interface{}{"Status": "Valid"})
	require.NoError(t, err)

	records, err := store.FetchAll(ctx, "Comanda")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.fetches["Comanda"])
	assert.Equal(t, "Valid", records[0].Fields["Status"])
}

func TestCachedStoreFallsThroughWhenRedisIsDown(t *testing.T) {
	cache, mr := setupTableCache(t)
	inner := newFakeStore()
	inner.add("Inventari", "recP", map[string]interface{}{"ProductID": "P1"})
	store := NewCachedStore(inner, cache, zap.NewNop())

	mr.Close()
	records, err := store.FetchAll(context.Background(), "Inventari")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCachedStoreDoesNotCacheFailures(t *testing.T) {
	cache, mr := setupTableCache(t)
	inner := newFakeStore()
	inner.failFetch["Client"] = true
	store := NewCachedStore(inner, cache, zap.NewNop())

	_, err := store.FetchAll(context.Background(), "Client")
	assert.Error(t, err)
	assert.False(t, mr.Exists("test:table:Client"))
}
