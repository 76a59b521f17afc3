package kvstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisStore instance
func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client), mr
}

func TestRedisStore_SetGet(t *testing.T) {
	store, _ := setupTestRedis(t)
	ctx := context.Background()

	err := store.Set(ctx, "cart:user123", []byte(`{"items":[]}`))
	require.NoError(t, err)

	data, err := store.Get(ctx, "cart:user123")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"items":[]}`), data)
}

func TestRedisStore_GetMissing(t *testing.T) {
	store, _ := setupTestRedis(t)

	data, err := store.Get(context.Background(), "cart:nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, data)
}

func TestRedisStore_SetOverwrites(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("first")))
	require.NoError(t, store.Set(ctx, "k", []byte("second")))

	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestRedisStore_Delete(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	mr.Set("lastPurchase:user123", "[]")

	require.NoError(t, store.Delete(ctx, "lastPurchase:user123"))

	_, err := store.Get(ctx, "lastPurchase:user123")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStore_DeleteMissingIsNoop(t *testing.T) {
	store, _ := setupTestRedis(t)
	assert.NoError(t, store.Delete(context.Background(), "never-set"))
}

func TestRedisStore_NoExpiry(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cart:u", []byte("x")))
	assert.Zero(t, mr.TTL("cart:u"))
}
