package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, "gatekeeper-test"), mr
}

func TestRedis_SaveGet(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "attempts", 3, time.Minute))

	value, err := store.Get(ctx, "attempts")
	require.NoError(t, err)
	assert.Equal(t, int64(3), value)

	exists, err := store.Exists(ctx, "attempts")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRedis_MissRendersZero(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	value, err := store.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, int64(0), value)

	exists, err := store.Exists(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedis_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "attempts", 5, 2*time.Minute))

	mr.FastForward(2*time.Minute - time.Second)
	exists, err := store.Exists(ctx, "attempts")
	require.NoError(t, err)
	assert.True(t, exists, "entry expired before its TTL")

	mr.FastForward(2 * time.Second)
	exists, err = store.Exists(ctx, "attempts")
	require.NoError(t, err)
	assert.False(t, exists, "entry outlived its TTL")
}

func TestRedis_Delete(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "attempts", 4, time.Minute))
	require.NoError(t, store.Delete(ctx, "attempts"))

	exists, err := store.Exists(ctx, "attempts")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRedis_KeysAreNamespaced(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Save(ctx, "attempts", 1, time.Minute))

	assert.True(t, mr.Exists("gatekeeper-test:attempts"))
	assert.False(t, mr.Exists("attempts"))
}
