package csrf

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, ttl), server
}

func TestRedisStore_OneTimeUse(t *testing.T) {
	store, _ := newRedisStore(t, 15*time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	assert.True(t, store.Validate(ctx, token), "first validation should succeed")
	assert.False(t, store.Validate(ctx, token), "replayed token should be invalid")
}

func TestRedisStore_Expiry(t *testing.T) {
	store, server := newRedisStore(t, 15*time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx)
	require.NoError(t, err)

	server.FastForward(15*time.Minute + time.Second)

	assert.False(t, store.Validate(ctx, token), "expired token should be invalid even on first use")
}

func TestRedisStore_UnknownToken(t *testing.T) {
	store, _ := newRedisStore(t, 15*time.Minute)
	ctx := context.Background()

	assert.False(t, store.Validate(ctx, "deadbeef"))
	assert.False(t, store.Validate(ctx, ""))
}

func TestRedisStore_FailsClosedWhenRedisDown(t *testing.T) {
	store, server := newRedisStore(t, 15*time.Minute)
	ctx := context.Background()

	token, err := store.Issue(ctx)
	require.NoError(t, err)

	server.Close()

	assert.False(t, store.Validate(ctx, token), "validation should fail closed when redis is unreachable")
}
