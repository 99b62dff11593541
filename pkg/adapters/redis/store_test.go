package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VinayDangodra28/botbuddy/pkg/adapters/redis"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/ports"
)

func newTestStore(t *testing.T, opts ...redis.Option) *redis.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return redis.NewFromClient(client, opts...)
}

func TestRedisStore_Contract(t *testing.T) {
	store := newTestStore(t)
	ports.RunSessionStoreContract(t, store)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", domain.NewSession("s1", "greeting")))
	require.NoError(t, store.Save(ctx, "s2", domain.NewSession("s2", "greeting")))

	// Advance past the first TTL; the key expires and List prunes the index.
	mr.FastForward(2 * time.Second)
	require.NoError(t, store.Save(ctx, "s2", domain.NewSession("s2", "greeting")))

	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s2"}, sessions)

	// The stale index entry is gone, not just filtered.
	score, err := client.ZScore(ctx, "botbuddy:session:index", "s1").Result()
	assert.ErrorIs(t, err, backend.Nil)
	assert.Zero(t, score)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client, redis.WithPrefix("collections:session:"))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "s1", domain.NewSession("s1", "greeting")))
	assert.True(t, mr.Exists("collections:session:s1"))
}
