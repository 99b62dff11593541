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
)

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "session-1", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)
	assert.True(t, mr.Exists("test:lock:session-1"))

	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:session-1"))
}

func TestRedisLocker_Contention(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "session-1", 5*time.Second)
	require.NoError(t, err)

	// Second acquisition blocks until the first holder releases.
	acquired := make(chan struct{})
	go func() {
		unlock2, err := locker.Lock(ctx, "session-1", 5*time.Second)
		assert.NoError(t, err)
		_ = unlock2(ctx)
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first still held")
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, unlock1(ctx))
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("second lock never acquired after release")
	}
}

func TestRedisLocker_ContextCanceled(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	locker := redis.NewLocker(client, "test:")

	unlock, err := locker.Lock(context.Background(), "session-1", 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "session-1", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRedisLocker_StaleUnlockIsNoop(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	unlock1, err := locker.Lock(ctx, "session-1", 1*time.Second)
	require.NoError(t, err)

	// The first lock expires; a second holder takes over.
	mr.FastForward(2 * time.Second)
	unlock2, err := locker.Lock(ctx, "session-1", 5*time.Second)
	require.NoError(t, err)

	// The stale unlock must not release the new holder's lock.
	require.NoError(t, unlock1(ctx))
	assert.True(t, mr.Exists("test:lock:session-1"))

	require.NoError(t, unlock2(ctx))
	assert.False(t, mr.Exists("test:lock:session-1"))
}
