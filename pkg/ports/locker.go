package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates session access across replicas. A single
// replica gets correctness from the in-process session manager alone; the
// locker extends the same guarantee to multi-instance deployments.
type DistributedLocker interface {
	// Lock acquires a distributed lock for the key (a session ID). It blocks
	// until the lock is acquired or the context is canceled. The returned
	// UnlockFunc MUST be called to release the lock; the TTL bounds the hold
	// time if the holder dies.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
