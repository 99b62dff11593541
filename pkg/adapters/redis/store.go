// Package redis provides a session store and a distributed locker backed by
// Redis, for deployments running more than one engine replica.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// farFuture is the index score for sessions without a TTL (2100-01-01).
const farFuture = 4102444800

// Store implements ports.SessionStore using Redis. Session IDs are tracked
// in a ZSET scored by expiry; List drops entries whose session key has
// already expired and prunes them from the index.
type Store struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the expiration for sessions. Zero means no expiration.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// New creates a Redis store connecting to the given address.
func New(address, password string, db int, opts ...Option) *Store {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(client, opts...)
}

// NewFromClient creates a Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "botbuddy:session:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *Store) indexKey() string {
	return s.prefix + "index"
}

// Save persists the session JSON with TTL and registers it in the index.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	score := float64(farFuture)
	if s.ttl > 0 {
		score = float64(time.Now().Add(s.ttl).Unix())
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(sessionID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: sessionID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Load retrieves the session state.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	val, err := s.client.Get(ctx, s.key(sessionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return &state, nil
}

// Delete removes the session and its index entry.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.key(sessionID))
	pipe.ZRem(ctx, s.indexKey(), sessionID)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns active session IDs. Redis owns expiry through the key TTL,
// so liveness is decided by whether the session key still exists; index
// entries whose key is gone are pruned on the way out.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	pipe := s.client.Pipeline()
	checks := make([]*backend.IntCmd, len(ids))
	for i, id := range ids {
		checks[i] = pipe.Exists(ctx, s.key(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check session liveness: %w", err)
	}

	live := make([]string, 0, len(ids))
	var stale []interface{}
	for i, id := range ids {
		if checks[i].Val() > 0 {
			live = append(live, id)
		} else {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
		}
	}
	return live, nil
}

// Client exposes the underlying connection, so a Locker can share it.
func (s *Store) Client() *backend.Client {
	return s.client
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
