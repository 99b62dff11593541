// Package memory provides in-process adapters: a session store and a flow
// source backed by plain maps. They are the default for tests and embedded
// single-process use.
package memory

import (
	"context"
	"sync"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// Store implements ports.SessionStore in memory. Safe for concurrent use.
type Store struct {
	data map[string]*domain.SessionState
	mu   sync.RWMutex
}

// NewStore creates a new in-memory session store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.SessionState),
	}
}

// Save persists the state in memory. The stored copy is isolated from the
// caller's pointer, same as a serializing store would be.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sessionID] = state.Clone()
	return nil
}

// Load retrieves a copy of the state from memory.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return state.Clone(), nil
}

// Delete removes the state.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}

// List returns the stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.data))
	for id := range s.data {
		sessions = append(sessions, id)
	}
	return sessions, nil
}
