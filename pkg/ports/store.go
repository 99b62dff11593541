package ports

import (
	"context"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// SessionStore persists conversation session state. The engine treats it as
// injected state, not owned storage.
type SessionStore interface {
	// Save persists the session state for a given session ID.
	Save(ctx context.Context, sessionID string, state *domain.SessionState) error

	// Load retrieves the session state for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.SessionState, error)

	// Delete removes the session state for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns all stored session IDs.
	List(ctx context.Context) ([]string, error)
}
