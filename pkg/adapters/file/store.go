// Package file provides filesystem adapters: a session store with atomic
// writes, and a YAML flow source that persists committed graphs and the
// suggestion journal back to disk.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/VinayDangodra28/botbuddy/pkg/domain"
)

// Store implements ports.SessionStore on the local filesystem, one JSON file
// per session.
type Store struct {
	BasePath string
}

// NewStore creates a Store rooted at basePath, defaulting to
// ".botbuddy/sessions".
func NewStore(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".botbuddy", "sessions")
	}
	return &Store{BasePath: basePath}
}

// Save persists the session state atomically: write to a temp file in the
// same directory, fsync, then rename over the destination. A crash mid-save
// leaves the previous state intact, never a partial file.
func (s *Store) Save(ctx context.Context, sessionID string, state *domain.SessionState) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}
	if err := os.MkdirAll(s.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	return writeAtomic(filepath.Join(s.BasePath, sessionID+".json"), data)
}

// Load retrieves the session state from its JSON file.
func (s *Store) Load(ctx context.Context, sessionID string) (*domain.SessionState, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("sessionID cannot be empty")
	}

	data, err := os.ReadFile(filepath.Join(s.BasePath, sessionID+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var state domain.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	return &state, nil
}

// Delete removes the session file. Deleting a missing session is not an
// error.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("sessionID cannot be empty")
	}

	err := os.Remove(filepath.Join(s.BasePath, sessionID+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// List returns all stored session IDs.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var sessions []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			name := entry.Name()
			sessions = append(sessions, name[:len(name)-len(".json")])
		}
	}
	return sessions, nil
}

// writeAtomic writes data to path via a temp file in the same directory
// (same filesystem, so the rename is atomic), fsyncing before the rename.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "tmp-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Windows cannot rename over an existing file; the remove+rename window
	// is acceptable next to the partial-write failure mode it replaces.
	if _, err := os.Stat(path); err == nil {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove existing file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file into place: %w", err)
	}
	return nil
}
