package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrBranchNotFound is returned when a branch lookup misses.
var ErrBranchNotFound = errors.New("branch not found")

// StructuralError reports a malformed branch: a missing required field or a
// dangling next reference. It is detected by validation and reported, never
// auto-repaired.
type StructuralError struct {
	BranchID string
	Problems []string
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("branch %q is structurally invalid: %v", e.BranchID, e.Problems)
}
