// ABOUTME: Typed storage errors for unknown ids and stale version writes
// ABOUTME: Callers match these with errors.As to distinguish outcomes
package sqlite

import "fmt"

// NotFoundError reports a reference to an unknown bead id
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bead %s not found", e.ID)
}

// VersionConflictError reports a supersede whose expected version no longer
// matches the stored bead. The stored bead is unchanged.
type VersionConflictError struct {
	ID       string
	Expected int
	Current  int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("bead %s version conflict: expected %d, current %d", e.ID, e.Expected, e.Current)
}
