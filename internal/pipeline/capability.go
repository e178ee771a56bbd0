// ABOUTME: Capability contract for the external draft/critique/optimize service
// ABOUTME: Failures carry a transient flag so the pipeline knows what to retry
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/loomworks/beadloom/internal/models"
)

// Request is the input contract for every capability call. Beads arrive in
// index order so prompts are reproducible across runs.
type Request struct {
	Section    models.Section
	Beads      []*models.Bead
	PriorDraft string
	Critique   string
}

// Result is a capability response: generated text plus structured metadata.
// Citations list the bead ids the capability actually used.
type Result struct {
	Text      string
	Citations []string
	Metadata  map[string]any
}

// Capability is the external text-generation collaborator. Draft produces
// the first pass, Critique returns a gap list for a prior draft, Optimize
// revises the draft against that critique.
type Capability interface {
	Draft(ctx context.Context, req Request) (*Result, error)
	Critique(ctx context.Context, req Request) (*Result, error)
	Optimize(ctx context.Context, req Request) (*Result, error)
}

// CapabilityError wraps a failed capability call. Transient errors
// (timeouts, rate limits, empty responses) are retried with backoff;
// permanent ones escalate immediately.
type CapabilityError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *CapabilityError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s capability failed (%s): %v", e.Op, kind, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a retryable capability failure
func IsTransient(err error) bool {
	var ce *CapabilityError
	return errors.As(err, &ce) && ce.Transient
}
