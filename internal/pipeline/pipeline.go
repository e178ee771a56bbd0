// ABOUTME: Unit pipeline - gather, draft, critique, optimize, validate, persist
// ABOUTME: One section end to end; transient capability failures retry with backoff
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/loomworks/beadloom/internal/checkpoint"
	"github.com/loomworks/beadloom/internal/config"
	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
	"github.com/loomworks/beadloom/internal/util"
)

// Pipeline runs one section at a time through the critic-optimizer loop.
// Safe for concurrent use across distinct sections; the scheduler ensures
// dependent sections never run at once.
type Pipeline struct {
	store      *sqlite.Storage
	idx        *index.Index
	capability Capability
	ckpts      *checkpoint.Store
	cfg        *config.Config
}

// New wires a pipeline over the store, index, capability and checkpoint dir
func New(store *sqlite.Storage, idx *index.Index, capability Capability, ckpts *checkpoint.Store, cfg *config.Config) *Pipeline {
	return &Pipeline{store: store, idx: idx, capability: capability, ckpts: ckpts, cfg: cfg}
}

// RunUnit executes the full state machine for one section and returns its
// terminal status. Steps run strictly sequentially; each consumes the
// prior step's output. Implements the scheduler's UnitRunner.
func (p *Pipeline) RunUnit(ctx context.Context, sec models.Section, warnings []string) (models.UnitStatus, error) {
	state := &models.UnitRunState{SectionID: sec.ID, Status: models.UnitRunning}
	for _, w := range warnings {
		state.AddWarning(w)
	}
	if err := p.store.RunStates().Save(state); err != nil {
		return models.UnitFailed, fmt.Errorf("save run state for %s: %w", sec.ID, err)
	}

	// Gather: one consistent snapshot; sibling units mutating the store
	// mid-run are not re-observed.
	beads := p.idx.Search(index.Filters{
		Section:       sec.ID,
		MinConfidence: p.cfg.MinConfidence,
		MinQuality:    p.cfg.MinQuality,
	})
	if len(beads) < sec.MinBeads {
		msg := fmt.Sprintf("section %s: gathered %d beads, min_beads is %d", sec.ID, len(beads), sec.MinBeads)
		log.Printf("[pipeline] %s", msg)
		switch {
		case p.cfg.PartialData:
			state.AddWarning(msg + " (proceeding with partial data)")
		case sec.Priority == models.PriorityCritical:
			// Hard precondition failure for critical sections only: the
			// drafting capability is never invoked on insufficient data.
			return p.finish(sec, state, models.UnitFailed, msg)
		default:
			// Everyone else drafts anyway, with the shortfall on record.
			state.AddWarning(msg)
		}
	}

	// Draft
	draft, err := p.invoke(ctx, "draft", func(ctx context.Context) (*Result, error) {
		return p.capability.Draft(ctx, Request{Section: sec, Beads: beads})
	})
	if err != nil {
		return p.finish(sec, state, models.UnitFailed, err.Error())
	}
	if len(draft.Citations) == 0 {
		state.AddWarning(fmt.Sprintf("section %s: draft reported no citations", sec.ID))
	}

	quality := scoreArtifact(draft.Text, draft.Citations, beads, sec, p.cfg.LengthTolerance)
	state.LastQualityScore = quality

	// Critique and optimize, bounded. Terminates when the score clears the
	// section's threshold or the iteration budget runs out.
	for i := 0; i < p.cfg.MaxIterations && quality < sec.QualityThreshold; i++ {
		critique, err := p.invoke(ctx, "critique", func(ctx context.Context) (*Result, error) {
			return p.capability.Critique(ctx, Request{Section: sec, Beads: beads, PriorDraft: draft.Text})
		})
		if err != nil {
			return p.finish(sec, state, models.UnitFailed, err.Error())
		}
		state.Status = models.UnitCritiqued
		state.IterationCount = i + 1
		if err := p.store.RunStates().Save(state); err != nil {
			return models.UnitFailed, fmt.Errorf("save run state for %s: %w", sec.ID, err)
		}

		optimized, err := p.invoke(ctx, "optimize", func(ctx context.Context) (*Result, error) {
			return p.capability.Optimize(ctx, Request{
				Section:    sec,
				Beads:      beads,
				PriorDraft: draft.Text,
				Critique:   critique.Text,
			})
		})
		if err != nil {
			return p.finish(sec, state, models.UnitFailed, err.Error())
		}
		if len(optimized.Citations) == 0 {
			optimized.Citations = draft.Citations
		}
		draft = optimized
		state.Status = models.UnitOptimized

		quality = scoreArtifact(draft.Text, draft.Citations, beads, sec, p.cfg.LengthTolerance)
		state.LastQualityScore = quality
		if err := p.store.RunStates().Save(state); err != nil {
			return models.UnitFailed, fmt.Errorf("save run state for %s: %w", sec.ID, err)
		}
	}

	// Validate. Below-threshold is a policy outcome: critical sections do
	// not complete on deficient output, the rest complete with the
	// deficiency recorded.
	belowThreshold := quality < sec.QualityThreshold
	if belowThreshold {
		log.Printf("[pipeline] section %s quality %.3f below threshold %.3f", sec.ID, quality, sec.QualityThreshold)
	}

	artifact := &models.SectionArtifact{
		SectionID:    sec.ID,
		Text:         draft.Text,
		Citations:    p.resolveCitations(draft.Citations, beads),
		QualityScore: quality,
		WordCount:    wordCount(draft.Text),
	}
	if err := p.store.Artifacts().Save(artifact); err != nil {
		return models.UnitFailed, fmt.Errorf("persist artifact for %s: %w", sec.ID, err)
	}

	if belowThreshold && sec.Priority == models.PriorityCritical {
		msg := fmt.Sprintf("quality %.3f below threshold %.3f", quality, sec.QualityThreshold)
		return p.finishWithArtifact(sec, state, models.UnitFailed, msg, artifact)
	}
	if belowThreshold {
		state.AddWarning(fmt.Sprintf("completed with quality %.3f below threshold %.3f", quality, sec.QualityThreshold))
	}
	return p.finishWithArtifact(sec, state, models.UnitComplete, "", artifact)
}

// invoke runs one capability call with the configured timeout, retrying
// transient failures with exponential backoff. Empty responses count as
// transient; the capability may just have been rate limited.
func (p *Pipeline) invoke(ctx context.Context, op string, call func(ctx context.Context) (*Result, error)) (*Result, error) {
	var res *Result
	err := p.retry(ctx, func(ctx context.Context) error {
		callCtx := ctx
		if p.cfg.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
		}
		r, err := call(callCtx)
		if err != nil {
			if callCtx.Err() != nil && ctx.Err() == nil {
				// Per-call timeout, not caller cancellation
				return &CapabilityError{Op: op, Transient: true, Err: err}
			}
			return err
		}
		if r == nil || r.Text == "" {
			return &CapabilityError{Op: op, Transient: true, Err: fmt.Errorf("empty response")}
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s for section: %w", op, err)
	}
	return res, nil
}

func (p *Pipeline) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	return util.Do(ctx, p.cfg.MaxRetries, p.cfg.RetryDelay, fn, IsTransient)
}

// finish persists the terminal run state and checkpoint for units that
// produced no artifact.
func (p *Pipeline) finish(sec models.Section, state *models.UnitRunState, status models.UnitStatus, errMsg string) (models.UnitStatus, error) {
	return p.finishWithArtifact(sec, state, status, errMsg, nil)
}

func (p *Pipeline) finishWithArtifact(sec models.Section, state *models.UnitRunState, status models.UnitStatus, errMsg string, artifact *models.SectionArtifact) (models.UnitStatus, error) {
	state.Status = status
	state.Error = errMsg
	if err := p.store.RunStates().Save(state); err != nil {
		return models.UnitFailed, fmt.Errorf("save run state for %s: %w", sec.ID, err)
	}

	ckpt := checkpoint.UnitCheckpoint{
		SectionID:    sec.ID,
		Status:       status,
		QualityScore: state.LastQualityScore,
		CompletedAt:  time.Now().UTC(),
	}
	if artifact != nil {
		ckpt.ArtifactID = artifact.ID
		for _, c := range artifact.Citations {
			ckpt.CitedBeads = append(ckpt.CitedBeads, c.BeadID)
		}
	}
	if err := p.ckpts.Save(checkpoint.PhaseSections, sec.ID, ckpt); err != nil {
		return models.UnitFailed, fmt.Errorf("checkpoint %s: %w", sec.ID, err)
	}
	return status, nil
}

// resolveCitations maps cited bead ids back to their source locations.
// Ids the capability invented are dropped with a log line; citations must
// point at real beads.
func (p *Pipeline) resolveCitations(cited []string, beads []*models.Bead) []models.Citation {
	byID := map[string]*models.Bead{}
	for _, b := range beads {
		byID[b.ID] = b
	}
	var out []models.Citation
	seen := map[string]bool{}
	for _, id := range cited {
		if seen[id] {
			continue
		}
		seen[id] = true
		b, ok := byID[id]
		if !ok {
			log.Printf("[pipeline] dropping citation of unknown bead %s", id)
			continue
		}
		out = append(out, models.Citation{
			BeadID:     b.ID,
			SourcePath: b.Source.Path,
			SourceURL:  b.Source.URL,
		})
	}
	return out
}
