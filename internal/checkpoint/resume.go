// ABOUTME: Crash recovery - reconciles checkpoints against the record store
// ABOUTME: A checkpoint referencing missing data is stale and its unit re-queued
package checkpoint

import (
	"log"
	"time"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// PhaseSections is the checkpoint phase key for section units
const PhaseSections = "sections"

// UnitCheckpoint is the persisted completion record for one section
type UnitCheckpoint struct {
	SectionID    string            `json:"section_id"`
	Status       models.UnitStatus `json:"status"`
	ArtifactID   string            `json:"artifact_id,omitempty"`
	QualityScore float64           `json:"quality_score"`
	CitedBeads   []string          `json:"cited_beads,omitempty"`
	CompletedAt  time.Time         `json:"completed_at"`
}

// ResumePlan partitions the outline into work already done and work pending
type ResumePlan struct {
	CompletedIDs []string
	SkippedIDs   []string
	PendingIDs   []string
}

// Resume decides where a restarted run picks up. A "complete" checkpoint is
// trusted only after its artifact and cited beads are confirmed to still
// exist in the store; otherwise it is treated as stale and the unit is
// re-queued.
func (s *Store) Resume(o *models.Outline, store *sqlite.Storage) (*ResumePlan, error) {
	plan := &ResumePlan{}

	for _, section := range o.Sections {
		var ckpt UnitCheckpoint
		found, err := s.Load(PhaseSections, section.ID, &ckpt)
		if err != nil {
			return nil, err
		}
		if !found {
			plan.PendingIDs = append(plan.PendingIDs, section.ID)
			continue
		}

		switch ckpt.Status {
		case models.UnitComplete:
			stale, err := s.isStale(&ckpt, section.ID, store)
			if err != nil {
				return nil, err
			}
			if stale {
				log.Printf("[ckpt] checkpoint for %s is stale, re-queueing", section.ID)
				plan.PendingIDs = append(plan.PendingIDs, section.ID)
			} else {
				plan.CompletedIDs = append(plan.CompletedIDs, section.ID)
			}
		case models.UnitSkipped:
			plan.SkippedIDs = append(plan.SkippedIDs, section.ID)
		default:
			// failed or mid-flight states are never trusted across a restart
			plan.PendingIDs = append(plan.PendingIDs, section.ID)
		}
	}
	return plan, nil
}

func (s *Store) isStale(ckpt *UnitCheckpoint, sectionID string, store *sqlite.Storage) (bool, error) {
	artifact, err := store.Artifacts().GetBySection(sectionID)
	if err != nil {
		return false, err
	}
	if artifact == nil || (ckpt.ArtifactID != "" && artifact.ID != ckpt.ArtifactID) {
		return true, nil
	}
	for _, beadID := range ckpt.CitedBeads {
		exists, err := store.BeadExists(beadID)
		if err != nil {
			return false, err
		}
		if !exists {
			return true, nil
		}
	}
	return false, nil
}
