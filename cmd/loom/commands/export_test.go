// ABOUTME: Tests for the export command over a temp store
// ABOUTME: The dump carries beads, edges, run states, artifacts, and checkpoints

package commands

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/loomworks/beadloom/internal/checkpoint"
	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

func TestExportCmd_IncludesCheckpoints(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOOM_DB", filepath.Join(dir, "loom.db"))

	store, err := sqlite.NewStorageWithPath(filepath.Join(dir, "loom.db"))
	if err != nil {
		t.Fatalf("NewStorageWithPath() error = %v", err)
	}
	bead := &models.Bead{
		Type:       models.TypeFact,
		Title:      "observed fact",
		Summary:    "an observation",
		Content:    map[string]any{"statement": "revenue grew", "basis": "reported filings"},
		Confidence: 0.8,
		Freshness:  time.Now().UTC(),
		Source: models.Source{
			Origin:      "sec_filing",
			Title:       "10-K",
			URL:         "https://example.com/10k",
			RetrievedAt: time.Now().UTC(),
		},
		Tags: models.Tags{Sections: []string{"overview"}},
	}
	beadID, err := store.CreateBead(bead)
	if err != nil {
		t.Fatalf("CreateBead() error = %v", err)
	}
	_ = store.Close()

	ckptDir := filepath.Join(dir, "ckpts")
	ckpts, err := checkpoint.NewStore(ckptDir)
	if err != nil {
		t.Fatalf("checkpoint.NewStore() error = %v", err)
	}
	saved := checkpoint.UnitCheckpoint{
		SectionID:    "overview",
		Status:       models.UnitComplete,
		QualityScore: 0.9,
		CompletedAt:  time.Now().UTC(),
	}
	if err := ckpts.Save(checkpoint.PhaseSections, "overview", saved); err != nil {
		t.Fatalf("checkpoint Save() error = %v", err)
	}

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"export", "--checkpoints", ckptDir})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("export command error = %v\noutput:\n%s", err, out.String())
	}

	var doc struct {
		Beads []struct {
			ID string `json:"id"`
		} `json:"beads"`
		Checkpoints []struct {
			Phase string          `json:"phase"`
			Unit  string          `json:"unit"`
			State json.RawMessage `json:"state"`
		} `json:"checkpoints"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("export output is not JSON: %v\noutput:\n%s", err, out.String())
	}
	if len(doc.Beads) != 1 || doc.Beads[0].ID != beadID {
		t.Errorf("exported beads = %+v, want [%s]", doc.Beads, beadID)
	}
	if len(doc.Checkpoints) != 1 {
		t.Fatalf("exported checkpoints = %d, want 1", len(doc.Checkpoints))
	}
	got := doc.Checkpoints[0]
	if got.Phase != checkpoint.PhaseSections || got.Unit != "overview" {
		t.Errorf("checkpoint key = %s/%s, want %s/overview", got.Phase, got.Unit, checkpoint.PhaseSections)
	}
	var state checkpoint.UnitCheckpoint
	if err := json.Unmarshal(got.State, &state); err != nil {
		t.Fatalf("checkpoint state is not JSON: %v", err)
	}
	if state.SectionID != "overview" || state.Status != models.UnitComplete {
		t.Errorf("checkpoint state = %+v, want complete overview", state)
	}
}
