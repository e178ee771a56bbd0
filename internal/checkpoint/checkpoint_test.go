// ABOUTME: Tests for atomic checkpoint writes, history retention, and resume
// ABOUTME: Stale checkpoints referencing missing data must re-queue their unit
package checkpoint

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newStore(t)

	in := UnitCheckpoint{
		SectionID:    "overview",
		Status:       models.UnitComplete,
		ArtifactID:   "art-1",
		QualityScore: 0.8,
		CompletedAt:  time.Now().UTC(),
	}
	if err := s.Save(PhaseSections, "overview", in); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var out UnitCheckpoint
	found, err := s.Load(PhaseSections, "overview", &out)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !found {
		t.Fatal("Load() = not found, want found")
	}
	if out.SectionID != "overview" || out.Status != models.UnitComplete || out.ArtifactID != "art-1" {
		t.Errorf("Load() = %+v, want saved checkpoint", out)
	}
}

func TestLoad_Absent(t *testing.T) {
	s := newStore(t)
	var out UnitCheckpoint
	found, err := s.Load(PhaseSections, "ghost", &out)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load(absent) = found, want not found")
	}
}

func TestSave_RetainsHistory(t *testing.T) {
	s := newStore(t)

	first := UnitCheckpoint{SectionID: "overview", Status: models.UnitRunning}
	if err := s.Save(PhaseSections, "overview", first); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	second := UnitCheckpoint{SectionID: "overview", Status: models.UnitComplete}
	if err := s.Save(PhaseSections, "overview", second); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	// Current checkpoint reflects the newest write
	var out UnitCheckpoint
	if _, err := s.Load(PhaseSections, "overview", &out); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if out.Status != models.UnitComplete {
		t.Errorf("Status = %s, want complete", out.Status)
	}

	// The superseded checkpoint is retained for audit
	entries, err := os.ReadDir(filepath.Join(s.Dir(), "history"))
	if err != nil {
		t.Fatalf("read history: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("history has %d files, want 1", len(entries))
	}
}

func TestSave_NoTempLeftovers(t *testing.T) {
	s := newStore(t)
	if err := s.Save(PhaseSections, "overview", UnitCheckpoint{SectionID: "overview"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	entries, _ := os.ReadDir(s.Dir())
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) != ".json" {
			t.Errorf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestList(t *testing.T) {
	s := newStore(t)
	_ = s.Save(PhaseSections, "overview", UnitCheckpoint{SectionID: "overview"})
	_ = s.Save(PhaseSections, "risks", UnitCheckpoint{SectionID: "risks"})

	keys, err := s.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("List() = %v, want 2 keys", keys)
	}
}

func testOutline() *models.Outline {
	return &models.Outline{Sections: []models.Section{
		{ID: "overview"},
		{ID: "valuation", DependsOn: []string{"overview"}},
		{ID: "risks", DependsOn: []string{"overview"}},
	}}
}

func seedArtifact(t *testing.T, store *sqlite.Storage, sectionID string) *models.SectionArtifact {
	t.Helper()
	artifact := &models.SectionArtifact{SectionID: sectionID, Text: "done", WordCount: 1}
	if err := store.Artifacts().Save(artifact); err != nil {
		t.Fatalf("seed artifact: %v", err)
	}
	return artifact
}

func TestResume_SkipsCompletedUnits(t *testing.T) {
	s := newStore(t)
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("storage error = %v", err)
	}
	defer func() { _ = store.Close() }()

	artifact := seedArtifact(t, store, "overview")
	_ = s.Save(PhaseSections, "overview", UnitCheckpoint{
		SectionID: "overview", Status: models.UnitComplete, ArtifactID: artifact.ID,
	})

	plan, err := s.Resume(testOutline(), store)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(plan.CompletedIDs) != 1 || plan.CompletedIDs[0] != "overview" {
		t.Errorf("CompletedIDs = %v, want [overview]", plan.CompletedIDs)
	}
	if len(plan.PendingIDs) != 2 {
		t.Errorf("PendingIDs = %v, want [valuation risks]", plan.PendingIDs)
	}
}

func TestResume_StaleCheckpointRequeued(t *testing.T) {
	s := newStore(t)
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("storage error = %v", err)
	}
	defer func() { _ = store.Close() }()

	// Checkpoint claims complete but no artifact exists in the store
	_ = s.Save(PhaseSections, "overview", UnitCheckpoint{
		SectionID: "overview", Status: models.UnitComplete, ArtifactID: "art-gone",
	})

	plan, err := s.Resume(testOutline(), store)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(plan.CompletedIDs) != 0 {
		t.Errorf("CompletedIDs = %v, want none for stale checkpoint", plan.CompletedIDs)
	}
	if len(plan.PendingIDs) != 3 {
		t.Errorf("PendingIDs = %v, want all three sections", plan.PendingIDs)
	}
}

func TestResume_MissingCitedBeadIsStale(t *testing.T) {
	s := newStore(t)
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("storage error = %v", err)
	}
	defer func() { _ = store.Close() }()

	artifact := seedArtifact(t, store, "overview")
	_ = s.Save(PhaseSections, "overview", UnitCheckpoint{
		SectionID: "overview", Status: models.UnitComplete,
		ArtifactID: artifact.ID, CitedBeads: []string{"bd-vanished"},
	})

	plan, err := s.Resume(testOutline(), store)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(plan.CompletedIDs) != 0 {
		t.Errorf("CompletedIDs = %v, want none when cited bead is missing", plan.CompletedIDs)
	}
}

func TestResume_SkippedAndFailed(t *testing.T) {
	s := newStore(t)
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("storage error = %v", err)
	}
	defer func() { _ = store.Close() }()

	_ = s.Save(PhaseSections, "overview", UnitCheckpoint{SectionID: "overview", Status: models.UnitSkipped})
	_ = s.Save(PhaseSections, "valuation", UnitCheckpoint{SectionID: "valuation", Status: models.UnitFailed})

	plan, err := s.Resume(testOutline(), store)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if len(plan.SkippedIDs) != 1 || plan.SkippedIDs[0] != "overview" {
		t.Errorf("SkippedIDs = %v, want [overview]", plan.SkippedIDs)
	}
	// Failed units are re-queued on restart, not trusted
	if len(plan.PendingIDs) != 2 {
		t.Errorf("PendingIDs = %v, want [valuation risks]", plan.PendingIDs)
	}
}
