// ABOUTME: End-to-end test for the run command over a temp store
// ABOUTME: Uses the capability seam so no external service is called

package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/pipeline"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

type scriptedCapability struct{}

func (scriptedCapability) Draft(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	ids := make([]string, len(req.Beads))
	for i, b := range req.Beads {
		ids[i] = b.ID
	}
	return &pipeline.Result{
		Text:      "The business grew steadily. Margins held. Guidance stayed conservative.",
		Citations: ids,
	}, nil
}

func (s scriptedCapability) Critique(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return &pipeline.Result{Text: "tighten sourcing"}, nil
}

func (s scriptedCapability) Optimize(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return s.Draft(ctx, req)
}

const testOutlineYAML = `title: mini report
sections:
  - id: overview
    title: Overview
    min_beads: 1
    priority: high
  - id: valuation
    title: Valuation
    depends_on: [overview]
    min_beads: 1
`

func TestRunCmd_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "loom.db")
	t.Setenv("LOOM_DB", dbPath)

	outlinePath := filepath.Join(dir, "outline.yaml")
	if err := os.WriteFile(outlinePath, []byte(testOutlineYAML), 0o644); err != nil {
		t.Fatalf("writing outline: %v", err)
	}

	// Seed one bead per section
	store, err := sqlite.NewStorageWithPath(dbPath)
	if err != nil {
		t.Fatalf("NewStorageWithPath() error = %v", err)
	}
	for _, section := range []string{"overview", "valuation"} {
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
			Tags: models.Tags{Sections: []string{section}},
		}
		if _, err := store.CreateBead(bead); err != nil {
			t.Fatalf("CreateBead() error = %v", err)
		}
	}
	_ = store.Close()

	runCapability = scriptedCapability{}
	defer func() { runCapability = nil }()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"run", outlinePath, "--checkpoints", filepath.Join(dir, "ckpts"), "--workers", "2"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("run command error = %v\noutput:\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "2 complete") {
		t.Errorf("run output missing completion summary:\n%s", out.String())
	}

	// Artifacts landed for both sections
	store, err = sqlite.NewStorageWithPath(dbPath)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	artifactIDs := map[string]string{}
	for _, section := range []string{"overview", "valuation"} {
		art, err := store.Artifacts().GetBySection(section)
		if err != nil || art == nil {
			t.Fatalf("no artifact for %s: %v", section, err)
		}
		artifactIDs[section] = art.ID
	}
	_ = store.Close()

	// A rerun resumes from checkpoints and regenerates nothing
	rerun := NewRootCmd()
	var rerunOut bytes.Buffer
	rerun.SetOut(&rerunOut)
	rerun.SetArgs([]string{"run", outlinePath, "--checkpoints", filepath.Join(dir, "ckpts")})
	if err := rerun.Execute(); err != nil {
		t.Fatalf("rerun error = %v\noutput:\n%s", err, rerunOut.String())
	}

	store, err = sqlite.NewStorageWithPath(dbPath)
	if err != nil {
		t.Fatalf("reopening store: %v", err)
	}
	defer func() { _ = store.Close() }()
	for section, id := range artifactIDs {
		art, err := store.Artifacts().GetBySection(section)
		if err != nil || art == nil {
			t.Fatalf("artifact for %s lost on rerun: %v", section, err)
		}
		if art.ID != id {
			t.Errorf("artifact for %s regenerated on resume: %s != %s", section, art.ID, id)
		}
	}
}

func TestRunCmd_RejectsCyclicOutline(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOOM_DB", filepath.Join(dir, "loom.db"))

	outlinePath := filepath.Join(dir, "outline.yaml")
	cyclic := `title: broken
sections:
  - id: a
    title: A
    depends_on: [b]
  - id: b
    title: B
    depends_on: [a]
`
	if err := os.WriteFile(outlinePath, []byte(cyclic), 0o644); err != nil {
		t.Fatalf("writing outline: %v", err)
	}

	runCapability = scriptedCapability{}
	defer func() { runCapability = nil }()

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"run", outlinePath, "--checkpoints", filepath.Join(dir, "ckpts")})

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("Execute() error = %v, want dependency cycle rejection", err)
	}
}
