// ABOUTME: Tests for index search, stats, and incremental/rebuild equivalence
// ABOUTME: Equivalence across random operation sequences is the core property
package index

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

func newTestIndex(t *testing.T) (*sqlite.Storage, *Index) {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	idx, err := New(store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return store, idx
}

func makeBead(section string, confidence float64) *models.Bead {
	return &models.Bead{
		Type:    models.TypeMetric,
		Title:   "metric bead",
		Summary: "a metric",
		Content: map[string]any{
			"metric": "revenue",
			"value":  100.0,
			"unit":   "USD billions",
			"period": "FY2023",
		},
		Source: models.Source{
			Origin:      "sec_filing",
			Title:       "10-K",
			URL:         "https://example.com/10k",
			RetrievedAt: time.Now().UTC(),
		},
		Confidence: confidence,
		Freshness:  time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		Tags:       models.Tags{Sections: []string{section}, Topics: []string{"growth"}},
	}
}

func TestSearch_SectionFilterAndOrdering(t *testing.T) {
	store, idx := newTestIndex(t)

	lowID, _ := store.CreateBead(makeBead("valuation", 0.4))
	highID, _ := store.CreateBead(makeBead("valuation", 0.9))
	_, _ = store.CreateBead(makeBead("risks", 0.8))

	got := idx.Search(Filters{Section: "valuation"})
	if len(got) != 2 {
		t.Fatalf("Search(valuation) = %d beads, want 2", len(got))
	}
	// Descending confidence, then ascending id
	if got[0].ID != highID || got[1].ID != lowID {
		t.Errorf("order = [%s %s], want [%s %s]", got[0].ID, got[1].ID, highID, lowID)
	}
}

func TestSearch_TieBreakByID(t *testing.T) {
	store, idx := newTestIndex(t)
	a, _ := store.CreateBead(makeBead("valuation", 0.7))
	b, _ := store.CreateBead(makeBead("valuation", 0.7))

	first, second := a, b
	if b < a {
		first, second = b, a
	}
	got := idx.Search(Filters{Section: "valuation"})
	if got[0].ID != first || got[1].ID != second {
		t.Errorf("tie order = [%s %s], want ascending ids [%s %s]", got[0].ID, got[1].ID, first, second)
	}
}

func TestSearch_Thresholds(t *testing.T) {
	store, idx := newTestIndex(t)
	_, _ = store.CreateBead(makeBead("valuation", 0.3))
	keep, _ := store.CreateBead(makeBead("valuation", 0.8))

	got := idx.Search(Filters{Section: "valuation", MinConfidence: 0.5})
	if len(got) != 1 || got[0].ID != keep {
		t.Errorf("Search(min_confidence=0.5) = %v, want only %s", ids(got), keep)
	}

	got = idx.Search(Filters{Section: "valuation", MinQuality: 0.99})
	for _, b := range got {
		if b.QualityScore < 0.99 {
			t.Errorf("bead %s quality %v below floor", b.ID, b.QualityScore)
		}
	}
}

func TestSearch_ExcludesDeletedBeads(t *testing.T) {
	store, idx := newTestIndex(t)
	id, _ := store.CreateBead(makeBead("valuation", 0.8))

	if got := idx.Search(Filters{Section: "valuation"}); len(got) != 1 {
		t.Fatalf("before delete: %d beads, want 1", len(got))
	}

	if _, err := store.DeleteBead(id); err != nil {
		t.Fatalf("DeleteBead() error = %v", err)
	}

	if got := idx.Search(Filters{Section: "valuation"}); len(got) != 0 {
		t.Errorf("after delete: %d beads, want 0", len(got))
	}
	// Still retrievable from the store itself
	if _, err := store.GetBead(id); err != nil {
		t.Errorf("GetBead() after delete error = %v", err)
	}
}

func TestSearch_TypeTopicOriginFilters(t *testing.T) {
	store, idx := newTestIndex(t)
	_, _ = store.CreateBead(makeBead("valuation", 0.8))

	quote := makeBead("valuation", 0.6)
	quote.Type = models.TypeQuote
	quote.Content = map[string]any{"text": "Margins will expand.", "speaker": "CFO"}
	quote.Source.Origin = "transcript"
	quote.Tags.Topics = []string{"margins"}
	quoteID, _ := store.CreateBead(quote)

	if got := idx.Search(Filters{Type: models.TypeQuote}); len(got) != 1 || got[0].ID != quoteID {
		t.Errorf("Search(type=quote) = %v, want [%s]", ids(got), quoteID)
	}
	if got := idx.Search(Filters{Topic: "margins"}); len(got) != 1 || got[0].ID != quoteID {
		t.Errorf("Search(topic=margins) = %v, want [%s]", ids(got), quoteID)
	}
	if got := idx.Search(Filters{Origin: "transcript"}); len(got) != 1 || got[0].ID != quoteID {
		t.Errorf("Search(origin=transcript) = %v, want [%s]", ids(got), quoteID)
	}
}

func TestStats(t *testing.T) {
	store, idx := newTestIndex(t)
	_, _ = store.CreateBead(makeBead("valuation", 0.4))
	_, _ = store.CreateBead(makeBead("valuation", 0.8))

	stats := idx.Stats()
	if stats.Total != 2 {
		t.Errorf("Total = %d, want 2", stats.Total)
	}
	if stats.ByType["metric"] != 2 {
		t.Errorf("ByType[metric] = %d, want 2", stats.ByType["metric"])
	}
	if diff := stats.AvgConfidence - 0.6; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AvgConfidence = %v, want 0.6", stats.AvgConfidence)
	}
}

// TestRebuildEquivalence runs a random sequence of create/update/supersede/
// delete operations and asserts the incrementally-maintained index matches a
// freshly rebuilt one after every step.
func TestRebuildEquivalence(t *testing.T) {
	store, idx := newTestIndex(t)
	rng := rand.New(rand.NewSource(42))
	sections := []string{"overview", "valuation", "risks"}

	var ids []string
	versions := map[string]int{}

	snapshot := func() map[string][]string {
		views := map[string][]string{}
		for _, s := range sections {
			for _, b := range idx.Search(Filters{Section: s}) {
				views[s] = append(views[s], b.ID)
			}
		}
		return views
	}

	for step := 0; step < 120; step++ {
		op := rng.Intn(4)
		switch {
		case op == 0 || len(ids) == 0:
			section := sections[rng.Intn(len(sections))]
			id, err := store.CreateBead(makeBead(section, rng.Float64()))
			if err != nil {
				t.Fatalf("step %d create: %v", step, err)
			}
			ids = append(ids, id)
			versions[id] = 1
		case op == 1:
			id := ids[rng.Intn(len(ids))]
			conf := rng.Float64()
			if _, err := store.UpdateBead(id, sqlite.Patch{Confidence: &conf}); err != nil {
				t.Fatalf("step %d update: %v", step, err)
			}
		case op == 2:
			id := ids[rng.Intn(len(ids))]
			if versions[id] == 0 {
				continue // already superseded or deleted from play
			}
			section := sections[rng.Intn(len(sections))]
			newID, err := store.SupersedeBead(id, versions[id], makeBead(section, rng.Float64()))
			if err != nil {
				t.Fatalf("step %d supersede: %v", step, err)
			}
			versions[newID] = versions[id] + 1
			versions[id] = 0
			ids = append(ids, newID)
		default:
			id := ids[rng.Intn(len(ids))]
			if _, err := store.DeleteBead(id); err != nil {
				t.Fatalf("step %d delete: %v", step, err)
			}
			versions[id] = 0
		}

		incremental := snapshot()
		if _, err := idx.Rebuild(); err != nil {
			t.Fatalf("step %d rebuild: %v", step, err)
		}
		rebuilt := snapshot()
		if !reflect.DeepEqual(incremental, rebuilt) {
			t.Fatalf("step %d: incremental index %v != rebuilt %v", step, incremental, rebuilt)
		}
	}
}

func TestSectionsAndTopics(t *testing.T) {
	store, idx := newTestIndex(t)
	_, _ = store.CreateBead(makeBead("valuation", 0.8))
	_, _ = store.CreateBead(makeBead("overview", 0.8))

	sections := idx.Sections()
	if len(sections) != 2 || sections[0] != "overview" || sections[1] != "valuation" {
		t.Errorf("Sections() = %v, want [overview valuation]", sections)
	}
	topics := idx.Topics()
	if len(topics) != 1 || topics[0] != "growth" {
		t.Errorf("Topics() = %v, want [growth]", topics)
	}
}

func ids(beads []*models.Bead) []string {
	out := make([]string, len(beads))
	for i, b := range beads {
		out[i] = b.ID
	}
	return out
}
