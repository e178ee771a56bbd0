// ABOUTME: Derived index over the bead store - by section, topic, origin, type
// ABOUTME: A rebuildable cache, never a second source of truth
package index

import (
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// Filters narrows a search. Zero values mean "any". Rejected and archived
// beads never appear in results regardless of filters.
type Filters struct {
	Section       string
	Type          models.BeadType
	Topic         string
	Origin        string
	MinConfidence float64
	MinQuality    float64
	ReviewStatus  models.ReviewStatus
}

// Stats summarizes the indexed population
type Stats struct {
	Total         int            `json:"total"`
	ByType        map[string]int `json:"by_type"`
	AvgConfidence float64        `json:"avg_confidence"`
	AvgQuality    float64        `json:"avg_quality"`
}

// Index answers "which beads match filter X" without rescanning the store.
// It is maintained incrementally through the storage invalidation hook and
// can always be rebuilt from the store alone.
type Index struct {
	mu        sync.RWMutex
	store     *sqlite.Storage
	beads     map[string]*models.Bead // active beads only
	bySection map[string]map[string]bool
	byTopic   map[string]map[string]bool
	byOrigin  map[string]map[string]bool
}

// New builds an index over the store, registers it for incremental
// invalidation, and performs the initial load.
func New(store *sqlite.Storage) (*Index, error) {
	idx := &Index{store: store}
	store.SetInvalidator(idx)
	if _, err := idx.Rebuild(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Rebuild recomputes the index from the store. It is idempotent: given the
// same store contents it always produces the same index, matching whatever
// incremental maintenance would have produced.
func (idx *Index) Rebuild() (Stats, error) {
	active, err := idx.store.ActiveBeads()
	if err != nil {
		return Stats{}, fmt.Errorf("index rebuild: %w", err)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.beads = make(map[string]*models.Bead, len(active))
	idx.bySection = map[string]map[string]bool{}
	idx.byTopic = map[string]map[string]bool{}
	idx.byOrigin = map[string]map[string]bool{}
	for _, bead := range active {
		idx.insertLocked(bead)
	}
	return idx.statsLocked(), nil
}

// InvalidateBead refreshes one bead's index entries after a store write.
// Only the keys touching the affected bead are recomputed.
func (idx *Index) InvalidateBead(stale *models.Bead) {
	if stale == nil || stale.ID == "" {
		return
	}

	fresh, err := idx.store.GetBead(stale.ID)
	if err != nil {
		// The id is unknown to the store; drop whatever we had cached.
		log.Printf("[index] invalidate %s: %v", stale.ID, err)
		fresh = nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.removeLocked(stale.ID)
	if fresh != nil && !fresh.Archived && fresh.ReviewStatus != models.StatusRejected {
		idx.insertLocked(fresh)
	}
}

func (idx *Index) insertLocked(bead *models.Bead) {
	idx.beads[bead.ID] = bead
	for _, s := range bead.Tags.Sections {
		addKey(idx.bySection, s, bead.ID)
	}
	for _, t := range bead.Tags.Topics {
		addKey(idx.byTopic, t, bead.ID)
	}
	addKey(idx.byOrigin, bead.Source.Origin, bead.ID)
}

func (idx *Index) removeLocked(id string) {
	old, ok := idx.beads[id]
	if !ok {
		return
	}
	delete(idx.beads, id)
	for _, s := range old.Tags.Sections {
		dropKey(idx.bySection, s, id)
	}
	for _, t := range old.Tags.Topics {
		dropKey(idx.byTopic, t, id)
	}
	dropKey(idx.byOrigin, old.Source.Origin, id)
}

// Search returns beads matching all supplied filters. The result is a
// consistent snapshot ordered by descending confidence then ascending id, so
// downstream prompts consume beads in a reproducible order.
func (idx *Index) Search(f Filters) []*models.Bead {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// Start from the narrowest posting list available
	var candidates map[string]bool
	switch {
	case f.Section != "":
		candidates = idx.bySection[f.Section]
	case f.Topic != "":
		candidates = idx.byTopic[f.Topic]
	case f.Origin != "":
		candidates = idx.byOrigin[f.Origin]
	}

	var out []*models.Bead
	consider := func(bead *models.Bead) {
		if f.Section != "" && !bead.HasSection(f.Section) {
			return
		}
		if f.Topic != "" && !bead.HasTopic(f.Topic) {
			return
		}
		if f.Origin != "" && bead.Source.Origin != f.Origin {
			return
		}
		if f.Type != "" && bead.Type != f.Type {
			return
		}
		if bead.Confidence < f.MinConfidence {
			return
		}
		if bead.QualityScore < f.MinQuality {
			return
		}
		if f.ReviewStatus != "" && bead.ReviewStatus != f.ReviewStatus {
			return
		}
		out = append(out, bead)
	}

	if candidates != nil {
		for id := range candidates {
			if bead, ok := idx.beads[id]; ok {
				consider(bead)
			}
		}
	} else {
		for _, bead := range idx.beads {
			consider(bead)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats returns aggregate statistics over the indexed beads
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.statsLocked()
}

func (idx *Index) statsLocked() Stats {
	stats := Stats{
		Total:  len(idx.beads),
		ByType: map[string]int{},
	}
	var sumConf, sumQual float64
	for _, bead := range idx.beads {
		stats.ByType[string(bead.Type)]++
		sumConf += bead.Confidence
		sumQual += bead.QualityScore
	}
	if stats.Total > 0 {
		stats.AvgConfidence = sumConf / float64(stats.Total)
		stats.AvgQuality = sumQual / float64(stats.Total)
	}
	return stats
}

// Sections returns every section key with at least one indexed bead, sorted
func (idx *Index) Sections() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	keys := make([]string, 0, len(idx.bySection))
	for k := range idx.bySection {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Topics returns every topic key with at least one indexed bead, sorted
func (idx *Index) Topics() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	keys := make([]string, 0, len(idx.byTopic))
	for k := range idx.byTopic {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func addKey(m map[string]map[string]bool, key, id string) {
	if key == "" {
		return
	}
	set, ok := m[key]
	if !ok {
		set = map[string]bool{}
		m[key] = set
	}
	set[id] = true
}

func dropKey(m map[string]map[string]bool, key, id string) {
	if set, ok := m[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(m, key)
		}
	}
}
