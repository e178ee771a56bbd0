// ABOUTME: Conflict detector - finds beads asserting incompatible values for one fact
// ABOUTME: Conflicts are reported with a proposed resolution, never applied
package conflict

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/loomworks/beadloom/internal/config"
	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// ScopeKind selects which slice of the store to scan
type ScopeKind string

const (
	ScopeAll     ScopeKind = "all"
	ScopeSection ScopeKind = "section"
	ScopeTopic   ScopeKind = "topic"
)

// Scope narrows conflict detection to a section or topic
type Scope struct {
	Kind  ScopeKind
	Value string
}

// Detector scans the index and relationship graph for metric beads that
// disagree on the same fact.
type Detector struct {
	idx   *index.Index
	store *sqlite.Storage
	cfg   *config.Config
}

// New creates a Detector using the config's variance threshold and source
// priority ranking.
func New(idx *index.Index, store *sqlite.Storage, cfg *config.Config) *Detector {
	return &Detector{idx: idx, store: store, cfg: cfg}
}

// Detect returns every conflict within the scope. The contending beads are
// left untouched; the proposed resolution is advisory until a caller accepts
// it explicitly.
func (d *Detector) Detect(scope Scope) ([]models.Conflict, error) {
	filters := index.Filters{Type: models.TypeMetric}
	switch scope.Kind {
	case ScopeAll, "":
	case ScopeSection:
		filters.Section = scope.Value
	case ScopeTopic:
		filters.Topic = scope.Value
	default:
		return nil, fmt.Errorf("unknown conflict scope %q", scope.Kind)
	}

	beads := d.idx.Search(filters)

	// Group by fact key: metric name plus period/freshness bucket
	groups := map[string][]*models.Bead{}
	for _, bead := range beads {
		key, ok := factKey(bead)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], bead)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var conflicts []models.Conflict
	for _, key := range keys {
		group, err := d.dropReplacedPairs(groups[key])
		if err != nil {
			return nil, err
		}
		if len(group) < 2 {
			continue
		}

		values := make([]float64, 0, len(group))
		ids := make([]string, 0, len(group))
		for _, bead := range group {
			v, ok := models.MetricValue(bead)
			if !ok {
				continue
			}
			values = append(values, v)
			ids = append(ids, bead.ID)
		}
		if len(values) < 2 {
			continue
		}

		spread := relativeSpread(values)
		if spread <= d.cfg.VarianceThreshold {
			continue
		}

		winner := d.resolve(group)
		conflicts = append(conflicts, models.Conflict{
			Key:     key,
			BeadIDs: ids,
			Values:  values,
			Spread:  spread,
			Proposed: models.Resolution{
				PreferredID: winner.ID,
				Reason: fmt.Sprintf("source %s ranks highest; freshness %s; confidence %.2f",
					winner.Source.Origin, winner.Freshness.Format("2006-01-02"), winner.Confidence),
			},
		})
	}
	return conflicts, nil
}

// dropReplacedPairs removes from the group any bead that another group
// member explicitly replaces (either via a replaces edge or a supersede
// pointer); an acknowledged replacement is not a disagreement.
func (d *Detector) dropReplacedPairs(group []*models.Bead) ([]*models.Bead, error) {
	replaced := map[string]bool{}
	for _, a := range group {
		for _, b := range group {
			if a.ID == b.ID {
				continue
			}
			if a.Supersedes == b.ID {
				replaced[b.ID] = true
				continue
			}
			linked, err := d.store.Relationships().Connected(a.ID, b.ID, models.RelReplaces)
			if err != nil {
				return nil, err
			}
			if linked {
				// The replaces edge points at the bead it retires
				for _, e := range mustOutgoing(d.store, a.ID) {
					if e.TargetID == b.ID && e.Type == models.RelReplaces {
						replaced[b.ID] = true
					}
				}
				for _, e := range mustOutgoing(d.store, b.ID) {
					if e.TargetID == a.ID && e.Type == models.RelReplaces {
						replaced[a.ID] = true
					}
				}
			}
		}
	}
	if len(replaced) == 0 {
		return group, nil
	}
	var out []*models.Bead
	for _, bead := range group {
		if !replaced[bead.ID] {
			out = append(out, bead)
		}
	}
	return out, nil
}

func mustOutgoing(store *sqlite.Storage, id string) []sqlite.Edge {
	edges, err := store.Relationships().Outgoing(id, models.RelReplaces)
	if err != nil {
		return nil
	}
	return edges
}

// resolve picks the advisory winner: highest-priority source origin, then
// most recent freshness, then highest confidence, then lowest id for
// determinism.
func (d *Detector) resolve(group []*models.Bead) *models.Bead {
	winner := group[0]
	for _, bead := range group[1:] {
		wr, br := d.cfg.SourceRank(winner.Source.Origin), d.cfg.SourceRank(bead.Source.Origin)
		switch {
		case br < wr:
			winner = bead
		case br == wr && bead.Freshness.After(winner.Freshness):
			winner = bead
		case br == wr && bead.Freshness.Equal(winner.Freshness) && bead.Confidence > winner.Confidence:
			winner = bead
		case br == wr && bead.Freshness.Equal(winner.Freshness) &&
			bead.Confidence == winner.Confidence && bead.ID < winner.ID:
			winner = bead
		}
	}
	return winner
}

// factKey buckets a metric bead: metric name plus declared period, falling
// back to the freshness year when no period is present.
func factKey(bead *models.Bead) (string, bool) {
	key, ok := models.MetricKey(bead)
	if !ok {
		return "", false
	}
	if strings.HasSuffix(key, "|") && !bead.Freshness.IsZero() {
		key += bead.Freshness.Format("2006")
	}
	return key, true
}

// relativeSpread is (max-min)/mean of the values; zero mean yields +Inf
// when the values differ at all.
func relativeSpread(values []float64) float64 {
	min, max, sum := values[0], values[0], 0.0
	for _, v := range values {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		sum += v
	}
	mean := sum / float64(len(values))
	if mean == 0 {
		if max != min {
			return math.Inf(1)
		}
		return 0
	}
	return math.Abs((max - min) / mean)
}
