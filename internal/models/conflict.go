// ABOUTME: Conflict structures produced by the conflict detector
// ABOUTME: Conflicts are advisory; the contending beads are never mutated
package models

// Resolution is the detector's proposed (never auto-applied) winner
type Resolution struct {
	PreferredID string `json:"preferred_id"`
	Reason      string `json:"reason"`
}

// Conflict records two or more beads asserting incompatible values for the
// same underlying fact.
type Conflict struct {
	Key      string     `json:"key"`     // metric name | period bucket
	BeadIDs  []string   `json:"bead_ids"`
	Values   []float64  `json:"values"`
	Spread   float64    `json:"spread"` // (max-min)/mean ratio that triggered detection
	Proposed Resolution `json:"proposed"`
}

// Involves reports whether the conflict names the given bead
func (c *Conflict) Involves(beadID string) bool {
	for _, id := range c.BeadIDs {
		if id == beadID {
			return true
		}
	}
	return false
}
