// ABOUTME: Run report - per-unit outcomes, aggregate quality, open conflicts
// ABOUTME: Every run ends with one of these; never a silent partial success
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// UnitSummary is the reported outcome for one section
type UnitSummary struct {
	SectionID      string            `json:"section_id"`
	Title          string            `json:"title"`
	Status         models.UnitStatus `json:"status"`
	QualityScore   float64           `json:"quality_score"`
	IterationCount int               `json:"iteration_count"`
	WordCount      int               `json:"word_count"`
	Error          string            `json:"error,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
}

// RunReport enumerates every unit's terminal state plus run-level metrics.
type RunReport struct {
	Title       string            `json:"title"`
	GeneratedAt time.Time         `json:"generated_at"`
	Units       []UnitSummary     `json:"units"`
	Completed   int               `json:"completed"`
	Failed      int               `json:"failed"`
	Skipped     int               `json:"skipped"`
	AvgQuality  float64           `json:"avg_quality"`
	TotalWords  int               `json:"total_words"`
	Conflicts   []models.Conflict `json:"conflicts,omitempty"`
	HaltedBy    string            `json:"halted_by,omitempty"`
}

// Build assembles the report from persisted run state, artifacts, and any
// unresolved conflicts. Sections appear in declared outline order.
func Build(o *models.Outline, store *sqlite.Storage, conflicts []models.Conflict, haltedBy string) (*RunReport, error) {
	states, err := store.RunStates().All()
	if err != nil {
		return nil, fmt.Errorf("load run states: %w", err)
	}

	r := &RunReport{
		Title:       o.Title,
		GeneratedAt: time.Now().UTC(),
		Conflicts:   conflicts,
		HaltedBy:    haltedBy,
	}

	qualitySum := 0.0
	for _, sec := range o.Sections {
		unit := UnitSummary{SectionID: sec.ID, Title: sec.Title, Status: models.UnitPending}
		if st, ok := states[sec.ID]; ok {
			unit.Status = st.Status
			unit.QualityScore = st.LastQualityScore
			unit.IterationCount = st.IterationCount
			unit.Error = st.Error
			unit.Warnings = st.Warnings
		}
		if art, err := store.Artifacts().GetBySection(sec.ID); err == nil && art != nil {
			unit.WordCount = art.WordCount
		}

		switch unit.Status {
		case models.UnitComplete:
			r.Completed++
			qualitySum += unit.QualityScore
			r.TotalWords += unit.WordCount
		case models.UnitFailed:
			r.Failed++
		case models.UnitSkipped:
			r.Skipped++
		}
		r.Units = append(r.Units, unit)
	}
	if r.Completed > 0 {
		r.AvgQuality = qualitySum / float64(r.Completed)
	}
	return r, nil
}

// Success reports whether every section completed cleanly
func (r *RunReport) Success() bool {
	return r.Failed == 0 && r.Skipped == 0 && r.Completed == len(r.Units)
}

// Render formats the report for terminal output
func (r *RunReport) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run report: %s\n", r.Title)
	fmt.Fprintf(&b, "  %d complete, %d failed, %d skipped", r.Completed, r.Failed, r.Skipped)
	if r.Completed > 0 {
		fmt.Fprintf(&b, " | avg quality %.2f | %d words", r.AvgQuality, r.TotalWords)
	}
	b.WriteString("\n")
	if r.HaltedBy != "" {
		fmt.Fprintf(&b, "  HALTED: critical section %s failed\n", r.HaltedBy)
	}

	for _, u := range r.Units {
		fmt.Fprintf(&b, "\n  [%-8s] %s (%s)", u.Status, u.Title, u.SectionID)
		if u.Status == models.UnitComplete {
			fmt.Fprintf(&b, " quality=%.2f words=%d iterations=%d", u.QualityScore, u.WordCount, u.IterationCount)
		}
		if u.Error != "" {
			fmt.Fprintf(&b, "\n      error: %s", u.Error)
		}
		for _, w := range u.Warnings {
			fmt.Fprintf(&b, "\n      warning: %s", w)
		}
	}
	b.WriteString("\n")

	if len(r.Conflicts) > 0 {
		fmt.Fprintf(&b, "\nUnresolved conflicts (%d):\n", len(r.Conflicts))
		for _, c := range r.Conflicts {
			fmt.Fprintf(&b, "  %s: %d values, spread %.1f%%", c.Key, len(c.BeadIDs), c.Spread*100)
			if c.Proposed.PreferredID != "" {
				fmt.Fprintf(&b, " (suggest %s: %s)", c.Proposed.PreferredID, c.Proposed.Reason)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
