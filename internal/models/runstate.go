// ABOUTME: Per-section execution state for the unit pipeline
// ABOUTME: Mutated only by the pipeline; terminal states never reopen automatically
package models

import "time"

// UnitStatus tracks a section through the pipeline state machine
type UnitStatus string

const (
	UnitPending   UnitStatus = "pending"
	UnitReady     UnitStatus = "ready"
	UnitRunning   UnitStatus = "running"
	UnitCritiqued UnitStatus = "critiqued"
	UnitOptimized UnitStatus = "optimized"
	UnitComplete  UnitStatus = "complete"
	UnitFailed    UnitStatus = "failed"
	UnitSkipped   UnitStatus = "skipped"
)

// Terminal reports whether the status is final. Terminal units require a
// manual rerun; the scheduler never reopens them.
func (s UnitStatus) Terminal() bool {
	return s == UnitComplete || s == UnitFailed || s == UnitSkipped
}

// UnitRunState is the execution record for one section
type UnitRunState struct {
	SectionID        string     `json:"section_id"`
	Status           UnitStatus `json:"status"`
	IterationCount   int        `json:"iteration_count"`
	LastQualityScore float64    `json:"last_quality_score"`
	Error            string     `json:"error,omitempty"`
	Warnings         []string   `json:"warnings,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AddWarning appends a warning, skipping exact duplicates
func (u *UnitRunState) AddWarning(w string) {
	for _, existing := range u.Warnings {
		if existing == w {
			return
		}
	}
	u.Warnings = append(u.Warnings, w)
}
