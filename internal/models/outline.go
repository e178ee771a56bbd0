// ABOUTME: Outline structures - the declared section graph driving a run
// ABOUTME: Produced once by the outline provider and read-only afterwards
package models

// Priority orders sections competing for the same ready slot
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Rank returns a numeric rank for scheduling; higher runs first
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 0
	}
	return -1
}

// ValidPriority reports whether p is a known priority level
func ValidPriority(p Priority) bool {
	return p.Rank() >= 0
}

// Section is one unit of work: a part of the final report with declared
// dependencies, data requirements, and a quality gate.
type Section struct {
	ID               string   `json:"id" yaml:"id"`
	Title            string   `json:"title" yaml:"title"`
	DependsOn        []string `json:"depends_on,omitempty" yaml:"depends_on"`
	MinBeads         int      `json:"min_beads" yaml:"min_beads"`
	TargetLength     int      `json:"target_length" yaml:"target_length"`
	QualityThreshold float64  `json:"quality_threshold" yaml:"quality_threshold"`
	Priority         Priority `json:"priority" yaml:"priority"`
	RequiredElements []string `json:"required_elements,omitempty" yaml:"required_elements"`
}

// Outline is the full declared unit-of-work graph for a run
type Outline struct {
	Title    string    `json:"title" yaml:"title"`
	Sections []Section `json:"sections" yaml:"sections"`
}

// Section returns the section with the given id, or nil
func (o *Outline) Section(id string) *Section {
	for i := range o.Sections {
		if o.Sections[i].ID == id {
			return &o.Sections[i]
		}
	}
	return nil
}

// SectionIDs returns section ids in declared order
func (o *Outline) SectionIDs() []string {
	ids := make([]string, len(o.Sections))
	for i, s := range o.Sections {
		ids[i] = s.ID
	}
	return ids
}
