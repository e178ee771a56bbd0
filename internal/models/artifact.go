// ABOUTME: Section artifact - the persisted output of one completed unit
// ABOUTME: Consumed downstream by the assembly/render collaborator
package models

import "time"

// Citation ties a span of generated text back to a bead and its source
type Citation struct {
	BeadID     string `json:"bead_id"`
	SourcePath string `json:"source_path,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
}

// SectionArtifact is the final output for one section, with the citation
// list recorded as an explicit drafting output rather than inferred later.
type SectionArtifact struct {
	ID           string     `json:"id"`
	SectionID    string     `json:"section_id"`
	Text         string     `json:"text"`
	Citations    []Citation `json:"citations"`
	QualityScore float64    `json:"quality_score"`
	WordCount    int        `json:"word_count"`
	CreatedAt    time.Time  `json:"created_at"`
}
