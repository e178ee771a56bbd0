// ABOUTME: Bead is the atomic, typed, provenance-carrying research record
// ABOUTME: Every persisted unit of knowledge in the store is a bead
package models

import "time"

// BeadType identifies the shape of a bead's content payload
type BeadType string

const (
	TypeSource       BeadType = "source"
	TypeFact         BeadType = "fact"
	TypeMetric       BeadType = "metric"
	TypeEvent        BeadType = "event"
	TypeQuote        BeadType = "quote"
	TypeInsight      BeadType = "insight"
	TypeTable        BeadType = "table"
	TypeChart        BeadType = "chart"
	TypeQuestion     BeadType = "question"
	TypeRelationship BeadType = "relationship"
)

// AllBeadTypes lists every known bead type
var AllBeadTypes = []BeadType{
	TypeSource, TypeFact, TypeMetric, TypeEvent, TypeQuote,
	TypeInsight, TypeTable, TypeChart, TypeQuestion, TypeRelationship,
}

// ReviewStatus is the human review state of a bead
type ReviewStatus string

const (
	StatusUnreviewed ReviewStatus = "unreviewed"
	StatusApproved   ReviewStatus = "approved"
	StatusFlagged    ReviewStatus = "flagged"
	StatusRejected   ReviewStatus = "rejected"
)

// RelationType labels a directed edge between two beads
type RelationType string

const (
	RelSupports    RelationType = "supports"
	RelContradicts RelationType = "contradicts"
	RelElaborates  RelationType = "elaborates"
	RelReplaces    RelationType = "replaces"
)

// ValidRelationType reports whether t is a known relationship type
func ValidRelationType(t RelationType) bool {
	switch t {
	case RelSupports, RelContradicts, RelElaborates, RelReplaces:
		return true
	}
	return false
}

// Source is the citation block tracing a bead back to its origin
type Source struct {
	Origin      string    `json:"origin"` // sec_filing, transcript, market_data, fundamental, news, third_party
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Path        string    `json:"path,omitempty"`
	RetrievedAt time.Time `json:"retrieved_at"`
}

// Relationship is one outgoing edge carried on a bead
type Relationship struct {
	Type     RelationType `json:"type"`
	TargetID string       `json:"target_id"`
	Strength float64      `json:"strength"`
}

// Tags holds the section and topic labels attached to a bead
type Tags struct {
	Sections []string `json:"sections"`
	Topics   []string `json:"topics,omitempty"`
}

// Bead is an atomic research record. Beads are immutable by default:
// versioned change goes through Supersede, not Update.
type Bead struct {
	ID            string         `json:"id"`
	Type          BeadType       `json:"type"`
	Title         string         `json:"title"`
	Summary       string         `json:"summary,omitempty"`
	Content       map[string]any `json:"content"`
	Source        Source         `json:"source"`
	Confidence    float64        `json:"confidence"`
	QualityScore  float64        `json:"quality_score"` // derived, never hand-set
	Freshness     time.Time      `json:"freshness,omitempty"`
	Version       int            `json:"version"`
	Supersedes    string         `json:"supersedes,omitempty"`
	ReviewStatus  ReviewStatus   `json:"review_status"`
	Archived      bool           `json:"archived"`
	Tags          Tags           `json:"tags"`
	Relationships []Relationship `json:"relationships,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// HasSection reports whether the bead is tagged to the given section
func (b *Bead) HasSection(section string) bool {
	for _, s := range b.Tags.Sections {
		if s == section {
			return true
		}
	}
	return false
}

// HasTopic reports whether the bead carries the given topic tag
func (b *Bead) HasTopic(topic string) bool {
	for _, t := range b.Tags.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
