// ABOUTME: Schema validation and derived quality scoring for beads
// ABOUTME: Validation runs on every write; quality is recomputed, never stored by hand
package models

import (
	"fmt"
	"strings"
)

const (
	// MaxTitleLen bounds the human-readable title
	MaxTitleLen = 100
	// MaxSummaryLen bounds the human-readable summary
	MaxSummaryLen = 300
)

// SchemaError reports one or more validation problems for a bead write.
// The write is rejected; nothing is coerced.
type SchemaError struct {
	BeadID   string
	Problems []string
}

func (e *SchemaError) Error() string {
	id := e.BeadID
	if id == "" {
		id = "(new)"
	}
	return fmt.Sprintf("bead %s failed schema validation: %s", id, strings.Join(e.Problems, "; "))
}

// requiredContent maps each bead type to the content keys it must carry
var requiredContent = map[BeadType][]string{
	TypeSource:       {"description"},
	TypeFact:         {"statement"},
	TypeMetric:       {"metric", "value", "unit", "period"},
	TypeEvent:        {"description", "date"},
	TypeQuote:        {"text", "speaker"},
	TypeInsight:      {"thesis"},
	TypeTable:        {"columns", "rows"},
	TypeChart:        {"chart_type", "series"},
	TypeQuestion:     {"question"},
	TypeRelationship: {"claim"},
}

// ValidBeadType reports whether t is a known bead type
func ValidBeadType(t BeadType) bool {
	_, ok := requiredContent[t]
	return ok
}

// Validate checks a bead against the per-type schema. It returns a
// *SchemaError listing every problem found, or nil if the bead is valid.
func Validate(b *Bead) error {
	var problems []string

	if !ValidBeadType(b.Type) {
		problems = append(problems, fmt.Sprintf("unknown type %q", b.Type))
	}
	if strings.TrimSpace(b.Title) == "" {
		problems = append(problems, "title is required")
	}
	if len([]rune(b.Title)) > MaxTitleLen {
		problems = append(problems, fmt.Sprintf("title exceeds %d chars", MaxTitleLen))
	}
	if len([]rune(b.Summary)) > MaxSummaryLen {
		problems = append(problems, fmt.Sprintf("summary exceeds %d chars", MaxSummaryLen))
	}
	if b.Confidence < 0 || b.Confidence > 1 {
		problems = append(problems, fmt.Sprintf("confidence %v outside [0,1]", b.Confidence))
	}
	if len(b.Tags.Sections) == 0 {
		problems = append(problems, "at least one section tag is required")
	}

	// Citation block is mandatory: every bead must be traceable
	if strings.TrimSpace(b.Source.Origin) == "" {
		problems = append(problems, "source.origin is required")
	}
	if strings.TrimSpace(b.Source.Title) == "" {
		problems = append(problems, "source.title is required")
	}
	if b.Source.URL == "" && b.Source.Path == "" {
		problems = append(problems, "source must carry a url or a file path")
	}
	if b.Source.RetrievedAt.IsZero() {
		problems = append(problems, "source.retrieved_at is required")
	}

	if keys, ok := requiredContent[b.Type]; ok {
		for _, k := range keys {
			if v, present := b.Content[k]; !present || v == nil {
				problems = append(problems, fmt.Sprintf("content.%s is required for type %s", k, b.Type))
			}
		}
	}
	if b.Type == TypeMetric {
		if v, ok := b.Content["value"]; ok && v != nil {
			if _, isNum := asFloat(v); !isNum {
				problems = append(problems, "content.value must be numeric for type metric")
			}
		}
	}

	for i, rel := range b.Relationships {
		if !ValidRelationType(rel.Type) {
			problems = append(problems, fmt.Sprintf("relationships[%d]: unknown type %q", i, rel.Type))
		}
		if rel.TargetID == "" {
			problems = append(problems, fmt.Sprintf("relationships[%d]: target id is required", i))
		}
		if rel.Strength < 0 || rel.Strength > 1 {
			problems = append(problems, fmt.Sprintf("relationships[%d]: strength %v outside [0,1]", i, rel.Strength))
		}
	}

	if len(problems) > 0 {
		return &SchemaError{BeadID: b.ID, Problems: problems}
	}
	return nil
}

// ComputeQuality derives the bead quality score from schema compliance and
// completeness of the optional fields. Pure function of the bead contents.
func ComputeQuality(b *Bead) float64 {
	if Validate(b) != nil {
		return 0
	}

	// Start from full schema compliance, then weight in completeness.
	score := 0.5
	checks := []bool{
		strings.TrimSpace(b.Summary) != "",
		!b.Freshness.IsZero(),
		len(b.Tags.Topics) > 0,
		b.Source.URL != "",
		b.Confidence >= 0.5,
	}
	per := 0.5 / float64(len(checks))
	for _, ok := range checks {
		if ok {
			score += per
		}
	}
	if score > 1 {
		score = 1
	}
	return score
}

// asFloat extracts a numeric value from a JSON-decoded payload entry
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// MetricValue extracts the numeric value from a metric bead's content
func MetricValue(b *Bead) (float64, bool) {
	if b.Type != TypeMetric {
		return 0, false
	}
	v, ok := b.Content["value"]
	if !ok {
		return 0, false
	}
	return asFloat(v)
}

// MetricKey returns the fact grouping key for a metric bead: the metric
// name plus its period, lowercased. Used by the conflict detector.
func MetricKey(b *Bead) (string, bool) {
	if b.Type != TypeMetric {
		return "", false
	}
	name, _ := b.Content["metric"].(string)
	period, _ := b.Content["period"].(string)
	if name == "" {
		return "", false
	}
	return strings.ToLower(strings.TrimSpace(name)) + "|" + strings.ToLower(strings.TrimSpace(period)), true
}
