// ABOUTME: Composite quality scoring for generated section text
// ABOUTME: Weighs citations, source diversity, required elements, readability, length
package pipeline

import (
	"strings"

	"github.com/loomworks/beadloom/internal/models"
)

// Component weights. They sum to 1 so the composite stays in [0,1].
const (
	weightCitations   = 0.25
	weightSources     = 0.15
	weightElements    = 0.25
	weightReadability = 0.15
	weightLength      = 0.20
)

// scoreArtifact computes the weighted composite quality score for a draft.
// gathered is the bead set handed to the capability; cited is what it
// reported using. tolerance is the allowed relative deviation from the
// section's target length.
func scoreArtifact(text string, cited []string, gathered []*models.Bead, sec models.Section, tolerance float64) float64 {
	score := weightCitations * citationScore(cited, gathered)
	score += weightSources * sourceDiversityScore(cited, gathered)
	score += weightElements * requiredElementsScore(text, sec.RequiredElements)
	score += weightReadability * readabilityScore(text)
	score += weightLength * lengthScore(wordCount(text), sec.TargetLength, tolerance)
	return clamp01(score)
}

// citationScore rewards drafts that actually use the evidence they were
// given. Full marks when every gathered bead is cited.
func citationScore(cited []string, gathered []*models.Bead) float64 {
	if len(gathered) == 0 {
		return 1
	}
	known := map[string]bool{}
	for _, b := range gathered {
		known[b.ID] = true
	}
	used := 0
	seen := map[string]bool{}
	for _, id := range cited {
		if known[id] && !seen[id] {
			used++
			seen[id] = true
		}
	}
	return float64(used) / float64(len(gathered))
}

// sourceDiversityScore rewards drawing on multiple source origins rather
// than paraphrasing a single feed.
func sourceDiversityScore(cited []string, gathered []*models.Bead) float64 {
	byID := map[string]*models.Bead{}
	available := map[string]bool{}
	for _, b := range gathered {
		byID[b.ID] = b
		if b.Source.Origin != "" {
			available[b.Source.Origin] = true
		}
	}
	if len(available) == 0 {
		return 1
	}
	used := map[string]bool{}
	for _, id := range cited {
		if b, ok := byID[id]; ok && b.Source.Origin != "" {
			used[b.Source.Origin] = true
		}
	}
	return float64(len(used)) / float64(len(available))
}

// requiredElementsScore is the fraction of declared required elements that
// appear in the text, matched case-insensitively.
func requiredElementsScore(text string, elements []string) float64 {
	if len(elements) == 0 {
		return 1
	}
	lower := strings.ToLower(text)
	found := 0
	for _, el := range elements {
		if strings.Contains(lower, strings.ToLower(el)) {
			found++
		}
	}
	return float64(found) / float64(len(elements))
}

// readabilityScore is a coarse sentence-length heuristic: average sentence
// length between 8 and 28 words reads fine; outside that it degrades.
func readabilityScore(text string) float64 {
	words := wordCount(text)
	if words == 0 {
		return 0
	}
	sentences := 0
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			sentences++
		}
	}
	if sentences == 0 {
		sentences = 1
	}
	avg := float64(words) / float64(sentences)
	switch {
	case avg >= 8 && avg <= 28:
		return 1
	case avg < 8:
		return avg / 8
	default:
		// Penalize run-on prose proportionally past the ceiling
		excess := avg - 28
		return clamp01(1 - excess/28)
	}
}

// lengthScore gives full credit inside the tolerance band and decays
// linearly to zero at three times the tolerance.
func lengthScore(words, target int, tolerance float64) float64 {
	if target <= 0 {
		return 1
	}
	if tolerance <= 0 {
		tolerance = 0.10
	}
	deviation := float64(words-target) / float64(target)
	if deviation < 0 {
		deviation = -deviation
	}
	if deviation <= tolerance {
		return 1
	}
	return clamp01(1 - (deviation-tolerance)/(2*tolerance))
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
