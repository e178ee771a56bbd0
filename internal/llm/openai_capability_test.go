// ABOUTME: Tests for capability error classification and prompt rendering
// ABOUTME: No network calls; the API client itself is exercised elsewhere
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loomworks/beadloom/internal/config"
	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/pipeline"
)

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(&config.Config{}); err == nil {
		t.Error("NewClient() accepted an empty API key")
	}
	c, err := NewClient(&config.Config{OpenAIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	if c.model != DefaultChatModel {
		t.Errorf("model = %q, want default %q", c.model, DefaultChatModel)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, true},
		{"bad auth", &openai.APIError{HTTPStatusCode: 401}, false},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"timeout", context.DeadlineExceeded, true},
		{"network", fmt.Errorf("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify("draft", tt.err)
			var ce *pipeline.CapabilityError
			if !errors.As(got, &ce) {
				t.Fatalf("classify() = %v, want CapabilityError", got)
			}
			if ce.Transient != tt.wantTransient {
				t.Errorf("Transient = %v, want %v", ce.Transient, tt.wantTransient)
			}
		})
	}
}

func TestClassifyCancellationPassesThrough(t *testing.T) {
	got := classify("draft", context.Canceled)
	var ce *pipeline.CapabilityError
	if errors.As(got, &ce) {
		t.Errorf("classify(Canceled) = CapabilityError, want plain context error")
	}
	if !errors.Is(got, context.Canceled) {
		t.Errorf("classify(Canceled) = %v", got)
	}
}

func TestBeadDigest(t *testing.T) {
	beads := []*models.Bead{
		{
			ID:         "bd-20240101T000000-0001",
			Type:       models.TypeMetric,
			Title:      "FY2023 revenue",
			Summary:    "reported revenue",
			Confidence: 0.9,
			Content:    map[string]any{"metric": "revenue", "value": 100.0},
			Source:     models.Source{Origin: "sec_filing", Title: "10-K"},
		},
		{
			ID:      "bd-20240101T000000-0002",
			Type:    models.TypeFact,
			Title:   "guidance note",
			Summary: "conservative guidance",
		},
	}
	digest := beadDigest(beads)
	for _, b := range beads {
		if !strings.Contains(digest, b.ID) {
			t.Errorf("digest missing bead id %s", b.ID)
		}
	}
	if strings.Index(digest, beads[0].ID) > strings.Index(digest, beads[1].ID) {
		t.Error("digest does not preserve gather order")
	}
}

func TestSectionSpec(t *testing.T) {
	sec := models.Section{
		Title:            "Valuation",
		TargetLength:     400,
		RequiredElements: []string{"P/E ratio", "peer comparison"},
	}
	spec := sectionSpec(sec)
	if !strings.Contains(spec, "400") || !strings.Contains(spec, "P/E ratio") {
		t.Errorf("sectionSpec() = %q, missing length or elements", spec)
	}
	if sectionSpec(models.Section{Title: "bare"}) != "" {
		t.Error("sectionSpec() of a bare section should be empty")
	}
}
