// ABOUTME: OpenAI-backed drafting capability - draft, critique, optimize calls
// ABOUTME: Single-shot client; the unit pipeline owns retry and backoff policy
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/loomworks/beadloom/internal/config"
	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/pipeline"
)

// DefaultChatModel is the default model for all capability calls
const DefaultChatModel = "gpt-4o-mini"

// Client implements the pipeline's Capability interface on the OpenAI API.
// Every method performs exactly one API call; transient failures are
// surfaced as retryable CapabilityErrors for the caller to retry.
type Client struct {
	client *openai.Client
	model  string
}

// NewClient builds a capability client from the run configuration
func NewClient(cfg *config.Config) (*Client, error) {
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	model := cfg.ChatModel
	if model == "" {
		model = DefaultChatModel
	}
	return &Client{client: openai.NewClient(cfg.OpenAIKey), model: model}, nil
}

const draftSystemPrompt = `You are an equity research writer. Write the requested report section using ONLY the evidence records provided. Each record has an id.

Return ONLY a JSON object:
{"text": "<the section text>", "citations": ["<record id>", ...]}

citations must list every record id whose information you used. Do not invent ids or facts.`

const critiqueSystemPrompt = `You are an equity research reviewer. Critique the draft section against the evidence records: name missing required elements, unsupported claims, and length problems as a concise gap list.

Return ONLY a JSON object: {"text": "<the gap list>"}`

const optimizeSystemPrompt = `You are an equity research editor. Revise the draft section to address every point in the critique, using ONLY the evidence records provided.

Return ONLY a JSON object:
{"text": "<the revised section text>", "citations": ["<record id>", ...]}`

// Draft produces the first pass for a section
func (c *Client) Draft(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	prompt := fmt.Sprintf("Section: %s\n%s\n\nEvidence records:\n%s",
		req.Section.Title, sectionSpec(req.Section), beadDigest(req.Beads))
	return c.complete(ctx, "draft", draftSystemPrompt, prompt, 0.3)
}

// Critique returns a structured gap list for a prior draft
func (c *Client) Critique(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	prompt := fmt.Sprintf("Section: %s\n%s\n\nEvidence records:\n%s\n\nDraft:\n%s",
		req.Section.Title, sectionSpec(req.Section), beadDigest(req.Beads), req.PriorDraft)
	return c.complete(ctx, "critique", critiqueSystemPrompt, prompt, 0.2)
}

// Optimize revises a draft against its critique
func (c *Client) Optimize(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	prompt := fmt.Sprintf("Section: %s\n%s\n\nEvidence records:\n%s\n\nDraft:\n%s\n\nCritique:\n%s",
		req.Section.Title, sectionSpec(req.Section), beadDigest(req.Beads), req.PriorDraft, req.Critique)
	return c.complete(ctx, "optimize", optimizeSystemPrompt, prompt, 0.3)
}

func (c *Client) complete(ctx context.Context, op, system, user string, temperature float32) (*pipeline.Result, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classify(op, err)
	}
	if len(resp.Choices) == 0 {
		return nil, &pipeline.CapabilityError{Op: op, Transient: true, Err: fmt.Errorf("no completion choices returned")}
	}

	var parsed struct {
		Text      string   `json:"text"`
		Citations []string `json:"citations"`
	}
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		// Malformed output is recoverable: the next attempt may parse
		return nil, &pipeline.CapabilityError{Op: op, Transient: true, Err: fmt.Errorf("failed to parse JSON response: %w", err)}
	}
	if strings.TrimSpace(parsed.Text) == "" {
		return nil, &pipeline.CapabilityError{Op: op, Transient: true, Err: fmt.Errorf("empty text in response")}
	}
	return &pipeline.Result{
		Text:      parsed.Text,
		Citations: parsed.Citations,
		Metadata:  map[string]any{"model": c.model, "finish_reason": string(resp.Choices[0].FinishReason)},
	}, nil
}

// classify maps API failures to the capability error taxonomy. Rate limits,
// server errors, and timeouts retry; auth and request errors do not.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &pipeline.CapabilityError{Op: op, Transient: true, Err: err}
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		transient := apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
		return &pipeline.CapabilityError{Op: op, Transient: transient, Err: err}
	}
	// Network-level failures are worth a retry
	return &pipeline.CapabilityError{Op: op, Transient: true, Err: err}
}

// sectionSpec renders the section's requirements for the prompt
func sectionSpec(sec models.Section) string {
	var b strings.Builder
	if sec.TargetLength > 0 {
		fmt.Fprintf(&b, "Target length: about %d words.\n", sec.TargetLength)
	}
	if len(sec.RequiredElements) > 0 {
		fmt.Fprintf(&b, "Required elements: %s.\n", strings.Join(sec.RequiredElements, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// beadDigest renders beads as compact evidence records, in the stable
// order they were gathered so identical inputs produce identical prompts.
func beadDigest(beads []*models.Bead) string {
	var b strings.Builder
	for _, bead := range beads {
		fmt.Fprintf(&b, "[%s] (%s, confidence %.2f) %s: %s\n", bead.ID, bead.Type, bead.Confidence, bead.Title, bead.Summary)
		if len(bead.Content) > 0 {
			if data, err := json.Marshal(bead.Content); err == nil {
				fmt.Fprintf(&b, "  data: %s\n", data)
			}
		}
		if bead.Source.Title != "" {
			fmt.Fprintf(&b, "  source: %s (%s)\n", bead.Source.Title, bead.Source.Origin)
		}
	}
	return b.String()
}
