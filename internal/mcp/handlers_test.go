// ABOUTME: Tests for MCP tool handlers over in-memory storage
// ABOUTME: Calls handlers directly; transport-level behavior is mcp-go's concern
package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/loomworks/beadloom/internal/config"
	"github.com/loomworks/beadloom/internal/conflict"
	"github.com/loomworks/beadloom/internal/graph"
	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

func newTestHandlers(t *testing.T) *Handlers {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("NewStorageInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	idx, err := index.New(store)
	if err != nil {
		t.Fatalf("index.New() error = %v", err)
	}
	cfg := &config.Config{VarianceThreshold: 0.20, SourcePriority: config.DefaultSourcePriority}
	return &Handlers{
		store:    store,
		idx:      idx,
		graph:    graph.New(store),
		detector: conflict.New(idx, store, cfg),
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("tool result has no content")
	}
	text, ok := mcp.AsTextContent(res.Content[0])
	if !ok {
		t.Fatalf("tool result content is %T, want text", res.Content[0])
	}
	return text.Text
}

func createBeadArgs(section string) map[string]any {
	return map[string]any{
		"type":    "metric",
		"title":   "FY2023 revenue",
		"summary": "Reported full-year revenue",
		"content": map[string]any{
			"metric": "revenue",
			"value":  100.0,
			"unit":   "USD billions",
			"period": "FY2023",
		},
		"sections":      []any{section},
		"topics":        []any{"growth"},
		"confidence":    0.9,
		"source_origin": "sec_filing",
		"source_title":  "10-K",
		"source_url":    "https://example.com/10k",
	}
}

func TestCreateBeadAndSearch(t *testing.T) {
	h := newTestHandlers(t)

	res, err := h.CreateBead(context.Background(), callRequest(createBeadArgs("valuation")))
	if err != nil {
		t.Fatalf("CreateBead() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("CreateBead() tool error: %s", resultText(t, res))
	}
	var created struct {
		BeadID string `json:"bead_id"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	if !strings.HasPrefix(created.BeadID, "bd-") {
		t.Errorf("bead_id = %q, want bd- prefix", created.BeadID)
	}

	res, err = h.SearchBeads(context.Background(), callRequest(map[string]any{"section": "valuation"}))
	if err != nil {
		t.Fatalf("SearchBeads() error = %v", err)
	}
	var search struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &search); err != nil {
		t.Fatalf("decode search result: %v", err)
	}
	if search.Count != 1 {
		t.Errorf("search count = %d, want 1", search.Count)
	}
}

func TestCreateBeadRejectsInvalid(t *testing.T) {
	h := newTestHandlers(t)

	args := createBeadArgs("valuation")
	delete(args, "source_origin")
	delete(args, "source_title")
	args["source_url"] = ""

	res, err := h.CreateBead(context.Background(), callRequest(args))
	if err != nil {
		t.Fatalf("CreateBead() error = %v", err)
	}
	if !res.IsError {
		t.Error("CreateBead() accepted a bead with no citation")
	}
}

func TestRelateBeads(t *testing.T) {
	h := newTestHandlers(t)

	a := mustCreate(t, h, createBeadArgs("valuation"))
	b := mustCreate(t, h, createBeadArgs("valuation"))

	res, err := h.RelateBeads(context.Background(), callRequest(map[string]any{
		"source_id": a,
		"target_id": b,
		"type":      "supports",
	}))
	if err != nil {
		t.Fatalf("RelateBeads() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("RelateBeads() tool error: %s", resultText(t, res))
	}
	var rel struct {
		Added bool `json:"added"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &rel); err != nil {
		t.Fatalf("decode relate result: %v", err)
	}
	if !rel.Added {
		t.Error("added = false for a new edge")
	}

	// Dangling target is a tool error, not a protocol error
	res, err = h.RelateBeads(context.Background(), callRequest(map[string]any{
		"source_id": a,
		"target_id": "bd-missing",
		"type":      "supports",
	}))
	if err != nil {
		t.Fatalf("RelateBeads() error = %v", err)
	}
	if !res.IsError {
		t.Error("RelateBeads() accepted a dangling target")
	}
}

func TestStoreStats(t *testing.T) {
	h := newTestHandlers(t)
	mustCreate(t, h, createBeadArgs("valuation"))
	mustCreate(t, h, createBeadArgs("risks"))

	res, err := h.StoreStats(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatalf("StoreStats() error = %v", err)
	}
	var stats struct {
		Total    int      `json:"total"`
		Sections []string `json:"sections"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &stats); err != nil {
		t.Fatalf("decode stats result: %v", err)
	}
	if stats.Total != 2 || len(stats.Sections) != 2 {
		t.Errorf("stats = %+v, want 2 beads across 2 sections", stats)
	}
}

func TestDetectConflictsTool(t *testing.T) {
	h := newTestHandlers(t)
	mustCreate(t, h, createBeadArgs("valuation"))

	second := createBeadArgs("valuation")
	second["source_origin"] = "news"
	second["content"] = map[string]any{
		"metric": "revenue",
		"value":  140.0,
		"unit":   "USD billions",
		"period": "FY2023",
	}
	mustCreate(t, h, second)

	res, err := h.DetectConflicts(context.Background(), callRequest(map[string]any{"section": "valuation"}))
	if err != nil {
		t.Fatalf("DetectConflicts() error = %v", err)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode conflicts result: %v", err)
	}
	if out.Count != 1 {
		t.Errorf("conflict count = %d, want 1", out.Count)
	}
}

func mustCreate(t *testing.T, h *Handlers, args map[string]any) string {
	t.Helper()
	res, err := h.CreateBead(context.Background(), callRequest(args))
	if err != nil {
		t.Fatalf("CreateBead() error = %v", err)
	}
	if res.IsError {
		t.Fatalf("CreateBead() tool error: %s", resultText(t, res))
	}
	var created struct {
		BeadID string `json:"bead_id"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &created); err != nil {
		t.Fatalf("decode create result: %v", err)
	}
	return created.BeadID
}
