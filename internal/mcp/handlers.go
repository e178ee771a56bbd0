// ABOUTME: MCP tool handler implementations for the bead store server
// ABOUTME: Argument errors come back as tool errors, never as protocol failures
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/loomworks/beadloom/internal/conflict"
	"github.com/loomworks/beadloom/internal/graph"
	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	store    *sqlite.Storage
	idx      *index.Index
	graph    *graph.Graph
	detector *conflict.Detector
}

// CreateBead handles the create_bead tool
func (h *Handlers) CreateBead(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	beadType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type argument is required and must be a string"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("title argument is required and must be a string"), nil
	}
	summary, err := request.RequireString("summary")
	if err != nil {
		return mcp.NewToolResultError("summary argument is required and must be a string"), nil
	}

	var content map[string]any
	if raw, ok := request.GetArguments()["content"].(map[string]any); ok {
		content = raw
	}

	bead := &models.Bead{
		Type:       models.BeadType(beadType),
		Title:      title,
		Summary:    summary,
		Content:    content,
		Confidence: request.GetFloat("confidence", 0.5),
		Source: models.Source{
			Origin:      request.GetString("source_origin", ""),
			Title:       request.GetString("source_title", ""),
			URL:         request.GetString("source_url", ""),
			Path:        request.GetString("source_path", ""),
			RetrievedAt: time.Now().UTC(),
		},
		Freshness: time.Now().UTC(),
		Tags: models.Tags{
			Sections: request.GetStringSlice("sections", nil),
			Topics:   request.GetStringSlice("topics", nil),
		},
	}

	id, err := h.store.CreateBead(bead)
	if err != nil {
		var schemaErr *models.SchemaError
		if errors.As(err, &schemaErr) {
			return mcp.NewToolResultError(fmt.Sprintf("bead rejected: %v", schemaErr)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to store bead: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"bead_id":       id,
		"quality_score": bead.QualityScore,
	})
}

// RelateBeads handles the relate_beads tool
func (h *Handlers) RelateBeads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sourceID, err := request.RequireString("source_id")
	if err != nil {
		return mcp.NewToolResultError("source_id argument is required and must be a string"), nil
	}
	targetID, err := request.RequireString("target_id")
	if err != nil {
		return mcp.NewToolResultError("target_id argument is required and must be a string"), nil
	}
	relType, err := request.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError("type argument is required and must be a string"), nil
	}
	strength := request.GetFloat("strength", 1.0)

	added, err := h.graph.AddRelationship(sourceID, targetID, models.RelationType(relType), strength)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to relate beads: %v", err)), nil
	}

	return jsonResult(map[string]any{
		"source_id": sourceID,
		"target_id": targetID,
		"type":      relType,
		"added":     added, // false means the edge already existed
	})
}

// SearchBeads handles the search_beads tool
func (h *Handlers) SearchBeads(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filters := index.Filters{
		Section:       request.GetString("section", ""),
		Type:          models.BeadType(request.GetString("type", "")),
		Topic:         request.GetString("topic", ""),
		Origin:        request.GetString("origin", ""),
		MinConfidence: request.GetFloat("min_confidence", 0),
	}
	maxResults := request.GetInt("max_results", 20)

	beads := h.idx.Search(filters)
	if maxResults > 0 && len(beads) > maxResults {
		beads = beads[:maxResults]
	}

	results := make([]map[string]any, len(beads))
	for i, b := range beads {
		results[i] = map[string]any{
			"id":         b.ID,
			"type":       string(b.Type),
			"title":      b.Title,
			"summary":    b.Summary,
			"confidence": b.Confidence,
			"quality":    b.QualityScore,
			"sections":   b.Tags.Sections,
			"origin":     b.Source.Origin,
		}
	}
	return jsonResult(map[string]any{
		"count": len(results),
		"beads": results,
	})
}

// DetectConflicts handles the detect_conflicts tool
func (h *Handlers) DetectConflicts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scope := conflict.Scope{Kind: conflict.ScopeAll}
	if section := request.GetString("section", ""); section != "" {
		scope = conflict.Scope{Kind: conflict.ScopeSection, Value: section}
	}

	conflicts, err := h.detector.Detect(scope)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("conflict detection failed: %v", err)), nil
	}
	return jsonResult(map[string]any{
		"count":     len(conflicts),
		"conflicts": conflicts,
	})
}

// StoreStats handles the store_stats tool
func (h *Handlers) StoreStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := h.idx.Stats()
	return jsonResult(map[string]any{
		"total":          stats.Total,
		"by_type":        stats.ByType,
		"avg_confidence": stats.AvgConfidence,
		"avg_quality":    stats.AvgQuality,
		"sections":       h.idx.Sections(),
		"topics":         h.idx.Topics(),
	})
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
