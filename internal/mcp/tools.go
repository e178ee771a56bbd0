// ABOUTME: MCP tool definitions and registration for the bead store server
// ABOUTME: Exposes the research-collector surface: create, relate, search, stats
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/loomworks/beadloom/internal/conflict"
	"github.com/loomworks/beadloom/internal/graph"
	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, store *sqlite.Storage, idx *index.Index, g *graph.Graph, detector *conflict.Detector) *Handlers {
	handlers := &Handlers{
		store:    store,
		idx:      idx,
		graph:    g,
		detector: detector,
	}

	// 1. create_bead - store one atomic research record
	server.AddTool(mcp.Tool{
		Name:        "create_bead",
		Description: "Store one atomic research record (bead). The record must carry a full citation and at least one section tag.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Bead type: source, fact, metric, event, quote, insight, table, chart, question, relationship",
				},
				"title": map[string]interface{}{
					"type":        "string",
					"description": "Short title (max 100 chars)",
				},
				"summary": map[string]interface{}{
					"type":        "string",
					"description": "One-paragraph summary (max 300 chars)",
				},
				"content": map[string]interface{}{
					"type":        "object",
					"description": "Type-specific payload, e.g. {metric, value, unit, period} for a metric bead",
				},
				"sections": map[string]interface{}{
					"type":        "array",
					"description": "Report section ids this bead supports (at least one)",
					"items":       map[string]interface{}{"type": "string"},
				},
				"topics": map[string]interface{}{
					"type":        "array",
					"description": "Free-form topic tags",
					"items":       map[string]interface{}{"type": "string"},
				},
				"confidence": map[string]interface{}{
					"type":        "number",
					"description": "Collector confidence in [0,1]",
				},
				"source_origin": map[string]interface{}{
					"type":        "string",
					"description": "Source origin: sec_filing, transcript, market_data, fundamental, news, third_party",
				},
				"source_title": map[string]interface{}{
					"type":        "string",
					"description": "Human-readable source title",
				},
				"source_url": map[string]interface{}{
					"type":        "string",
					"description": "Source URL (this or source_path is required)",
				},
				"source_path": map[string]interface{}{
					"type":        "string",
					"description": "Local source file path",
				},
			},
			Required: []string{"type", "title", "summary", "sections", "source_origin", "source_title"},
		},
	}, handlers.CreateBead)

	// 2. relate_beads - add a typed edge between two beads
	server.AddTool(mcp.Tool{
		Name:        "relate_beads",
		Description: "Add a typed relationship edge between two existing beads: supports, contradicts, depends_on, replaces, or relates_to.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"source_id": map[string]interface{}{
					"type":        "string",
					"description": "Id of the bead the edge starts from",
				},
				"target_id": map[string]interface{}{
					"type":        "string",
					"description": "Id of the bead the edge points to",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Edge type: supports, contradicts, depends_on, replaces, relates_to",
				},
				"strength": map[string]interface{}{
					"type":        "number",
					"description": "Edge strength in [0,1] (default 1.0)",
					"default":     1.0,
				},
			},
			Required: []string{"source_id", "target_id", "type"},
		},
	}, handlers.RelateBeads)

	// 3. search_beads - query the index
	server.AddTool(mcp.Tool{
		Name:        "search_beads",
		Description: "Search active beads by section, type, topic, origin, and minimum confidence/quality. Results are ordered by descending confidence.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"section": map[string]interface{}{
					"type":        "string",
					"description": "Filter by section tag",
				},
				"type": map[string]interface{}{
					"type":        "string",
					"description": "Filter by bead type",
				},
				"topic": map[string]interface{}{
					"type":        "string",
					"description": "Filter by topic tag",
				},
				"origin": map[string]interface{}{
					"type":        "string",
					"description": "Filter by source origin",
				},
				"min_confidence": map[string]interface{}{
					"type":        "number",
					"description": "Minimum confidence (default 0)",
				},
				"max_results": map[string]interface{}{
					"type":        "number",
					"description": "Maximum number of results (default 20)",
					"default":     20,
				},
			},
		},
	}, handlers.SearchBeads)

	// 4. detect_conflicts - scan metric beads for contradictions
	server.AddTool(mcp.Tool{
		Name:        "detect_conflicts",
		Description: "Scan metric beads for contradictory values on the same metric and period, with an advisory resolution per conflict.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"section": map[string]interface{}{
					"type":        "string",
					"description": "Limit the scan to one section",
				},
			},
		},
	}, handlers.DetectConflicts)

	// 5. store_stats - index population summary
	server.AddTool(mcp.Tool{
		Name:        "store_stats",
		Description: "Summarize the bead population: totals by type, average confidence and quality, known sections and topics.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.StoreStats)

	return handlers
}
