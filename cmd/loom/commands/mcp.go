// ABOUTME: MCP command starts Model Context Protocol server
// ABOUTME: Lets LLM research collectors populate the bead store via stdio
package commands

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/conflict"
	"github.com/loomworks/beadloom/internal/graph"
	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for research collectors",
		Long: `Start MCP server for research collectors

Runs loom as an MCP (Model Context Protocol) server over stdio,
exposing the bead store to LLM agents: create_bead, relate_beads,
search_beads, detect_conflicts, store_stats.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically launched by the agent host)
  loom mcp

  # Configure in the agent host's MCP config:
  # {
  #   "mcpServers": {
  #     "loom": {
  #       "command": "loom",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
	}

	return cmd
}

// runMCP starts the MCP server
func runMCP(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && verbose {
		log.Printf("No .env file found (this is okay for production): %v", err)
	}

	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx, err := index.New(store)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	server := mcpserver.NewMCPServer(
		"Loom Bead Store",
		versionInfo.Version,
	)
	mcp.RegisterTools(server, store, idx, graph.New(store), conflict.New(idx, store, cfg))

	log.Println("loom MCP server starting on stdio...")
	if err := mcpserver.ServeStdio(server); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
