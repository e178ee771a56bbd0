// ABOUTME: CLI command to add typed relationship edges between beads
// ABOUTME: Idempotent; re-adding an existing edge reports it without error
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/graph"
	"github.com/loomworks/beadloom/internal/models"
)

var relateStrength float64

// NewRelateCmd creates relate command
func NewRelateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relate <source-id> <type> <target-id>",
		Short: "Relate two beads",
		Long: `Add a typed, directed relationship edge between two existing beads.

Valid types: supports, contradicts, depends_on, replaces, relates_to.

Examples:
  loom relate bd-...-0001 supports bd-...-0002
  loom relate bd-...-0003 contradicts bd-...-0002 --strength 0.8`,
		Args: cobra.ExactArgs(3),
		RunE: runRelate,
	}

	cmd.Flags().Float64Var(&relateStrength, "strength", 1.0, "Edge strength in [0,1]")

	return cmd
}

func runRelate(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	g := graph.New(store)
	added, err := g.AddRelationship(args[0], args[2], models.RelationType(args[1]), relateStrength)
	if err != nil {
		return fmt.Errorf("adding relationship: %w", err)
	}

	if !quiet {
		if added {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s %s %s\n", args[0], args[1], args[2])
		} else {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Edge already exists: %s %s %s\n", args[0], args[1], args[2])
		}
	}
	return nil
}
