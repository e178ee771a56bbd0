// ABOUTME: CLI command to scan for contradictory metric beads
// ABOUTME: Reports spreads and advisory resolutions; never mutates the store
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/conflict"
	"github.com/loomworks/beadloom/internal/index"
)

var (
	conflictsSection string
	conflictsTopic   string
)

// NewConflictsCmd creates conflicts command
func NewConflictsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect contradictory metric beads",
		Long: `Scan metric beads for contradictory values on the same metric and
period. Beads explicitly replaced or superseded are not counted as
conflicting. Each conflict carries an advisory resolution based on
source priority, freshness, and confidence; nothing is changed until
a collector accepts it.

Examples:
  loom conflicts
  loom conflicts --section valuation
  loom conflicts --topic revenue --format json`,
		Args: cobra.NoArgs,
		RunE: runConflicts,
	}

	cmd.Flags().StringVar(&conflictsSection, "section", "", "Limit the scan to one section")
	cmd.Flags().StringVar(&conflictsTopic, "topic", "", "Limit the scan to one topic")

	return cmd
}

func runConflicts(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx, err := index.New(store)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	scope := conflict.Scope{Kind: conflict.ScopeAll}
	switch {
	case conflictsSection != "":
		scope = conflict.Scope{Kind: conflict.ScopeSection, Value: conflictsSection}
	case conflictsTopic != "":
		scope = conflict.Scope{Kind: conflict.ScopeTopic, Value: conflictsTopic}
	}

	conflicts, err := conflict.New(idx, store, cfg).Detect(scope)
	if err != nil {
		return fmt.Errorf("detecting conflicts: %w", err)
	}

	if format == "json" {
		return printJSON(cmd, conflicts)
	}

	out := cmd.OutOrStdout()
	if len(conflicts) == 0 {
		_, _ = fmt.Fprintln(out, "No conflicts found")
		return nil
	}
	_, _ = fmt.Fprintf(out, "%d conflict(s):\n", len(conflicts))
	for _, c := range conflicts {
		_, _ = fmt.Fprintf(out, "\n%s  spread %.1f%%\n", c.Key, c.Spread*100)
		for i, id := range c.BeadIDs {
			marker := " "
			if id == c.Proposed.PreferredID {
				marker = "*"
			}
			_, _ = fmt.Fprintf(out, "  %s %s = %v\n", marker, id, c.Values[i])
		}
		if c.Proposed.PreferredID != "" {
			_, _ = fmt.Fprintf(out, "  suggested: %s (%s)\n", c.Proposed.PreferredID, c.Proposed.Reason)
		}
	}
	return nil
}
