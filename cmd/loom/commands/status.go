// ABOUTME: CLI command to show per-section run state
// ABOUTME: Reads persisted unit run states and artifacts, nothing live
package commands

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// NewStatusCmd creates status command
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show section run states",
		Long: `Show the persisted run state for every section the pipeline has
touched: status, iteration count, last quality score, and warnings.

Examples:
  loom status
  loom status --format json`,
		Args: cobra.NoArgs,
		RunE: runStatus,
	}
	return cmd
}

func runStatus(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	states, err := store.RunStates().All()
	if err != nil {
		return fmt.Errorf("loading run states: %w", err)
	}

	if format == "json" {
		return printJSON(cmd, states)
	}

	if len(states) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
		return nil
	}

	ids := make([]string, 0, len(states))
	for id := range states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SECTION\tSTATUS\tITER\tQUALITY\tUPDATED\tNOTES")
	for _, id := range ids {
		st := states[id]
		notes := st.Error
		if notes == "" && len(st.Warnings) > 0 {
			notes = fmt.Sprintf("%d warning(s)", len(st.Warnings))
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%s\t%s\n",
			st.SectionID, st.Status, st.IterationCount, st.LastQualityScore,
			formatTime(st.UpdatedAt), truncate(notes, 50))
	}
	return w.Flush()
}
