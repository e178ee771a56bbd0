// ABOUTME: CLI command to fetch one bead by id
// ABOUTME: Shows the full record including archived and superseded beads
package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

// NewGetCmd creates get command
func NewGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <bead-id>",
		Short: "Show one bead",
		Long: `Fetch a single bead by id, including archived and superseded beads.

Examples:
  loom get bd-20240115T093001-0001
  loom get --format json bd-20240115T093001-0001`,
		Args: cobra.ExactArgs(1),
		RunE: runGet,
	}
	return cmd
}

func runGet(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bead, err := store.GetBead(args[0])
	if err != nil {
		var nf *sqlite.NotFoundError
		if errors.As(err, &nf) {
			return fmt.Errorf("no bead with id %s", args[0])
		}
		return fmt.Errorf("fetching bead: %w", err)
	}

	if format == "json" {
		return printJSON(cmd, bead)
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "%s  [%s]  v%d\n", bead.ID, bead.Type, bead.Version)
	_, _ = fmt.Fprintf(out, "  %s\n", bead.Title)
	_, _ = fmt.Fprintf(out, "  %s\n", bead.Summary)
	_, _ = fmt.Fprintf(out, "  confidence=%.2f quality=%.2f status=%s archived=%v\n",
		bead.Confidence, bead.QualityScore, bead.ReviewStatus, bead.Archived)
	_, _ = fmt.Fprintf(out, "  sections=%v topics=%v\n", bead.Tags.Sections, bead.Tags.Topics)
	_, _ = fmt.Fprintf(out, "  source: %s (%s)", bead.Source.Title, bead.Source.Origin)
	if bead.Source.URL != "" {
		_, _ = fmt.Fprintf(out, " %s", bead.Source.URL)
	}
	_, _ = fmt.Fprintln(out)
	if bead.Supersedes != "" {
		_, _ = fmt.Fprintf(out, "  supersedes: %s\n", bead.Supersedes)
	}
	_, _ = fmt.Fprintf(out, "  created %s\n", formatTime(bead.CreatedAt))
	return nil
}
