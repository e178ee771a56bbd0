// ABOUTME: CLI command to summarize the bead population
// ABOUTME: Totals by type plus average confidence and quality from the index
package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/index"
)

// NewStatsCmd creates stats command
func NewStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Long: `Summarize the active bead population: totals by type, average
confidence and quality, and the known sections and topics.

Examples:
  loom stats
  loom stats --format json`,
		Args: cobra.NoArgs,
		RunE: runStats,
	}
	return cmd
}

func runStats(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx, err := index.New(store)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}
	stats := idx.Stats()

	if format == "json" {
		return printJSON(cmd, map[string]any{
			"total":          stats.Total,
			"by_type":        stats.ByType,
			"avg_confidence": stats.AvgConfidence,
			"avg_quality":    stats.AvgQuality,
			"sections":       idx.Sections(),
			"topics":         idx.Topics(),
		})
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Beads: %d active\n", stats.Total)
	if stats.Total > 0 {
		_, _ = fmt.Fprintf(out, "Average confidence: %.2f\n", stats.AvgConfidence)
		_, _ = fmt.Fprintf(out, "Average quality:    %.2f\n", stats.AvgQuality)
	}

	types := make([]string, 0, len(stats.ByType))
	for t := range stats.ByType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		_, _ = fmt.Fprintf(out, "  %-14s %d\n", t, stats.ByType[t])
	}

	if sections := idx.Sections(); len(sections) > 0 {
		_, _ = fmt.Fprintf(out, "Sections: %v\n", sections)
	}
	if topics := idx.Topics(); len(topics) > 0 {
		_, _ = fmt.Fprintf(out, "Topics:   %v\n", topics)
	}
	return nil
}
