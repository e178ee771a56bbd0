// ABOUTME: CLI command to search beads through the index
// ABOUTME: Filters by section, type, topic, origin, and confidence floors
package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/models"
)

var (
	searchSection    string
	searchType       string
	searchTopic      string
	searchOrigin     string
	searchMinConf    float64
	searchMinQuality float64
	searchLimit      int
)

// NewSearchCmd creates search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search beads",
		Long: `Search active beads through the derived index.

Results are ordered by descending confidence, then ascending id, so
the same store always returns the same ordering.

Examples:
  loom search --section valuation
  loom search --type metric --topic growth --min-confidence 0.7
  loom search --origin sec_filing --format json`,
		Args: cobra.NoArgs,
		RunE: runSearch,
	}

	cmd.Flags().StringVar(&searchSection, "section", "", "Filter by section tag")
	cmd.Flags().StringVar(&searchType, "type", "", "Filter by bead type")
	cmd.Flags().StringVar(&searchTopic, "topic", "", "Filter by topic tag")
	cmd.Flags().StringVar(&searchOrigin, "origin", "", "Filter by source origin")
	cmd.Flags().Float64Var(&searchMinConf, "min-confidence", 0, "Minimum confidence")
	cmd.Flags().Float64Var(&searchMinQuality, "min-quality", 0, "Minimum quality score")
	cmd.Flags().IntVar(&searchLimit, "limit", 20, "Maximum results to return")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx, err := index.New(store)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	beads := idx.Search(index.Filters{
		Section:       searchSection,
		Type:          models.BeadType(searchType),
		Topic:         searchTopic,
		Origin:        searchOrigin,
		MinConfidence: searchMinConf,
		MinQuality:    searchMinQuality,
	})
	if len(beads) > searchLimit {
		beads = beads[:searchLimit]
	}

	if format == "json" {
		return printJSON(cmd, beads)
	}

	if len(beads) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No beads found")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTYPE\tCONF\tQUAL\tTITLE\tSECTIONS")
	for _, b := range beads {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%.2f\t%.2f\t%s\t%v\n",
			b.ID, b.Type, b.Confidence, b.QualityScore, truncate(b.Title, 40), b.Tags.Sections)
	}
	return w.Flush()
}
