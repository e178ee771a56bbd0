// ABOUTME: CLI command to add new beads to the record store
// ABOUTME: Accepts bead JSON from a file or stdin, or fields via flags
package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/models"
)

var (
	addFile       string
	addType       string
	addTitle      string
	addSummary    string
	addContent    string
	addSections   []string
	addTopics     []string
	addConfidence float64
	addOrigin     string
	addSrcTitle   string
	addSrcURL     string
	addSrcPath    string
)

// NewAddCmd creates add command
func NewAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new bead",
		Long: `Add a new atomic research record (bead) to the store.

A bead needs a type, title, summary, at least one section tag, and a
full citation (origin, source title, and a URL or file path).

Examples:
  loom add --file bead.json
  cat bead.json | loom add
  loom add --type metric --title "FY2023 revenue" --summary "Reported revenue" \
    --content '{"metric":"revenue","value":383.3,"unit":"USD billions","period":"FY2023"}' \
    --section valuation --origin sec_filing --source-title "10-K" \
    --source-url https://example.com/10k --confidence 0.95`,
		Args: cobra.NoArgs,
		RunE: runAdd,
	}

	cmd.Flags().StringVar(&addFile, "file", "", "Read bead JSON from file")
	cmd.Flags().StringVar(&addType, "type", "", "Bead type (source, fact, metric, event, quote, insight, table, chart, question, relationship)")
	cmd.Flags().StringVar(&addTitle, "title", "", "Bead title")
	cmd.Flags().StringVar(&addSummary, "summary", "", "Bead summary")
	cmd.Flags().StringVar(&addContent, "content", "", "Type-specific payload as JSON")
	cmd.Flags().StringSliceVar(&addSections, "section", nil, "Section tags (repeatable)")
	cmd.Flags().StringSliceVar(&addTopics, "topic", nil, "Topic tags (repeatable)")
	cmd.Flags().Float64Var(&addConfidence, "confidence", 0.5, "Confidence in [0,1]")
	cmd.Flags().StringVar(&addOrigin, "origin", "", "Source origin (sec_filing, transcript, market_data, fundamental, news, third_party)")
	cmd.Flags().StringVar(&addSrcTitle, "source-title", "", "Source title")
	cmd.Flags().StringVar(&addSrcURL, "source-url", "", "Source URL")
	cmd.Flags().StringVar(&addSrcPath, "source-path", "", "Source file path")

	return cmd
}

func runAdd(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	bead, err := beadFromInput(cmd)
	if err != nil {
		return err
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	id, err := store.CreateBead(bead)
	if err != nil {
		return fmt.Errorf("storing bead: %w", err)
	}

	if !quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Added bead %s (quality %.2f)\n", id, bead.QualityScore)
	}
	return nil
}

// beadFromInput builds the bead from --file, stdin, or field flags
func beadFromInput(cmd *cobra.Command) (*models.Bead, error) {
	if addFile != "" || addType == "" {
		var data []byte
		var err error
		if addFile != "" {
			data, err = os.ReadFile(addFile)
			if err != nil {
				return nil, fmt.Errorf("reading file: %w", err)
			}
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
		}
		var bead models.Bead
		if err := json.Unmarshal(data, &bead); err != nil {
			return nil, fmt.Errorf("parsing bead JSON: %w", err)
		}
		return &bead, nil
	}

	var content map[string]any
	if addContent != "" {
		if err := json.Unmarshal([]byte(addContent), &content); err != nil {
			return nil, fmt.Errorf("parsing --content JSON: %w", err)
		}
	}
	return &models.Bead{
		Type:       models.BeadType(addType),
		Title:      addTitle,
		Summary:    addSummary,
		Content:    content,
		Confidence: addConfidence,
		Freshness:  time.Now().UTC(),
		Source: models.Source{
			Origin:      addOrigin,
			Title:       addSrcTitle,
			URL:         addSrcURL,
			Path:        addSrcPath,
			RetrievedAt: time.Now().UTC(),
		},
		Tags: models.Tags{Sections: addSections, Topics: addTopics},
	}, nil
}
