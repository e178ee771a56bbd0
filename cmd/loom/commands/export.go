// ABOUTME: CLI command to export the full store as JSON
// ABOUTME: Beads, edges, run states, artifacts, and checkpoints in one dump
package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/checkpoint"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

var (
	exportOutput  string
	exportCkptDir string
)

// exportDocument is the full audit dump: the store snapshot plus the
// checkpoint files of the last run.
type exportDocument struct {
	*sqlite.Dump
	Checkpoints []checkpoint.Snapshot `json:"checkpoints"`
}

// NewExportCmd creates export command
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the store as JSON",
		Long: `Dump every bead (including archived ones), relationship edge, run
state, artifact, and checkpoint as one JSON document, for backup or
for an external assembly/render step.

Examples:
  loom export > dump.json
  loom export --output dump.json`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}

	cmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write to file instead of stdout")
	cmd.Flags().StringVar(&exportCkptDir, "checkpoints", "", "Checkpoint directory (default under the data dir)")

	return cmd
}

func runExport(cmd *cobra.Command, args []string) error {
	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	dump, err := store.Export()
	if err != nil {
		return fmt.Errorf("exporting store: %w", err)
	}

	ckptDir := exportCkptDir
	if ckptDir == "" {
		ckptDir = filepath.Join(sqlite.DefaultDataDir(), "checkpoints")
	}
	ckpts, err := checkpoint.NewStore(ckptDir)
	if err != nil {
		return fmt.Errorf("opening checkpoint store: %w", err)
	}
	snaps, err := ckpts.Snapshots()
	if err != nil {
		return fmt.Errorf("exporting checkpoints: %w", err)
	}

	data, err := json.MarshalIndent(&exportDocument{Dump: dump, Checkpoints: snaps}, "", "  ")
	if err != nil {
		return fmt.Errorf("rendering export: %w", err)
	}

	if exportOutput != "" {
		if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
		if !quiet {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported to %s\n", exportOutput)
		}
		return nil
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
