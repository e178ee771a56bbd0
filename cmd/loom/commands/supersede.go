// ABOUTME: CLI command to supersede a bead with a corrected replacement
// ABOUTME: Compare-and-swap on version; stale supersedes are rejected
package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

var (
	supersedeFile    string
	supersedeVersion int
)

// NewSupersedeCmd creates supersede command
func NewSupersedeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "supersede <old-bead-id>",
		Short: "Replace a bead with a corrected version",
		Long: `Archive a bead and link a corrected replacement to it.

The replacement bead JSON is read from --file or stdin. The old bead's
current version must be passed with --expect-version; a mismatch means
someone else already superseded it and the call is rejected.

Examples:
  loom supersede bd-...-0001 --expect-version 1 --file corrected.json`,
		Args: cobra.ExactArgs(1),
		RunE: runSupersede,
	}

	cmd.Flags().StringVar(&supersedeFile, "file", "", "Read replacement bead JSON from file")
	cmd.Flags().IntVar(&supersedeVersion, "expect-version", 1, "Expected current version of the old bead")

	return cmd
}

func runSupersede(cmd *cobra.Command, args []string) error {
	var data []byte
	var err error
	if supersedeFile != "" {
		data, err = os.ReadFile(supersedeFile)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
	}
	var bead models.Bead
	if err := json.Unmarshal(data, &bead); err != nil {
		return fmt.Errorf("parsing bead JSON: %w", err)
	}

	store, _, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	newID, err := store.SupersedeBead(args[0], supersedeVersion, &bead)
	if err != nil {
		var vc *sqlite.VersionConflictError
		if errors.As(err, &vc) {
			return fmt.Errorf("stale supersede: %w", err)
		}
		return fmt.Errorf("superseding bead: %w", err)
	}

	if !quiet {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ %s superseded by %s\n", args[0], newID)
	}
	return nil
}
