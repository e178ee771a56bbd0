// ABOUTME: Root CLI command with global flags and subcommand registration
// ABOUTME: Defines verbose/quiet/format flags shared by every subcommand
package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
	format  string
)

const banner = `
██████╗ ███████╗ █████╗ ██████╗ ██╗      ██████╗  ██████╗ ███╗   ███╗
██╔══██╗██╔════╝██╔══██╗██╔══██╗██║     ██╔═══██╗██╔═══██╗████╗ ████║
██████╔╝█████╗  ███████║██║  ██║██║     ██║   ██║██║   ██║██╔████╔██║
██╔══██╗██╔══╝  ██╔══██║██║  ██║██║     ██║   ██║██║   ██║██║╚██╔╝██║
██████╔╝███████╗██║  ██║██████╔╝███████╗╚██████╔╝╚██████╔╝██║ ╚═╝ ██║
╚═════╝ ╚══════╝╚═╝  ╚═╝╚═════╝ ╚══════╝ ╚═════╝  ╚═════╝ ╚═╝     ╚═╝`

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loom",
		Short: "Bead store and section pipeline for equity research reports",
		Long: banner + `

Loom stores atomic research records ("beads"), tracks relationships
and conflicts between them, and weaves report sections from them
through a dependency-ordered critic-optimizer pipeline.

Research collectors populate the store (directly or over MCP), then
a run drafts every section of a declared outline in dependency order
with checkpointed crash recovery.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().StringVar(&format, "format", "auto", "Output format: auto, table, json")

	cmd.AddCommand(
		NewAddCmd(),
		NewGetCmd(),
		NewSearchCmd(),
		NewRelateCmd(),
		NewSupersedeCmd(),
		NewConflictsCmd(),
		NewRunCmd(),
		NewStatusCmd(),
		NewExportCmd(),
		NewStatsCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
