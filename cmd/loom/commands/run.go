// ABOUTME: CLI command to run the full section pipeline over an outline
// ABOUTME: Dependency-ordered, checkpointed, bounded-parallel execution
package commands

import (
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/loomworks/beadloom/internal/checkpoint"
	"github.com/loomworks/beadloom/internal/conflict"
	"github.com/loomworks/beadloom/internal/index"
	"github.com/loomworks/beadloom/internal/llm"
	"github.com/loomworks/beadloom/internal/outline"
	"github.com/loomworks/beadloom/internal/pipeline"
	"github.com/loomworks/beadloom/internal/report"
	"github.com/loomworks/beadloom/internal/schedule"
	"github.com/loomworks/beadloom/internal/storage/sqlite"
)

var (
	runWorkers    int
	runCkptDir    string
	runFresh      bool
	runCapability pipeline.Capability // nil means OpenAI
)

// NewRunCmd creates run command
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <outline.yaml>",
		Short: "Run the section pipeline over an outline",
		Long: `Execute every section of an outline in dependency order.

Each section gathers its beads, drafts via the configured capability,
runs the bounded critic-optimizer loop, and persists its artifact.
Independent sections run in parallel up to the worker limit. Completed
sections are checkpointed; a restarted run picks up where it stopped
unless --fresh is given.

The run always ends with an explicit per-section report. A failed
critical section halts the run with a partial result.

Examples:
  loom run examples/outline.yaml
  loom run --workers 4 examples/outline.yaml
  loom run --fresh examples/outline.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: runRun,
	}

	cmd.Flags().IntVar(&runWorkers, "workers", 0, "Concurrent sections (default from LOOM_WORKERS)")
	cmd.Flags().StringVar(&runCkptDir, "checkpoints", "", "Checkpoint directory (default under the data dir)")
	cmd.Flags().BoolVar(&runFresh, "fresh", false, "Ignore existing checkpoints and run every section")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	o, err := outline.Load(args[0])
	if err != nil {
		return fmt.Errorf("loading outline: %w", err)
	}

	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	idx, err := index.New(store)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	ckptDir := runCkptDir
	if ckptDir == "" {
		ckptDir = filepath.Join(sqlite.DefaultDataDir(), "checkpoints")
	}
	ckpts, err := checkpoint.NewStore(ckptDir)
	if err != nil {
		return fmt.Errorf("opening checkpoint store: %w", err)
	}

	capability := runCapability
	if capability == nil {
		capability, err = llm.NewClient(cfg)
		if err != nil {
			return fmt.Errorf("initializing capability client: %w", err)
		}
	}

	sched, err := schedule.New(o, cfg.SkipPolicy)
	if err != nil {
		return fmt.Errorf("building schedule: %w", err)
	}
	if !runFresh {
		plan, err := ckpts.Resume(o, store)
		if err != nil {
			return fmt.Errorf("resuming from checkpoints: %w", err)
		}
		sched.Restore(plan.CompletedIDs, plan.SkippedIDs)
		if !quiet && len(plan.CompletedIDs) > 0 {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Resuming: %d section(s) already complete\n", len(plan.CompletedIDs))
		}
	}

	workers := runWorkers
	if workers <= 0 {
		workers = cfg.Workers
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(store, idx, capability, ckpts, cfg)
	runErr := schedule.NewRunner(sched, p, workers).Run(ctx)

	haltedBy, _ := sched.Halted()
	conflicts, cerr := conflict.New(idx, store, cfg).Detect(conflict.Scope{Kind: conflict.ScopeAll})
	if cerr != nil {
		return fmt.Errorf("detecting conflicts: %w", cerr)
	}

	rep, err := report.Build(o, store, conflicts, haltedBy)
	if err != nil {
		return fmt.Errorf("building run report: %w", err)
	}
	if format == "json" {
		if err := printJSON(cmd, rep); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprint(cmd.OutOrStdout(), rep.Render())
	}

	var halt *schedule.HaltError
	if errors.As(runErr, &halt) {
		return runErr
	}
	if runErr != nil {
		return fmt.Errorf("run aborted: %w", runErr)
	}
	return nil
}
