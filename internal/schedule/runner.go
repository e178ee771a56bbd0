// ABOUTME: Runner executes ready sections with bounded parallelism
// ABOUTME: Dependents are only dispatched once their dependencies finish
package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/loomworks/beadloom/internal/models"
)

// UnitRunner processes one section end to end and reports its final status.
// A returned error (or a failed status) is treated as a unit failure.
type UnitRunner interface {
	RunUnit(ctx context.Context, sec models.Section, warnings []string) (models.UnitStatus, error)
}

// HaltError signals that a critical section failed and the run ended with
// a partial result.
type HaltError struct {
	SectionID string
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("run halted: critical section %s failed", e.SectionID)
}

// Runner drives the scheduler, executing at most workers units at once.
type Runner struct {
	sched   *Scheduler
	units   UnitRunner
	workers int64
}

// NewRunner builds a runner; workers below 1 is clamped to 1
func NewRunner(sched *Scheduler, units UnitRunner, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{sched: sched, units: units, workers: int64(workers)}
}

// Run executes the outline until every section is terminal or a critical
// failure halts the run. In-flight units finish before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	sem := semaphore.NewWeighted(r.workers)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	var dispatch func() error
	dispatch = func() error {
		mu.Lock()
		batch := r.sched.Next()
		mu.Unlock()
		for _, sec := range batch {
			sec := sec
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			g.Go(func() error {
				r.runOne(gctx, sec)
				sem.Release(1)
				return dispatch()
			})
		}
		return nil
	}

	if err := dispatch(); err != nil {
		return err
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if id, halted := r.sched.Halted(); halted {
		return &HaltError{SectionID: id}
	}
	return ctx.Err()
}

func (r *Runner) runOne(ctx context.Context, sec models.Section) {
	warnings := r.sched.DependencyWarnings(sec.ID)
	status, err := r.units.RunUnit(ctx, sec, warnings)
	switch {
	case err != nil:
		log.Printf("[runner] section %s failed: %v", sec.ID, err)
		if r.sched.Fail(sec.ID) {
			log.Printf("[runner] critical section %s failed, halting run", sec.ID)
		}
	case status == models.UnitFailed:
		if r.sched.Fail(sec.ID) {
			log.Printf("[runner] critical section %s failed, halting run", sec.ID)
		}
	case status == models.UnitSkipped:
		r.sched.Skip(sec.ID)
	default:
		r.sched.Complete(sec.ID)
	}
}
