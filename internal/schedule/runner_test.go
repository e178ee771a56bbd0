// ABOUTME: Tests for the bounded-parallelism runner
// ABOUTME: Uses a fake unit runner that records ordering and concurrency
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/loomworks/beadloom/internal/config"
	"github.com/loomworks/beadloom/internal/models"
)

type fakeUnits struct {
	mu       sync.Mutex
	started  []string
	finished []string
	warnings map[string][]string
	statuses map[string]models.UnitStatus
	errs     map[string]error
	delay    time.Duration

	inFlight    int32
	maxInFlight int32
}

func newFakeUnits() *fakeUnits {
	return &fakeUnits{
		warnings: map[string][]string{},
		statuses: map[string]models.UnitStatus{},
		errs:     map[string]error{},
	}
}

func (f *fakeUnits) RunUnit(ctx context.Context, sec models.Section, warnings []string) (models.UnitStatus, error) {
	cur := atomic.AddInt32(&f.inFlight, 1)
	for {
		max := atomic.LoadInt32(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt32(&f.maxInFlight, max, cur) {
			break
		}
	}
	f.mu.Lock()
	f.started = append(f.started, sec.ID)
	f.warnings[sec.ID] = warnings
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.finished = append(f.finished, sec.ID)
	f.mu.Unlock()
	atomic.AddInt32(&f.inFlight, -1)

	if err := f.errs[sec.ID]; err != nil {
		return models.UnitFailed, err
	}
	if st, ok := f.statuses[sec.ID]; ok {
		return st, nil
	}
	return models.UnitComplete, nil
}

func (f *fakeUnits) position(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.started {
		if s == id {
			return i
		}
	}
	return -1
}

func diamondOutline() *models.Outline {
	return &models.Outline{
		Sections: []models.Section{
			{ID: "root", Priority: models.PriorityHigh},
			{ID: "left", DependsOn: []string{"root"}, Priority: models.PriorityMedium},
			{ID: "right", DependsOn: []string{"root"}, Priority: models.PriorityMedium},
			{ID: "join", DependsOn: []string{"left", "right"}, Priority: models.PriorityMedium},
		},
	}
}

func TestRunnerRespectsDependencies(t *testing.T) {
	sched, err := New(diamondOutline(), config.SkipWarn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	units := newFakeUnits()
	units.delay = 5 * time.Millisecond

	if err := NewRunner(sched, units, 4).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if got := len(units.started); got != 4 {
		t.Fatalf("started %d units, want 4", got)
	}
	rootPos := units.position("root")
	joinPos := units.position("join")
	for _, mid := range []string{"left", "right"} {
		p := units.position(mid)
		if p < rootPos {
			t.Errorf("%s started before its dependency root", mid)
		}
		if joinPos < p {
			t.Errorf("join started before its dependency %s", mid)
		}
	}
	for id, st := range sched.Statuses() {
		if st != models.UnitComplete {
			t.Errorf("section %s status = %s, want complete", id, st)
		}
	}
}

func TestRunnerBoundsParallelism(t *testing.T) {
	o := &models.Outline{Sections: []models.Section{
		{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}, {ID: "e"},
	}}
	sched, err := New(o, config.SkipWarn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	units := newFakeUnits()
	units.delay = 10 * time.Millisecond

	if err := NewRunner(sched, units, 2).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if max := atomic.LoadInt32(&units.maxInFlight); max > 2 {
		t.Errorf("max in-flight units = %d, want <= 2", max)
	}
	if got := len(units.finished); got != 5 {
		t.Errorf("finished %d units, want 5", got)
	}
}

func TestRunnerHaltsOnCriticalFailure(t *testing.T) {
	o := &models.Outline{Sections: []models.Section{
		{ID: "base", Priority: models.PriorityCritical},
		{ID: "leaf", DependsOn: []string{"base"}},
	}}
	sched, err := New(o, config.SkipWarn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	units := newFakeUnits()
	units.errs["base"] = fmt.Errorf("model unavailable")

	err = NewRunner(sched, units, 2).Run(context.Background())
	var he *HaltError
	if !errors.As(err, &he) {
		t.Fatalf("Run() error = %v, want HaltError", err)
	}
	if he.SectionID != "base" {
		t.Errorf("HaltError.SectionID = %q, want base", he.SectionID)
	}
	if units.position("leaf") != -1 {
		t.Error("leaf ran despite its critical dependency failing")
	}
}

func TestRunnerPassesSkipWarnings(t *testing.T) {
	o := &models.Outline{Sections: []models.Section{
		{ID: "peers", Priority: models.PriorityLow},
		{ID: "summary", DependsOn: []string{"peers"}},
	}}
	sched, err := New(o, config.SkipWarn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	units := newFakeUnits()
	units.errs["peers"] = fmt.Errorf("no data")

	if err := NewRunner(sched, units, 2).Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	got := units.warnings["summary"]
	if len(got) != 1 {
		t.Fatalf("summary warnings = %v, want one entry", got)
	}
	if sched.Statuses()["summary"] != models.UnitComplete {
		t.Error("summary did not complete despite warn policy")
	}
}

func TestRunnerCancelledContext(t *testing.T) {
	sched, err := New(diamondOutline(), config.SkipWarn)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewRunner(sched, newFakeUnits(), 1).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
