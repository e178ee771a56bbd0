// ABOUTME: Dependency scheduler - topological ordering and the ready set
// ABOUTME: Critical failures halt the run; non-critical ones skip per policy
package schedule

import (
	"fmt"
	"sort"
	"sync"

	"github.com/loomworks/beadloom/internal/config"
	"github.com/loomworks/beadloom/internal/models"
	"github.com/loomworks/beadloom/internal/outline"
)

// Scheduler tracks per-section status over the outline's dependency graph
// and decides which sections may run.
type Scheduler struct {
	outline *models.Outline
	policy  config.SkipPolicy

	mu       sync.Mutex
	status   map[string]models.UnitStatus
	haltedBy string
}

// New validates the outline (failing fast on cycles) and builds a
// scheduler with every section pending.
func New(o *models.Outline, policy config.SkipPolicy) (*Scheduler, error) {
	if err := outline.Validate(o); err != nil {
		return nil, err
	}
	s := &Scheduler{
		outline: o,
		policy:  policy,
		status:  map[string]models.UnitStatus{},
	}
	for _, sec := range o.Sections {
		s.status[sec.ID] = models.UnitPending
	}
	return s, nil
}

// Outline returns the scheduler's outline
func (s *Scheduler) Outline() *models.Outline {
	return s.outline
}

// ReadyUnits returns the sections whose every dependency is in completed
// and which are not themselves in completed, ordered by priority then
// declared outline order. Pure over the outline; used for inspection and
// what-if queries.
func (s *Scheduler) ReadyUnits(completed []string) []models.Section {
	done := map[string]bool{}
	for _, id := range completed {
		done[id] = true
	}

	var ready []models.Section
	for _, sec := range s.outline.Sections {
		if done[sec.ID] {
			continue
		}
		ok := true
		for _, dep := range sec.DependsOn {
			if !done[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, sec)
		}
	}
	sortReady(ready, s.outline)
	return ready
}

// Next returns the sections ready to run now and marks them running. A
// halted scheduler vends nothing. Sections whose dependencies were skipped
// are still vended under the warn policy; the cascade policy has already
// skipped them.
func (s *Scheduler) Next() []models.Section {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haltedBy != "" {
		return nil
	}

	var ready []models.Section
	for _, sec := range s.outline.Sections {
		if s.status[sec.ID] != models.UnitPending {
			continue
		}
		ok := true
		for _, dep := range sec.DependsOn {
			switch s.status[dep] {
			case models.UnitComplete, models.UnitSkipped:
			default:
				ok = false
			}
		}
		if ok {
			ready = append(ready, sec)
		}
	}
	sortReady(ready, s.outline)
	for _, sec := range ready {
		s.status[sec.ID] = models.UnitRunning
	}
	return ready
}

// DependencyWarnings names the skipped dependencies of a section, to be
// carried on its unit run state.
func (s *Scheduler) DependencyWarnings(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.outline.Section(id)
	if sec == nil {
		return nil
	}
	var warnings []string
	for _, dep := range sec.DependsOn {
		if s.status[dep] == models.UnitSkipped {
			warnings = append(warnings, fmt.Sprintf("dependency %s was skipped", dep))
		}
	}
	return warnings
}

// Complete marks a section complete
func (s *Scheduler) Complete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[id] = models.UnitComplete
}

// Skip marks a section skipped, cascading to transitive dependents when
// the cascade policy is configured.
func (s *Scheduler) Skip(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skipLocked(id)
}

func (s *Scheduler) skipLocked(id string) {
	s.status[id] = models.UnitSkipped
	if s.policy != config.SkipCascade {
		return
	}
	for _, sec := range s.outline.Sections {
		if s.status[sec.ID] != models.UnitPending {
			continue
		}
		for _, dep := range sec.DependsOn {
			if dep == id {
				s.skipLocked(sec.ID)
				break
			}
		}
	}
}

// Fail marks a section failed. A critical failure halts the scheduler.
// A non-critical failure degrades to skipped so dependents can either
// proceed with a warning or cascade, per policy; the persisted unit run
// state keeps the failure record. The bool reports whether the run halted.
func (s *Scheduler) Fail(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec := s.outline.Section(id)
	if sec != nil && sec.Priority == models.PriorityCritical {
		s.status[id] = models.UnitFailed
		s.haltedBy = id
		return true
	}
	s.skipLocked(id)
	return false
}

// Halted reports whether a critical failure stopped the run, and by whom
func (s *Scheduler) Halted() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.haltedBy, s.haltedBy != ""
}

// Done reports whether no further work can be vended: every section is
// terminal, or the run halted and nothing is still running.
func (s *Scheduler) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := 0
	pending := 0
	for _, sec := range s.outline.Sections {
		switch s.status[sec.ID] {
		case models.UnitRunning:
			running++
		case models.UnitPending:
			pending++
		}
	}
	if s.haltedBy != "" {
		return running == 0
	}
	return running == 0 && pending == 0
}

// Statuses returns a copy of the current per-section statuses
func (s *Scheduler) Statuses() map[string]models.UnitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.UnitStatus, len(s.status))
	for k, v := range s.status {
		out[k] = v
	}
	return out
}

// Restore seeds statuses from a resume plan so finished units are not redone
func (s *Scheduler) Restore(completed, skipped []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range completed {
		s.status[id] = models.UnitComplete
	}
	for _, id := range skipped {
		s.status[id] = models.UnitSkipped
	}
}

// sortReady orders by priority (critical first) then declared outline order
func sortReady(ready []models.Section, o *models.Outline) {
	pos := map[string]int{}
	for i, sec := range o.Sections {
		pos[sec.ID] = i
	}
	sort.SliceStable(ready, func(i, j int) bool {
		pi, pj := ready[i].Priority.Rank(), ready[j].Priority.Rank()
		if pi != pj {
			return pi > pj
		}
		return pos[ready[i].ID] < pos[ready[j].ID]
	})
}
