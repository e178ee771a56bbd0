// ABOUTME: Outline loading and validation - the declared section graph
// ABOUTME: Fails fast with CycleError naming the cycle when depends_on loops
package outline

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/loomworks/beadloom/internal/models"
)

// CycleError reports a dependency cycle in the outline. The run never
// starts when the outline is cyclic.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("outline dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Load reads and validates an outline from a YAML file
func Load(path string) (*models.Outline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read outline: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates an outline from YAML bytes
func Parse(data []byte) (*models.Outline, error) {
	var o models.Outline
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("parse outline: %w", err)
	}
	if err := Validate(&o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Validate checks section ids, priorities, thresholds, dependency targets,
// and acyclicity. Defaults are filled for omitted priorities.
func Validate(o *models.Outline) error {
	if len(o.Sections) == 0 {
		return fmt.Errorf("outline has no sections")
	}

	seen := map[string]bool{}
	for i := range o.Sections {
		s := &o.Sections[i]
		if strings.TrimSpace(s.ID) == "" {
			return fmt.Errorf("section %d has no id", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate section id %q", s.ID)
		}
		seen[s.ID] = true

		if s.Priority == "" {
			s.Priority = models.PriorityMedium
		}
		if !models.ValidPriority(s.Priority) {
			return fmt.Errorf("section %s: unknown priority %q", s.ID, s.Priority)
		}
		if s.QualityThreshold < 0 || s.QualityThreshold > 1 {
			return fmt.Errorf("section %s: quality_threshold %v outside [0,1]", s.ID, s.QualityThreshold)
		}
		if s.MinBeads < 0 {
			return fmt.Errorf("section %s: min_beads must be >= 0", s.ID)
		}
		if s.TargetLength < 0 {
			return fmt.Errorf("section %s: target_length must be >= 0", s.ID)
		}
	}

	for _, s := range o.Sections {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("section %s depends on unknown section %q", s.ID, dep)
			}
			if dep == s.ID {
				return &CycleError{Cycle: []string{s.ID, s.ID}}
			}
		}
	}

	if cycle := findCycle(o); cycle != nil {
		return &CycleError{Cycle: cycle}
	}
	return nil
}

// findCycle runs a depth-first search over depends_on edges and returns the
// first cycle found as an id path, or nil.
func findCycle(o *models.Outline) []string {
	deps := map[string][]string{}
	for _, s := range o.Sections {
		deps[s.ID] = s.DependsOn
	}

	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)
	state := map[string]int{}
	var stack []string

	var visit func(id string) []string
	visit = func(id string) []string {
		state[id] = inStack
		stack = append(stack, id)

		for _, dep := range deps[id] {
			switch state[dep] {
			case inStack:
				// Slice the stack from the first occurrence of dep
				for i, v := range stack {
					if v == dep {
						cycle := append([]string{}, stack[i:]...)
						return append(cycle, dep)
					}
				}
			case unvisited:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, s := range o.Sections {
		if state[s.ID] == unvisited {
			if cycle := visit(s.ID); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
