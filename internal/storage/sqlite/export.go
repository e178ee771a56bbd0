// ABOUTME: Plain-data export of the whole store for audit and rendering
// ABOUTME: Everything is inspectable without the running process
package sqlite

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/loomworks/beadloom/internal/models"
)

// Dump is a plain structured snapshot of the entire store
type Dump struct {
	Beads     []*models.Bead            `json:"beads"`
	Edges     []Edge                    `json:"edges"`
	RunStates []*models.UnitRunState    `json:"run_states"`
	Artifacts []*models.SectionArtifact `json:"artifacts"`
}

// Export collects every bead, edge, run state, and artifact
func (s *Storage) Export() (*Dump, error) {
	beads, err := s.beads.All()
	if err != nil {
		return nil, fmt.Errorf("export beads: %w", err)
	}
	edges, err := s.rels.All()
	if err != nil {
		return nil, fmt.Errorf("export edges: %w", err)
	}
	states, err := s.runs.All()
	if err != nil {
		return nil, fmt.Errorf("export run states: %w", err)
	}
	artifacts, err := s.artifacts.All()
	if err != nil {
		return nil, fmt.Errorf("export artifacts: %w", err)
	}

	dump := &Dump{Beads: beads, Edges: edges, Artifacts: artifacts}
	for _, state := range states {
		dump.RunStates = append(dump.RunStates, state)
	}
	sort.Slice(dump.RunStates, func(i, j int) bool {
		return dump.RunStates[i].SectionID < dump.RunStates[j].SectionID
	})
	return dump, nil
}

// ExportJSON renders the dump as indented JSON
func (s *Storage) ExportJSON() ([]byte, error) {
	dump, err := s.Export()
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(dump, "", "  ")
}
