// ABOUTME: Unit run state persistence - one row per section per run
// ABOUTME: Written only by the pipeline; read by the scheduler and resume
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/loomworks/beadloom/internal/models"
)

// RunStateStore handles unit run state persistence
type RunStateStore struct {
	db *DB
}

// NewRunStateStore creates a new RunStateStore
func NewRunStateStore(db *DB) *RunStateStore {
	return &RunStateStore{db: db}
}

// Save upserts the run state for a section
func (s *RunStateStore) Save(state *models.UnitRunState) error {
	warningsJSON, err := json.Marshal(state.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO unit_runs (section_id, status, iteration_count, last_quality_score, error, warnings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(section_id) DO UPDATE SET
			status = excluded.status,
			iteration_count = excluded.iteration_count,
			last_quality_score = excluded.last_quality_score,
			error = excluded.error,
			warnings = excluded.warnings,
			updated_at = excluded.updated_at
	`, state.SectionID, string(state.Status), state.IterationCount,
		state.LastQualityScore, nullString(state.Error), string(warningsJSON), state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save run state for %s: %w", state.SectionID, err)
	}
	return nil
}

// Get returns the run state for a section, or nil if none exists
func (s *RunStateStore) Get(sectionID string) (*models.UnitRunState, error) {
	row := s.db.QueryRow(`SELECT section_id, status, iteration_count,
		last_quality_score, error, warnings, updated_at
		FROM unit_runs WHERE section_id = ?`, sectionID)
	state, err := scanRunState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run state for %s: %w", sectionID, err)
	}
	return state, nil
}

// All returns every unit run state keyed by section id
func (s *RunStateStore) All() (map[string]*models.UnitRunState, error) {
	rows, err := s.db.Query(`SELECT section_id, status, iteration_count,
		last_quality_score, error, warnings, updated_at FROM unit_runs`)
	if err != nil {
		return nil, fmt.Errorf("list run states: %w", err)
	}
	defer rows.Close()

	states := map[string]*models.UnitRunState{}
	for rows.Next() {
		state, err := scanRunState(rows)
		if err != nil {
			return nil, err
		}
		states[state.SectionID] = state
	}
	return states, rows.Err()
}

// Reset clears the run state for a section (manual rerun)
func (s *RunStateStore) Reset(sectionID string) error {
	_, err := s.db.Exec(`DELETE FROM unit_runs WHERE section_id = ?`, sectionID)
	if err != nil {
		return fmt.Errorf("reset run state for %s: %w", sectionID, err)
	}
	return nil
}

func scanRunState(scanner interface{ Scan(dest ...any) error }) (*models.UnitRunState, error) {
	var (
		state    models.UnitRunState
		status   string
		errText  sql.NullString
		warnings sql.NullString
	)
	err := scanner.Scan(&state.SectionID, &status, &state.IterationCount,
		&state.LastQualityScore, &errText, &warnings, &state.UpdatedAt)
	if err != nil {
		return nil, err
	}
	state.Status = models.UnitStatus(status)
	state.Error = errText.String
	if warnings.Valid && warnings.String != "" && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &state.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings for %s: %w", state.SectionID, err)
		}
	}
	return &state, nil
}
