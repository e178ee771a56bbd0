// ABOUTME: Section artifact persistence - the finished output of each unit
// ABOUTME: Citation lists are stored alongside the text for the render collaborator
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/loomworks/beadloom/internal/models"
)

// ArtifactStore handles section artifact persistence
type ArtifactStore struct {
	db *DB
}

// NewArtifactStore creates a new ArtifactStore
func NewArtifactStore(db *DB) *ArtifactStore {
	return &ArtifactStore{db: db}
}

// Save persists an artifact, assigning an id if absent. Saving again for the
// same section replaces the previous artifact.
func (s *ArtifactStore) Save(artifact *models.SectionArtifact) error {
	if artifact.ID == "" {
		artifact.ID = uuid.New().String()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now().UTC()
	}
	citationsJSON, err := json.Marshal(artifact.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin artifact save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM artifacts WHERE section_id = ?`, artifact.SectionID); err != nil {
		return fmt.Errorf("replace artifact for %s: %w", artifact.SectionID, err)
	}
	_, err = tx.Exec(`
		INSERT INTO artifacts (id, section_id, body, citations, quality_score, word_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, artifact.ID, artifact.SectionID, artifact.Text, string(citationsJSON),
		artifact.QualityScore, artifact.WordCount, artifact.CreatedAt)
	if err != nil {
		return fmt.Errorf("save artifact for %s: %w", artifact.SectionID, err)
	}
	return tx.Commit()
}

// GetBySection returns the artifact for a section, or nil if none exists
func (s *ArtifactStore) GetBySection(sectionID string) (*models.SectionArtifact, error) {
	row := s.db.QueryRow(`SELECT id, section_id, body, citations, quality_score, word_count, created_at
		FROM artifacts WHERE section_id = ?`, sectionID)
	artifact, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get artifact for %s: %w", sectionID, err)
	}
	return artifact, nil
}

// All returns every artifact ordered by section id
func (s *ArtifactStore) All() ([]*models.SectionArtifact, error) {
	rows, err := s.db.Query(`SELECT id, section_id, body, citations, quality_score, word_count, created_at
		FROM artifacts ORDER BY section_id`)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*models.SectionArtifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func scanArtifact(scanner interface{ Scan(dest ...any) error }) (*models.SectionArtifact, error) {
	var (
		artifact  models.SectionArtifact
		citations string
	)
	err := scanner.Scan(&artifact.ID, &artifact.SectionID, &artifact.Text,
		&citations, &artifact.QualityScore, &artifact.WordCount, &artifact.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(citations), &artifact.Citations); err != nil {
		return nil, fmt.Errorf("unmarshal citations for %s: %w", artifact.SectionID, err)
	}
	return &artifact, nil
}
