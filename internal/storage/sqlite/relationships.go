// ABOUTME: Relationship edge persistence - directed labeled edges between beads
// ABOUTME: Rejects self-loops and dangling ids; idempotent per (source, target, type)
package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/loomworks/beadloom/internal/models"
)

// Edge is one persisted relationship row
type Edge struct {
	SourceID string              `json:"source_id"`
	TargetID string              `json:"target_id"`
	Type     models.RelationType `json:"type"`
	Strength float64             `json:"strength"`
}

// RelationshipStore handles edge persistence
type RelationshipStore struct {
	db *DB
}

// NewRelationshipStore creates a new RelationshipStore
func NewRelationshipStore(db *DB) *RelationshipStore {
	return &RelationshipStore{db: db}
}

// Add inserts an edge. It rejects self-loops, unknown ids, and unknown
// relationship types. Adding an identical edge again is a no-op; the bool
// reports whether a new edge was written.
func (s *RelationshipStore) Add(sourceID, targetID string, relType models.RelationType, strength float64) (bool, error) {
	if sourceID == targetID {
		return false, fmt.Errorf("self-loop rejected for bead %s", sourceID)
	}
	if !models.ValidRelationType(relType) {
		return false, fmt.Errorf("unknown relationship type %q", relType)
	}
	if strength < 0 || strength > 1 {
		return false, fmt.Errorf("strength %v outside [0,1]", strength)
	}
	for _, id := range []string{sourceID, targetID} {
		var one int
		err := s.db.QueryRow(`SELECT 1 FROM beads WHERE id = ?`, id).Scan(&one)
		if err == sql.ErrNoRows {
			return false, &NotFoundError{ID: id}
		}
		if err != nil {
			return false, fmt.Errorf("check bead %s: %w", id, err)
		}
	}

	res, err := s.db.Exec(`
		INSERT INTO relationships (source_id, target_id, type, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO NOTHING
	`, sourceID, targetID, string(relType), strength)
	if err != nil {
		return false, fmt.Errorf("add relationship: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Outgoing returns edges leaving the given bead, optionally filtered by type
func (s *RelationshipStore) Outgoing(sourceID string, relType models.RelationType) ([]Edge, error) {
	query := `SELECT source_id, target_id, type, strength FROM relationships
		WHERE source_id = ?`
	args := []interface{}{sourceID}
	if relType != "" {
		query += ` AND type = ?`
		args = append(args, string(relType))
	}
	query += ` ORDER BY target_id, type`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("outgoing edges for %s: %w", sourceID, err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

// All returns every edge in the store ordered by (source, target, type)
func (s *RelationshipStore) All() ([]Edge, error) {
	rows, err := s.db.Query(`SELECT source_id, target_id, type, strength
		FROM relationships ORDER BY source_id, target_id, type`)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	defer rows.Close()
	return collectEdges(rows)
}

// Connected reports whether the two beads are linked, in either direction,
// by an edge of the given type.
func (s *RelationshipStore) Connected(a, b string, relType models.RelationType) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM relationships
		WHERE type = ? AND ((source_id = ? AND target_id = ?) OR (source_id = ? AND target_id = ?))`,
		string(relType), a, b, b, a).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func collectEdges(rows *sql.Rows) ([]Edge, error) {
	var edges []Edge
	for rows.Next() {
		var e Edge
		var relType string
		if err := rows.Scan(&e.SourceID, &e.TargetID, &relType, &e.Strength); err != nil {
			return nil, err
		}
		e.Type = models.RelationType(relType)
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// insertEdge writes one edge inside an existing transaction, validating the
// target exists. Used when a bead carries relationships at create time.
func insertEdge(tx *sql.Tx, sourceID, targetID string, relType models.RelationType, strength float64) error {
	if sourceID == targetID {
		return fmt.Errorf("self-loop rejected for bead %s", sourceID)
	}
	var one int
	err := tx.QueryRow(`SELECT 1 FROM beads WHERE id = ?`, targetID).Scan(&one)
	if err == sql.ErrNoRows {
		return &NotFoundError{ID: targetID}
	}
	if err != nil {
		return fmt.Errorf("check edge target %s: %w", targetID, err)
	}

	_, err = tx.Exec(`
		INSERT INTO relationships (source_id, target_id, type, strength)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(source_id, target_id, type) DO NOTHING
	`, sourceID, targetID, string(relType), strength)
	if err != nil {
		return fmt.Errorf("insert edge %s->%s: %w", sourceID, targetID, err)
	}
	return nil
}
