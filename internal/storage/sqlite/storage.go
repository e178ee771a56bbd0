// ABOUTME: Unified storage layer wrapping all SQLite stores
// ABOUTME: The single owner of bead identity; fires index invalidation on writes
package sqlite

import (
	"fmt"

	"github.com/loomworks/beadloom/internal/models"
)

// Invalidator receives incremental cache invalidation on every successful
// bead write. The index registers itself here; derived views are never
// authoritative on their own.
type Invalidator interface {
	InvalidateBead(bead *models.Bead)
}

// Storage manages all persistent data for a beadloom run
type Storage struct {
	db          *DB
	beads       *BeadStore
	rels        *RelationshipStore
	runs        *RunStateStore
	artifacts   *ArtifactStore
	invalidator Invalidator
}

// NewStorage initializes storage at the default path
func NewStorage() (*Storage, error) {
	return NewStorageWithPath(DefaultDBPath())
}

// NewStorageWithPath initializes storage with a custom database path
func NewStorageWithPath(dbPath string) (*Storage, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newStorage(db), nil
}

// NewStorageInMemory initializes in-memory storage (for testing)
func NewStorageInMemory() (*Storage, error) {
	db, err := OpenInMemory()
	if err != nil {
		return nil, err
	}
	return newStorage(db), nil
}

func newStorage(db *DB) *Storage {
	return &Storage{
		db:        db,
		beads:     NewBeadStore(db),
		rels:      NewRelationshipStore(db),
		runs:      NewRunStateStore(db),
		artifacts: NewArtifactStore(db),
	}
}

// Close closes the underlying database
func (s *Storage) Close() error {
	return s.db.Close()
}

// DB exposes the underlying database handle
func (s *Storage) DB() *DB {
	return s.db
}

// SetInvalidator registers the derived-view invalidation hook
func (s *Storage) SetInvalidator(inv Invalidator) {
	s.invalidator = inv
}

func (s *Storage) invalidate(bead *models.Bead) {
	if s.invalidator != nil && bead != nil {
		s.invalidator.InvalidateBead(bead)
	}
}

// CreateBead validates and stores a new bead, returning its assigned id
func (s *Storage) CreateBead(bead *models.Bead) (string, error) {
	id, err := s.beads.Create(bead)
	if err != nil {
		return "", err
	}
	s.invalidate(bead)
	return id, nil
}

// UpdateBead shallow-merges a patch into an existing bead
func (s *Storage) UpdateBead(id string, patch Patch) (string, error) {
	before, err := s.beads.Get(id)
	if err != nil {
		return "", err
	}
	if _, err := s.beads.Update(id, patch); err != nil {
		return "", err
	}
	after, err := s.beads.Get(id)
	if err != nil {
		return "", err
	}
	// Both old and new tag keys must drop out of the cache
	s.invalidate(before)
	s.invalidate(after)
	return id, nil
}

// SupersedeBead creates a new version of oldID guarded by expectedVersion
func (s *Storage) SupersedeBead(oldID string, expectedVersion int, newBead *models.Bead) (string, error) {
	id, err := s.beads.Supersede(oldID, expectedVersion, newBead)
	if err != nil {
		return "", err
	}
	if old, getErr := s.beads.Get(oldID); getErr == nil {
		s.invalidate(old)
	}
	s.invalidate(newBead)
	return id, nil
}

// GetBead retrieves a bead by id, archived or not
func (s *Storage) GetBead(id string) (*models.Bead, error) {
	return s.beads.Get(id)
}

// DeleteBead soft-deletes a bead; it remains retrievable via GetBead
func (s *Storage) DeleteBead(id string) (bool, error) {
	ok, err := s.beads.Delete(id)
	if err != nil {
		return false, err
	}
	if bead, getErr := s.beads.Get(id); getErr == nil {
		s.invalidate(bead)
	}
	return ok, nil
}

// BeadExists reports whether a bead id is present
func (s *Storage) BeadExists(id string) (bool, error) {
	return s.beads.Exists(id)
}

// AllBeads returns every bead including archived and rejected ones
func (s *Storage) AllBeads() ([]*models.Bead, error) {
	return s.beads.All()
}

// ActiveBeads returns beads that are neither rejected nor archived
func (s *Storage) ActiveBeads() ([]*models.Bead, error) {
	return s.beads.Active()
}

// AddRelationship adds a directed labeled edge between two beads
func (s *Storage) AddRelationship(sourceID, targetID string, relType models.RelationType, strength float64) (bool, error) {
	added, err := s.rels.Add(sourceID, targetID, relType, strength)
	if err != nil {
		return false, err
	}
	if added {
		if bead, getErr := s.beads.Get(sourceID); getErr == nil {
			s.invalidate(bead)
		}
	}
	return added, nil
}

// Relationships exposes edge queries
func (s *Storage) Relationships() *RelationshipStore {
	return s.rels
}

// RunStates exposes unit run state persistence
func (s *Storage) RunStates() *RunStateStore {
	return s.runs
}

// Artifacts exposes section artifact persistence
func (s *Storage) Artifacts() *ArtifactStore {
	return s.artifacts
}
