// ABOUTME: Bead persistence - create, patch, supersede, soft delete, queries
// ABOUTME: Schema validation runs on every write; nothing is ever hard-deleted
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/loomworks/beadloom/internal/models"
)

const beadColumns = `id, type, title, summary, content, source_origin, source_title,
	source_url, source_path, retrieved_at, confidence, quality_score, freshness,
	version, supersedes, review_status, archived, sections, topics, created_at`

// BeadStore handles bead persistence
type BeadStore struct {
	db  *DB
	ids *idGenerator
}

// NewBeadStore creates a new BeadStore
func NewBeadStore(db *DB) *BeadStore {
	return &BeadStore{db: db, ids: newIDGenerator()}
}

// Create validates and inserts a new bead, assigning its id and version.
// Relationship edges carried on the bead are persisted in the same
// transaction; a dangling target is a validation error.
func (s *BeadStore) Create(bead *models.Bead) (string, error) {
	bead.ID = ""
	bead.Version = 1
	if bead.ReviewStatus == "" {
		bead.ReviewStatus = models.StatusUnreviewed
	}
	if bead.CreatedAt.IsZero() {
		bead.CreatedAt = time.Now().UTC()
	}
	if err := models.Validate(bead); err != nil {
		return "", err
	}
	bead.QualityScore = models.ComputeQuality(bead)

	err := s.withFreshID(bead, func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin create: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if err := insertBead(tx, bead); err != nil {
			return err
		}
		for _, rel := range bead.Relationships {
			if err := insertEdge(tx, bead.ID, rel.TargetID, rel.Type, rel.Strength); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit create: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return bead.ID, nil
}

// idConflictRetries bounds how many fresh ids one write will try when
// racing other writer processes over the same database file.
const idConflictRetries = 3

// withFreshID assigns bead a new id and runs commit, retrying with a later
// id when the insert hits a primary-key collision left by another writer.
// Each retry reseeds the generator from the stored maximum for that second,
// which also recovers from a wall clock that moved backwards.
func (s *BeadStore) withFreshID(bead *models.Bead, commit func() error) error {
	var lastErr error
	for attempt := 0; attempt <= idConflictRetries; attempt++ {
		bead.ID = s.ids.Next()
		err := commit()
		if err == nil {
			return nil
		}
		if !isBeadIDConflict(err) {
			return err
		}
		lastErr = err
		if rerr := s.reseedCounter(bead.ID); rerr != nil {
			return rerr
		}
	}
	return fmt.Errorf("allocate bead id: %w", lastErr)
}

func isBeadIDConflict(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: beads.id")
}

// reseedCounter advances the id generator past the highest id persisted for
// the second carried by conflictID.
func (s *BeadStore) reseedCounter(conflictID string) error {
	sec := strings.TrimPrefix(conflictID, "bd-")
	if i := strings.LastIndex(sec, "-"); i >= 0 {
		sec = sec[:i]
	}
	var maxID string
	err := s.db.QueryRow(`SELECT id FROM beads WHERE id LIKE ? ORDER BY id DESC LIMIT 1`, "bd-"+sec+"-%").Scan(&maxID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reseed id counter: %w", err)
	}
	counter := 0
	if i := strings.LastIndex(maxID, "-"); i >= 0 {
		if n, err := strconv.Atoi(maxID[i+1:]); err == nil {
			counter = n
		}
	}
	s.ids.advancePast(sec, counter)
	return nil
}

// Patch is a shallow-merge update applied without bumping the version.
// Nil fields are left unchanged. Versioned change goes through Supersede.
type Patch struct {
	Title        *string
	Summary      *string
	Confidence   *float64
	Freshness    *time.Time
	ReviewStatus *models.ReviewStatus
	Sections     []string
	Topics       []string
	Content      map[string]any // merged key-by-key into existing content
}

// Update shallow-merges a patch into an existing bead
func (s *BeadStore) Update(id string, patch Patch) (string, error) {
	bead, err := s.Get(id)
	if err != nil {
		return "", err
	}

	if patch.Title != nil {
		bead.Title = *patch.Title
	}
	if patch.Summary != nil {
		bead.Summary = *patch.Summary
	}
	if patch.Confidence != nil {
		bead.Confidence = *patch.Confidence
	}
	if patch.Freshness != nil {
		bead.Freshness = *patch.Freshness
	}
	if patch.ReviewStatus != nil {
		bead.ReviewStatus = *patch.ReviewStatus
	}
	if patch.Sections != nil {
		bead.Tags.Sections = patch.Sections
	}
	if patch.Topics != nil {
		bead.Tags.Topics = patch.Topics
	}
	for k, v := range patch.Content {
		bead.Content[k] = v
	}

	if err := models.Validate(bead); err != nil {
		return "", err
	}
	bead.QualityScore = models.ComputeQuality(bead)

	contentJSON, sectionsJSON, topicsJSON, err := marshalBeadFields(bead)
	if err != nil {
		return "", err
	}
	_, err = s.db.Exec(`
		UPDATE beads SET title = ?, summary = ?, content = ?, confidence = ?,
			quality_score = ?, freshness = ?, review_status = ?, sections = ?, topics = ?
		WHERE id = ?
	`, bead.Title, nullString(bead.Summary), contentJSON, bead.Confidence,
		bead.QualityScore, nullTime(bead.Freshness), string(bead.ReviewStatus),
		sectionsJSON, topicsJSON, id)
	if err != nil {
		return "", fmt.Errorf("update bead %s: %w", id, err)
	}
	return id, nil
}

// Supersede creates a new version of an existing bead. expectedVersion is a
// compare-and-swap guard: a stale caller is rejected with
// *VersionConflictError and the old bead is left unchanged. The old bead is
// archived but stays retrievable.
func (s *BeadStore) Supersede(oldID string, expectedVersion int, newBead *models.Bead) (string, error) {
	old, err := s.Get(oldID)
	if err != nil {
		return "", err
	}
	if old.Version != expectedVersion || old.Archived {
		return "", &VersionConflictError{ID: oldID, Expected: expectedVersion, Current: old.Version}
	}

	newBead.ID = ""
	newBead.Version = old.Version + 1
	newBead.Supersedes = oldID
	if newBead.ReviewStatus == "" {
		newBead.ReviewStatus = models.StatusUnreviewed
	}
	if newBead.CreatedAt.IsZero() {
		newBead.CreatedAt = time.Now().UTC()
	}
	if err := models.Validate(newBead); err != nil {
		return "", err
	}
	if err := s.checkSupersedeChain(oldID); err != nil {
		return "", err
	}
	newBead.QualityScore = models.ComputeQuality(newBead)

	err = s.withFreshID(newBead, func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin supersede: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		// CAS inside the transaction guards against a concurrent supersede
		res, err := tx.Exec(`UPDATE beads SET archived = 1 WHERE id = ? AND version = ? AND archived = 0`, oldID, expectedVersion)
		if err != nil {
			return fmt.Errorf("archive bead %s: %w", oldID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &VersionConflictError{ID: oldID, Expected: expectedVersion, Current: old.Version}
		}

		if err := insertBead(tx, newBead); err != nil {
			return err
		}
		for _, rel := range newBead.Relationships {
			if err := insertEdge(tx, newBead.ID, rel.TargetID, rel.Type, rel.Strength); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit supersede: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return newBead.ID, nil
}

// checkSupersedeChain walks the supersedes pointers from id and verifies the
// chain terminates with strictly decreasing versions.
func (s *BeadStore) checkSupersedeChain(id string) error {
	seen := map[string]bool{}
	cur := id
	prev := -1
	for cur != "" {
		if seen[cur] {
			return fmt.Errorf("supersede chain cycle detected at bead %s", cur)
		}
		seen[cur] = true

		var version int
		var next sql.NullString
		err := s.db.QueryRow(`SELECT version, supersedes FROM beads WHERE id = ?`, cur).Scan(&version, &next)
		if err == sql.ErrNoRows {
			return &NotFoundError{ID: cur}
		}
		if err != nil {
			return fmt.Errorf("walk supersede chain: %w", err)
		}
		if prev >= 0 && version >= prev {
			return fmt.Errorf("supersede chain version does not decrease at bead %s", cur)
		}
		prev = version
		cur = next.String
	}
	return nil
}

// Get retrieves a bead by id, archived or not
func (s *BeadStore) Get(id string) (*models.Bead, error) {
	row := s.db.QueryRow(`SELECT `+beadColumns+` FROM beads WHERE id = ?`, id)
	bead, err := scanBead(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get bead %s: %w", id, err)
	}
	if err := s.hydrateEdges(bead); err != nil {
		return nil, err
	}
	return bead, nil
}

// Delete soft-deletes a bead: it is marked rejected and excluded from
// default index views, but remains retrievable via Get.
func (s *BeadStore) Delete(id string) (bool, error) {
	res, err := s.db.Exec(`UPDATE beads SET review_status = ?, archived = 1 WHERE id = ?`,
		string(models.StatusRejected), id)
	if err != nil {
		return false, fmt.Errorf("delete bead %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, &NotFoundError{ID: id}
	}
	return true, nil
}

// Exists reports whether a bead id is present in the store
func (s *BeadStore) Exists(id string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM beads WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// All returns every bead in the store, including archived and rejected ones,
// ordered by id.
func (s *BeadStore) All() ([]*models.Bead, error) {
	rows, err := s.db.Query(`SELECT ` + beadColumns + ` FROM beads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list beads: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

// Active returns every bead that is neither rejected nor archived, ordered
// by id. This is the population the index is derived from.
func (s *BeadStore) Active() ([]*models.Bead, error) {
	rows, err := s.db.Query(`SELECT `+beadColumns+` FROM beads
		WHERE archived = 0 AND review_status != ? ORDER BY id`,
		string(models.StatusRejected))
	if err != nil {
		return nil, fmt.Errorf("list active beads: %w", err)
	}
	defer rows.Close()
	return s.collect(rows)
}

func (s *BeadStore) collect(rows *sql.Rows) ([]*models.Bead, error) {
	var beads []*models.Bead
	for rows.Next() {
		bead, err := scanBead(rows)
		if err != nil {
			return nil, err
		}
		beads = append(beads, bead)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, b := range beads {
		if err := s.hydrateEdges(b); err != nil {
			return nil, err
		}
	}
	return beads, nil
}

// hydrateEdges fills a bead's relationship list from the edges table
func (s *BeadStore) hydrateEdges(bead *models.Bead) error {
	rows, err := s.db.Query(`SELECT target_id, type, strength FROM relationships
		WHERE source_id = ? ORDER BY target_id, type`, bead.ID)
	if err != nil {
		return fmt.Errorf("hydrate edges for %s: %w", bead.ID, err)
	}
	defer rows.Close()

	bead.Relationships = nil
	for rows.Next() {
		var rel models.Relationship
		var relType string
		if err := rows.Scan(&rel.TargetID, &relType, &rel.Strength); err != nil {
			return err
		}
		rel.Type = models.RelationType(relType)
		bead.Relationships = append(bead.Relationships, rel)
	}
	return rows.Err()
}

// execer covers both *sql.Tx and *DB for shared insert helpers
type execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func insertBead(tx execer, bead *models.Bead) error {
	contentJSON, sectionsJSON, topicsJSON, err := marshalBeadFields(bead)
	if err != nil {
		return err
	}

	archived := 0
	if bead.Archived {
		archived = 1
	}
	_, err = tx.Exec(`
		INSERT INTO beads (`+beadColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, bead.ID, string(bead.Type), bead.Title, nullString(bead.Summary), contentJSON,
		bead.Source.Origin, bead.Source.Title, nullString(bead.Source.URL),
		nullString(bead.Source.Path), bead.Source.RetrievedAt,
		bead.Confidence, bead.QualityScore, nullTime(bead.Freshness),
		bead.Version, nullString(bead.Supersedes), string(bead.ReviewStatus),
		archived, sectionsJSON, topicsJSON, bead.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert bead %s: %w", bead.ID, err)
	}
	return nil
}

func marshalBeadFields(bead *models.Bead) (content, sections, topics string, err error) {
	contentBytes, err := json.Marshal(bead.Content)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal content: %w", err)
	}
	sectionBytes, err := json.Marshal(bead.Tags.Sections)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal sections: %w", err)
	}
	topicBytes, err := json.Marshal(bead.Tags.Topics)
	if err != nil {
		return "", "", "", fmt.Errorf("marshal topics: %w", err)
	}
	return string(contentBytes), string(sectionBytes), string(topicBytes), nil
}

// scanBead scans one row into a Bead. The row must carry beadColumns order.
func scanBead(scanner interface{ Scan(dest ...any) error }) (*models.Bead, error) {
	var (
		bead       models.Bead
		beadType   string
		status     string
		summary    sql.NullString
		sourceURL  sql.NullString
		sourcePath sql.NullString
		freshness  sql.NullTime
		supersedes sql.NullString
		topics     sql.NullString
		archived   int
		content    string
		sections   string
	)

	err := scanner.Scan(&bead.ID, &beadType, &bead.Title, &summary, &content,
		&bead.Source.Origin, &bead.Source.Title, &sourceURL, &sourcePath,
		&bead.Source.RetrievedAt, &bead.Confidence, &bead.QualityScore,
		&freshness, &bead.Version, &supersedes, &status, &archived,
		&sections, &topics, &bead.CreatedAt)
	if err != nil {
		return nil, err
	}

	bead.Type = models.BeadType(beadType)
	bead.ReviewStatus = models.ReviewStatus(status)
	bead.Summary = summary.String
	bead.Source.URL = sourceURL.String
	bead.Source.Path = sourcePath.String
	if freshness.Valid {
		bead.Freshness = freshness.Time
	}
	bead.Supersedes = supersedes.String
	bead.Archived = archived != 0

	if err := json.Unmarshal([]byte(content), &bead.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content for %s: %w", bead.ID, err)
	}
	if err := json.Unmarshal([]byte(sections), &bead.Tags.Sections); err != nil {
		return nil, fmt.Errorf("unmarshal sections for %s: %w", bead.ID, err)
	}
	if topics.Valid && topics.String != "" && topics.String != "null" {
		if err := json.Unmarshal([]byte(topics.String), &bead.Tags.Topics); err != nil {
			return nil, fmt.Errorf("unmarshal topics for %s: %w", bead.ID, err)
		}
	}
	return &bead, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
