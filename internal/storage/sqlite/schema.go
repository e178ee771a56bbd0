// ABOUTME: SQLite database schema for the bead store
// ABOUTME: Creates all tables and indexes for beads, edges, run state, artifacts
package sqlite

// Schema contains all SQL statements for database initialization
const Schema = `
-- Beads: the atomic research records
CREATE TABLE IF NOT EXISTS beads (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    title TEXT NOT NULL,
    summary TEXT,
    content TEXT NOT NULL,
    source_origin TEXT NOT NULL,
    source_title TEXT NOT NULL,
    source_url TEXT,
    source_path TEXT,
    retrieved_at DATETIME NOT NULL,
    confidence REAL DEFAULT 0,
    quality_score REAL DEFAULT 0,
    freshness DATETIME,
    version INTEGER NOT NULL DEFAULT 1,
    supersedes TEXT,
    review_status TEXT NOT NULL DEFAULT 'unreviewed',
    archived INTEGER NOT NULL DEFAULT 0,
    sections TEXT NOT NULL,
    topics TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Directed labeled edges between beads
CREATE TABLE IF NOT EXISTS relationships (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    source_id TEXT NOT NULL REFERENCES beads(id),
    target_id TEXT NOT NULL REFERENCES beads(id),
    type TEXT NOT NULL,
    strength REAL NOT NULL DEFAULT 1.0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(source_id, target_id, type)
);

-- Per-section pipeline execution state
CREATE TABLE IF NOT EXISTS unit_runs (
    section_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    iteration_count INTEGER NOT NULL DEFAULT 0,
    last_quality_score REAL NOT NULL DEFAULT 0,
    error TEXT,
    warnings TEXT,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Finished section artifacts with citation lists
CREATE TABLE IF NOT EXISTS artifacts (
    id TEXT PRIMARY KEY,
    section_id TEXT NOT NULL,
    body TEXT NOT NULL,
    citations TEXT NOT NULL,
    quality_score REAL NOT NULL DEFAULT 0,
    word_count INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for efficient querying
CREATE INDEX IF NOT EXISTS idx_beads_type ON beads(type);
CREATE INDEX IF NOT EXISTS idx_beads_status ON beads(review_status, archived);
CREATE INDEX IF NOT EXISTS idx_beads_origin ON beads(source_origin);
CREATE INDEX IF NOT EXISTS idx_rel_source ON relationships(source_id);
CREATE INDEX IF NOT EXISTS idx_rel_target ON relationships(target_id);
CREATE INDEX IF NOT EXISTS idx_artifacts_section ON artifacts(section_id);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 1
