// Package persist implements IndexPersistence: saving and loading a
// index.Index to and from the on-disk artifact pair spec.md §6 describes
// (an opaque binary index plus a manifest.json sidecar). The binary
// artifact here is a SQLite database, generalized from the teacher's
// extraction schema down to the four tables this spec's data model needs.
package persist

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer backing one index.scip-equivalent
// artifact (the file named index in the artifact directory; see Manifest
// for the sidecar).
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a SQLite database at dbPath with WAL
// mode enabled, mirroring the teacher's connection string.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the four tables the index data model needs. Idempotent.
func (s *Store) Migrate() error {
	if _, err := s.db.Exec(schemaDDL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS documents (
  id              INTEGER PRIMARY KEY,
  path            TEXT NOT NULL UNIQUE,
  language        TEXT NOT NULL,
  content_hash    BLOB,
  last_indexed_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS symbols (
  symbol_id        TEXT PRIMARY KEY,
  document_id      INTEGER NOT NULL REFERENCES documents(id),
  display_name     TEXT NOT NULL,
  kind             TEXT NOT NULL,
  documentation     TEXT,
  signature_hint   TEXT,
  enclosing_symbol TEXT,
  seq              INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS occurrences (
  id                 INTEGER PRIMARY KEY,
  document_id        INTEGER NOT NULL REFERENCES documents(id),
  symbol_id          TEXT NOT NULL,
  start_line         INTEGER NOT NULL,
  start_col          INTEGER NOT NULL,
  end_line           INTEGER NOT NULL,
  end_col            INTEGER NOT NULL,
  roles              INTEGER NOT NULL,
  enclosing_start_line INTEGER,
  enclosing_start_col  INTEGER,
  enclosing_end_line   INTEGER,
  enclosing_end_col    INTEGER,
  has_enclosing        BOOLEAN NOT NULL DEFAULT FALSE,
  seq                INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS relationships (
  id          INTEGER PRIMARY KEY,
  document_id INTEGER NOT NULL REFERENCES documents(id),
  from_symbol TEXT NOT NULL,
  to_symbol   TEXT NOT NULL,
  kind        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_symbols_document ON symbols(document_id);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(display_name);
CREATE INDEX IF NOT EXISTS idx_symbols_kind ON symbols(kind);
CREATE INDEX IF NOT EXISTS idx_symbols_enclosing ON symbols(enclosing_symbol);
CREATE INDEX IF NOT EXISTS idx_occurrences_document ON occurrences(document_id);
CREATE INDEX IF NOT EXISTS idx_occurrences_symbol ON occurrences(symbol_id);
CREATE INDEX IF NOT EXISTS idx_relationships_document ON relationships(document_id);
CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_symbol);
CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_symbol);
`

