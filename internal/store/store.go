package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version. Bump when adding
// migrations.
const CurrentSchemaVersion = 1

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// Store is the persistence collaborator: contacts, call logs, the knowledge
// base and operator settings, all in one SQLite file.
type Store struct {
	db *sql.DB
}

// Open initializes the SQLite database at the given path, creating the parent
// directory and running migrations as needed.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Pragmas go in the connection string so they apply to every pooled
	// connection.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	version, err := userVersion(db)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS contacts (
		  id           INTEGER PRIMARY KEY AUTOINCREMENT,
		  name         TEXT,
		  company      TEXT,
		  phone_number TEXT NOT NULL UNIQUE,
		  email        TEXT,
		  is_spam      INTEGER NOT NULL DEFAULT 0,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS call_logs (
		  id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		  contact_id           INTEGER REFERENCES contacts(id),
		  call_id              TEXT NOT NULL,
		  phone_number         TEXT NOT NULL,
		  direction            TEXT NOT NULL,
		  status               TEXT NOT NULL,
		  duration             INTEGER NOT NULL DEFAULT 0,
		  transcript           TEXT,
		  summary              TEXT,
		  lead_qualified       INTEGER NOT NULL DEFAULT 0,
		  caller_name          TEXT,
		  caller_company       TEXT,
		  reason_for_call      TEXT,
		  transferred_to_human INTEGER NOT NULL DEFAULT 0,
		  recording_url        TEXT,
		  started_at           INTEGER NOT NULL,
		  ended_at             INTEGER,
		  created_at           INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_call_logs_started_at
		ON call_logs(started_at DESC);

		CREATE INDEX IF NOT EXISTS idx_call_logs_call_id
		ON call_logs(call_id);

		CREATE TABLE IF NOT EXISTS knowledge_base (
		  id         INTEGER PRIMARY KEY AUTOINCREMENT,
		  category   TEXT NOT NULL DEFAULT 'General',
		  question   TEXT NOT NULL,
		  answer     TEXT NOT NULL,
		  is_active  INTEGER NOT NULL DEFAULT 1,
		  created_at INTEGER NOT NULL,
		  updated_at INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS system_settings (
		  setting_key   TEXT PRIMARY KEY,
		  setting_value TEXT NOT NULL,
		  updated_at    INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

func userVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func fromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
