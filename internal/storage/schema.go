package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// SchemaVersion is the current layout of the SQLite store.
const SchemaVersion = "1"

const createEntriesTable = `
CREATE TABLE IF NOT EXISTS entries (
	key TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	size INTEGER NOT NULL,
	updated_at TEXT NOT NULL
)`

const createCacheMetadataTable = `
CREATE TABLE IF NOT EXISTS cache_metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// CreateSchema creates the entries and metadata tables and records the
// schema version. Uses a transaction so a partial schema is never left
// behind.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"entries", createEntriesTable},
		{"cache_metadata", createCacheMetadataTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.Exec(`
		INSERT INTO cache_metadata (key, value, updated_at) VALUES ('schema_version', ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		SchemaVersion, now); err != nil {
		return fmt.Errorf("failed to bootstrap cache_metadata: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

// GetSchemaVersion returns the recorded schema version, or "0" for a
// database that has never been initialized.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var tables int
	err := sq.Select("COUNT(*)").
		From("sqlite_master").
		Where(sq.Eq{"type": "table", "name": "cache_metadata"}).
		RunWith(db).
		QueryRow().
		Scan(&tables)
	if err != nil {
		return "", fmt.Errorf("failed to inspect database: %w", err)
	}
	if tables == 0 {
		return "0", nil
	}

	var version string
	err = sq.Select("value").
		From("cache_metadata").
		Where(sq.Eq{"key": "schema_version"}).
		RunWith(db).
		QueryRow().
		Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", errors.New("cache_metadata has no schema_version")
	case err != nil:
		return "", fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
