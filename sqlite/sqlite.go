// Package sqlite provides SQLite-based storage for ragdoc sources, section
// trees, chunk vectors and conversations.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// schemaVersion is stored in PRAGMA user_version. Databases written by a
// newer build are refused.
const schemaVersion = 1

const memoryPath = ":memory:"

// DB wraps a single-connection SQLite handle. SQLite allows one writer, so
// every service shares the same connection.
type DB struct {
	db   *sql.DB
	path string
}

// NewDB returns a DB for path. ":memory:" opens a private in-memory
// database.
func NewDB(path string) *DB {
	return &DB{path: path}
}

// pragmas run on every open. WAL is skipped for in-memory databases.
func (db *DB) pragmas() []string {
	p := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	if db.path != memoryPath {
		p = append(p, "PRAGMA journal_mode = WAL")
	}
	return p
}

// Open connects, applies connection settings and migrates the schema.
func (db *DB) Open() error {
	conn, err := sql.Open("sqlite3", db.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	for _, pragma := range db.pragmas() {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	db.db = conn
	if err := db.migrate(); err != nil {
		conn.Close()
		db.db = nil
		return err
	}
	return nil
}

// migrate creates the schema on a fresh database and records its version.
func (db *DB) migrate() error {
	var version int
	if err := db.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > schemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, schemaVersion)
	}
	if err := db.createSchema(); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := db.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// Close closes the connection. Closing an unopened DB is a no-op.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.db.QueryRowContext(ctx, query, args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.db.ExecContext(ctx, query, args...)
}

// BeginTx starts a transaction with default options.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.db.BeginTx(ctx, nil)
}

// createSchema creates the database tables if they don't exist.
func (db *DB) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			indexed_at TEXT NOT NULL DEFAULT ''
		);

		CREATE TABLE IF NOT EXISTS sections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_id TEXT NOT NULL REFERENCES sources(id) ON DELETE CASCADE,
			parent_id INTEGER REFERENCES sections(id) ON DELETE CASCADE,
			title TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			level INTEGER NOT NULL,
			fragment TEXT NOT NULL DEFAULT '',
			section_order INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sections_source_id ON sections(source_id);
		CREATE INDEX IF NOT EXISTS idx_sections_parent_id ON sections(parent_id);

		CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding BLOB NOT NULL,
			dimensions INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_chunks_source_id ON chunks(source_id);

		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			source_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS turns (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			turn_order INTEGER NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			context TEXT NOT NULL DEFAULT '',
			chunk_hashes TEXT NOT NULL DEFAULT '[]',
			confidence REAL NOT NULL DEFAULT 0,
			sources TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			UNIQUE (conversation_id, turn_order)
		);
	`

	_, err := db.db.Exec(schema)
	return err
}
