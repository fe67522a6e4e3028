// Package sqlite provides the embedded SQLite attempt store for mathquest.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sqlx.DB
}

// Open creates or opens the SQLite database at dir/mathquest.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return OpenFile(filepath.Join(dir, "mathquest.db"))
}

// OpenFile opens the database at an explicit path.
func OpenFile(path string) (*DB, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db.DB); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		// Exercise catalog
		`CREATE TABLE IF NOT EXISTS exercise_types (
			name       TEXT PRIMARY KEY,
			active     BOOLEAN NOT NULL DEFAULT 1,
			updated_at INTEGER NOT NULL
		)`,

		// Attempts; created_at is unix milliseconds
		`CREATE TABLE IF NOT EXISTS attempts (
			id            TEXT PRIMARY KEY,
			user_id       TEXT NOT NULL,
			exercise_type TEXT NOT NULL,
			correct       BOOLEAN NOT NULL,
			duration_ms   INTEGER NOT NULL DEFAULT 0,
			created_at    INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_created ON attempts(user_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_user_type ON attempts(user_id, exercise_type, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_created ON attempts(created_at)`,

		// Badge definitions; requirements is the JSON schema object
		`CREATE TABLE IF NOT EXISTS badges (
			id           TEXT PRIMARY KEY,
			name         TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			requirements TEXT NOT NULL,
			updated_at   INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
