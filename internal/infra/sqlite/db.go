// Package sqlite provides SQLite-based persistent storage for the Chaos
// Theorist backend: the system catalog, leverage analyses, simulation runs,
// intervention proposals and user preferences.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// Connection pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

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
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Systems are stored as whole JSON documents; position keeps catalog order.
		`CREATE TABLE IF NOT EXISTS systems (
			id            TEXT PRIMARY KEY,
			position      INTEGER NOT NULL,
			name          TEXT NOT NULL,
			status        TEXT NOT NULL,
			content_hash  TEXT NOT NULL,
			last_modified INTEGER NOT NULL,
			doc           TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_systems_position ON systems(position)`,

		`CREATE TABLE IF NOT EXISTS leverage_points (
			system_id TEXT NOT NULL REFERENCES systems(id),
			id        TEXT NOT NULL,
			position  INTEGER NOT NULL,
			doc       TEXT NOT NULL,
			PRIMARY KEY (system_id, id)
		)`,

		`CREATE TABLE IF NOT EXISTS simulation_runs (
			id         TEXT PRIMARY KEY,
			system_id  TEXT NOT NULL,
			status     TEXT NOT NULL,
			start_time INTEGER NOT NULL,
			end_time   INTEGER,
			doc        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_system ON simulation_runs(system_id, start_time)`,

		`CREATE TABLE IF NOT EXISTS intervention_proposals (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			leverage_point_id TEXT NOT NULL,
			system_id         TEXT NOT NULL,
			proposed_by       TEXT NOT NULL,
			proposed_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_system ON intervention_proposals(system_id)`,

		`CREATE TABLE IF NOT EXISTS preferences (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Meta ───────────────────────────────────────────────────────────────────

// SetMeta stores a key-value pair in meta.
func (d *DB) SetMeta(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// GetMeta retrieves a value from meta. A missing key yields "".
func (d *DB) GetMeta(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// ─── Preferences ────────────────────────────────────────────────────────────

// SavePreference stores one encoded preference value.
func (d *DB) SavePreference(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value,
	)
	return err
}

// LoadPreferences returns every stored preference.
func (d *DB) LoadPreferences(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key, value FROM preferences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableUnixMilli(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}
