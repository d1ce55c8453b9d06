package db

import (
	"context"
	"database/sql"
	"fmt"
)

// migration moves the schema from version-1 to version.
type migration struct {
	version int
	name    string
	sql     string
}

// migrations are applied in order, each in its own transaction.
var migrations = []migration{
	{
		version: 1,
		name:    "settings",
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
    version     INTEGER PRIMARY KEY,
    applied_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS settings (
    key         TEXT PRIMARY KEY,
    value       TEXT NOT NULL,
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
);`,
	},
	{
		version: 2,
		name:    "connection events",
		sql: `
CREATE TABLE IF NOT EXISTS connection_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    device      TEXT NOT NULL,
    connected   INTEGER NOT NULL,
    version     INTEGER NOT NULL,
    created_at  TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_connection_events_device ON connection_events(device, id);`,
	},
}

// LatestVersion is the schema version Migrate brings a database to.
func LatestVersion() int {
	return migrations[len(migrations)-1].version
}

// Migrate applies every migration newer than the stored schema version.
func (db *DB) Migrate(ctx context.Context) error {
	current, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		err := db.Tx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// SchemaVersion returns the stored schema version, or 0 for a new file.
func (db *DB) SchemaVersion(ctx context.Context) (int, error) {
	var tables int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'schema_version'`,
	).Scan(&tables)
	if err != nil || tables == 0 {
		return 0, err
	}

	var version int
	err = db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&version)
	return version, err
}
