// Package db persists runtime settings in the state directory so they
// survive a daemon restart.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// FileName is the database file inside the state directory.
const FileName = "state.db"

// DB is the settings database.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates state.db in stateDir, which defaults to
// $XDG_STATE_HOME/ht32-panel. The file is opened in WAL mode.
func Open(stateDir string) (*DB, error) {
	dir, err := ResolveStateDir(stateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, FileName)

	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Every writer goes through the write-back goroutine.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// ResolveStateDir expands a leading ~ and fills in the default location.
func ResolveStateDir(dir string) (string, error) {
	if dir == "" {
		base := os.Getenv("XDG_STATE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("locate state directory: %w", err)
			}
			base = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(base, "ht32-panel"), nil
	}
	if rest, ok := strings.CutPrefix(dir, "~"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", dir, err)
		}
		return filepath.Join(home, rest), nil
	}
	return dir, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Tx runs fn in a transaction, committing only if fn succeeds.
func (db *DB) Tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		return errors.Join(err, tx.Rollback())
	}
	return tx.Commit()
}
