// Package sqlitestore opens embedded WAL-mode SQLite databases shared by the
// evidence, judge, and reputation stores.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Config controls how a database file is opened and tuned.
type Config struct {
	Path            string
	MaxConnections  int
	BusyTimeout     time.Duration
	CacheSizeKB     int
	JournalMode     string
	SynchronousMode string
	ForeignKeys     bool
}

// DefaultConfig returns the WAL configuration used by every service store.
func DefaultConfig(path string) *Config {
	return &Config{
		Path:            path,
		MaxConnections:  8,
		BusyTimeout:     5 * time.Second,
		CacheSizeKB:     8000,
		JournalMode:     "WAL",
		SynchronousMode: "NORMAL",
		ForeignKeys:     true,
	}
}

// Open opens (creating parent directories and the file if needed) a SQLite
// database under the given config and applies the WAL pragmas.
func Open(cfg *Config) (*sql.DB, error) {
	if cfg == nil {
		return nil, fmt.Errorf("sqlitestore: nil config")
	}
	if cfg.Path != ":memory:" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlitestore: create dir %s: %w", dir, err)
			}
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %s: %w", cfg.Path, err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxLifetime(time.Hour)

	if err := configure(db, cfg); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func configure(db *sql.DB, cfg *Config) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", int(cfg.BusyTimeout.Milliseconds())),
		fmt.Sprintf("PRAGMA cache_size = -%d", cfg.CacheSizeKB),
		fmt.Sprintf("PRAGMA journal_mode = %s", cfg.JournalMode),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.SynchronousMode),
	}
	if cfg.ForeignKeys {
		pragmas = append(pragmas, "PRAGMA foreign_keys = ON")
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("sqlitestore: pragma %q: %w", p, err)
		}
	}
	return nil
}

// ApplySchema runs an idempotent `CREATE TABLE IF NOT EXISTS` schema string
// inside a single transaction.
func ApplySchema(db *sql.DB, schema string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("sqlitestore: begin schema tx: %w", err)
	}
	if _, err := tx.Exec(schema); err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlitestore: apply schema: %w", err)
	}
	return tx.Commit()
}
