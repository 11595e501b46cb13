// Package sqlitestore is the reference Metadata Store + Data Store
// implementation: a single pure-Go SQLite database (no cgo) satisfying
// every narrow store interface the core engine packages define -
// historic.Store, pipeline.TargetStore, allocator.StaticSource,
// allocator.BucketSource, scheduler.Store and scheduler.TokenStore.
//
// It favours correctness and straightforward querying over raw scale:
// target rows carry their full JSON encoding alongside a few indexed
// columns used for ordering, and bucket/weight evaluation walks decoded
// targets in Go rather than pushing arithmetic into SQL, since SQLite
// has no equivalent of MongoDB's $bucket aggregation stage to delegate
// to directly.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const driverName = "sqlite"

// Config configures where the SQLite database lives.
type Config struct {
	// Path is a local filesystem path to the database file. ":memory:"
	// opens a private in-memory database, primarily for tests.
	Path string
}

// Store is the concrete Metadata Store + Data Store, backed by one
// SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the SQLite-backed store and ensures
// its schema is current.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlitestore: path is required")
	}

	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}

	if path != ":memory:" {
		// A single connection with WAL avoids SQLITE_BUSY under the
		// Dispatcher's concurrent worker pool, matching indexstore's
		// local-file configuration.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		pragmaCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := db.ExecContext(pragmaCtx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlitestore: enable WAL: %w", err)
		}
		if _, err := db.ExecContext(pragmaCtx, "PRAGMA busy_timeout=5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("sqlitestore: set busy_timeout: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS targets (
			id TEXT PRIMARY KEY,
			kwargs_key TEXT NOT NULL UNIQUE,
			data TEXT NOT NULL,
			discovered_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS historic_documents (
			key TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS execution_tokens (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS series (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			data TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS crawls (
			id TEXT PRIMARY KEY,
			series_id TEXT NOT NULL,
			data TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS crawl_counters (
			crawl_id TEXT PRIMARY KEY,
			submitted INTEGER NOT NULL DEFAULT 0,
			targets_finished INTEGER NOT NULL DEFAULT 0,
			targets_failed INTEGER NOT NULL DEFAULT 0,
			targets_retried INTEGER NOT NULL DEFAULT 0,
			expectations TEXT NOT NULL DEFAULT '{}'
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlitestore: init schema: %w", err)
		}
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(filepath.Clean(path))
	if dir == "." || dir == string(filepath.Separator) {
		return nil
	}
	// #nosec G301 -- data directories use 0755 for multi-user access compatibility
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("sqlitestore: create store directory: %w", err)
	}
	return nil
}
