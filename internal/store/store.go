// Package store is the persistent layer shared by all bot instances:
// bot-instance records, per-instance users, literals and callback
// tokens, backed by SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database. It is safe for concurrent use; all
// writes are single-statement upserts.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a custom logger for the Store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open opens (creating if needed) the database at path and applies
// migrations.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{
		db:     db,
		logger: slog.Default().WithGroup("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Instance returns a handle scoped to one bot instance's users,
// literals and callback tokens.
func (s *Store) Instance(name string) *Instance {
	return &Instance{s: s, name: name}
}

// Instance is a Store view scoped to a single bot instance. Records of
// different instances never mix.
type Instance struct {
	s    *Store
	name string
}

// Name returns the owning bot instance name.
func (i *Instance) Name() string {
	return i.name
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS bots (
  name TEXT PRIMARY KEY,
  token TEXT NOT NULL,
  script TEXT NOT NULL,
  restart INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS users (
  instance TEXT NOT NULL,
  id INTEGER NOT NULL,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  username TEXT NOT NULL DEFAULT '',
  language_code TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  metas TEXT NOT NULL DEFAULT '[]',
  PRIMARY KEY (instance, id)
);`,
		`
CREATE TABLE IF NOT EXISTS literals (
  instance TEXT NOT NULL,
  key TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (instance, key)
);`,
		`
CREATE TABLE IF NOT EXISTS literal_variants (
  instance TEXT NOT NULL,
  key TEXT NOT NULL,
  variant TEXT NOT NULL,
  value TEXT NOT NULL,
  PRIMARY KEY (instance, key, variant)
);`,
		`
CREATE TABLE IF NOT EXISTS media (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  instance TEXT NOT NULL,
  literal TEXT NOT NULL,
  kind TEXT NOT NULL,
  file_id TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS callbacks (
  instance TEXT NOT NULL,
  token TEXT NOT NULL,
  literal TEXT NOT NULL,
  created_at TEXT NOT NULL,
  PRIMARY KEY (instance, token)
);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
