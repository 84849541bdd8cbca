// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists the genome index cache and the journal of pipeline
// calls in a SQLite database at <db_dir>/bismark.db.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/bismark-engine/pkg/types"
)

const dbFile = "bismark.db"

// Store manages the SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// NewStore opens or creates bismark.db under cfg.DBDir and creates the
// schema if it does not exist.
func NewStore(cfg types.EngineConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.DBDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dbPath := filepath.Join(cfg.DBDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: cfg.DBDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and its exports.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS index_cache (
			assembly_ref TEXT PRIMARY KEY,
			output_dir TEXT NOT NULL,
			workspace TEXT,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS calls (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			method TEXT NOT NULL,
			params TEXT NOT NULL,
			result TEXT,
			error TEXT,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calls_method ON calls(method)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// IndexEntry is one prepared genome index.
type IndexEntry struct {
	AssemblyRef string    `json:"assembly_ref" yaml:"assembly_ref"`
	OutputDir   string    `json:"output_dir" yaml:"output_dir"`
	Workspace   string    `json:"workspace,omitempty" yaml:"workspace,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// LookupIndex returns the cached index for assemblyRef. The boolean is
// false when no entry exists.
func (s *Store) LookupIndex(ctx context.Context, assemblyRef string) (IndexEntry, bool, error) {
	var (
		e         IndexEntry
		workspace sql.NullString
		created   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT assembly_ref, output_dir, workspace, created_at FROM index_cache WHERE assembly_ref = ?`,
		assemblyRef,
	).Scan(&e.AssemblyRef, &e.OutputDir, &workspace, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return IndexEntry{}, false, nil
	}
	if err != nil {
		return IndexEntry{}, false, fmt.Errorf("looking up index for %s: %w", assemblyRef, err)
	}
	e.Workspace = workspace.String
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return e, true, nil
}

// SaveIndex inserts or replaces the cache entry for e.AssemblyRef.
func (s *Store) SaveIndex(ctx context.Context, e IndexEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO index_cache (assembly_ref, output_dir, workspace, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(assembly_ref) DO UPDATE SET
			output_dir=excluded.output_dir, workspace=excluded.workspace, created_at=excluded.created_at`,
		e.AssemblyRef, e.OutputDir, e.Workspace, e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("saving index for %s: %w", e.AssemblyRef, err)
	}
	return nil
}

// DeleteIndex drops the cache entry for assemblyRef, if any.
func (s *Store) DeleteIndex(ctx context.Context, assemblyRef string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM index_cache WHERE assembly_ref = ?`, assemblyRef); err != nil {
		return fmt.Errorf("deleting index for %s: %w", assemblyRef, err)
	}
	return nil
}
