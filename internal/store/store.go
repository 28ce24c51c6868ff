// Package store persists feature matrices in DuckDB so that extraction runs
// can be listed, reloaded and queried with SQL.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/marcboeker/go-duckdb"
)

// Store manages a DuckDB connection holding extraction runs.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database.
func Open(path string) (*Store, error) {
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// ensureSchema creates tables if they don't exist.
func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id VARCHAR PRIMARY KEY,
			created_at TIMESTAMP,
			decay DOUBLE,
			reference VARCHAR,
			source_path VARCHAR,
			source_size BIGINT,
			source_modtime TIMESTAMP,
			n_regions INTEGER,
			n_inputs INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS run_regions (
			run_id VARCHAR,
			row_idx INTEGER,
			label VARCHAR,
			PRIMARY KEY (run_id, row_idx)
		)`,
		`CREATE TABLE IF NOT EXISTS run_inputs (
			run_id VARCHAR,
			col_idx INTEGER,
			label VARCHAR,
			PRIMARY KEY (run_id, col_idx)
		)`,
		`CREATE TABLE IF NOT EXISTS features (
			run_id VARCHAR,
			row_idx INTEGER,
			col_idx INTEGER,
			score DOUBLE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
