package store

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "github.com/duckdb/duckdb-go/v2"
)

const memoryPath = ":memory:"

type dbOptions struct {
	readOnly bool
}

type DBOption func(*dbOptions)

// ReadOnly opens the database file without write access, so several query
// processes can share it.
func ReadOnly() DBOption {
	return func(o *dbOptions) {
		o.readOnly = true
	}
}

// NewDB opens the DuckDB content store at path.
// Use ":memory:" for an in-memory database (useful for testing).
func NewDB(path string, opts ...DBOption) (*sql.DB, error) {
	var o dbOptions
	for _, opt := range opts {
		opt(&o)
	}

	dsn := path
	if o.readOnly && path != memoryPath {
		dsn += "?access_mode=read_only"
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, err
	}

	// DuckDB is single-writer; a single connection prevents idle pool
	// connections from blocking WAL checkpointing.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening content store %s: %w", path, err)
	}

	// Keep extensions next to the database instead of ~/.duckdb, which may be read-only.
	if path != memoryPath {
		extDir := filepath.Dir(path)
		if _, err := conn.Exec(fmt.Sprintf("SET extension_directory = '%s'", extDir)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("setting extension directory: %w", err)
		}
	}

	return conn, nil
}
