package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

type migration struct {
	version     int
	description string
	statements  []string
}

// Quick columns of optimized attributes are not part of the schema here; they
// are added when the attribute type is registered. contentmap carries no
// index because DuckDB cannot add columns to indexed tables.
var migrations = []migration{
	{
		version:     1,
		description: "attribute types",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS contentattributetype (
				name VARCHAR NOT NULL,
				objecttype INTEGER NOT NULL DEFAULT 0,
				attributetype INTEGER NOT NULL,
				optimized BOOLEAN NOT NULL DEFAULT FALSE,
				quickname VARCHAR,
				multivalue BOOLEAN NOT NULL DEFAULT FALSE,
				linkedobjecttype INTEGER NOT NULL DEFAULT 0,
				foreignlinkattribute VARCHAR,
				PRIMARY KEY (name, objecttype)
			)`,
		},
	},
	{
		version:     2,
		description: "content map and attributes",
		statements: []string{
			`CREATE SEQUENCE IF NOT EXISTS contentmap_id_seq START 1`,
			`CREATE TABLE IF NOT EXISTS contentmap (
				id INTEGER NOT NULL DEFAULT nextval('contentmap_id_seq'),
				channel_id INTEGER NOT NULL,
				channelset_id INTEGER NOT NULL DEFAULT 0,
				obj_id INTEGER NOT NULL,
				obj_type INTEGER NOT NULL,
				contentid VARCHAR NOT NULL,
				updatetimestamp BIGINT NOT NULL DEFAULT 0,
				mother_obj_id INTEGER NOT NULL DEFAULT 0,
				mother_obj_type INTEGER NOT NULL DEFAULT 0
			)`,
			`CREATE SEQUENCE IF NOT EXISTS contentattribute_id_seq START 1`,
			`CREATE TABLE IF NOT EXISTS contentattribute (
				id INTEGER PRIMARY KEY DEFAULT nextval('contentattribute_id_seq'),
				map_id INTEGER NOT NULL,
				name VARCHAR NOT NULL,
				sortorder INTEGER NOT NULL DEFAULT 0,
				value_text VARCHAR,
				value_int INTEGER,
				value_clob TEXT,
				value_blob BLOB,
				value_long BIGINT,
				value_double DOUBLE,
				value_date TIMESTAMP
			)`,
			`CREATE INDEX IF NOT EXISTS contentattribute_map_idx ON contentattribute (map_id, name)`,
		},
	},
	{
		version:     3,
		description: "version tables",
		statements: []string{
			`CREATE TABLE IF NOT EXISTS contentmap_nodeversion (
				id INTEGER NOT NULL,
				channel_id INTEGER NOT NULL,
				channelset_id INTEGER NOT NULL DEFAULT 0,
				obj_id INTEGER NOT NULL,
				obj_type INTEGER NOT NULL,
				contentid VARCHAR NOT NULL,
				updatetimestamp BIGINT NOT NULL DEFAULT 0,
				mother_obj_id INTEGER NOT NULL DEFAULT 0,
				mother_obj_type INTEGER NOT NULL DEFAULT 0,
				nodeversiontimestamp BIGINT NOT NULL,
				nodeversionremoved BIGINT NOT NULL DEFAULT 0
			)`,
			`CREATE TABLE IF NOT EXISTS contentattribute_nodeversion (
				id INTEGER NOT NULL,
				map_id INTEGER NOT NULL,
				name VARCHAR NOT NULL,
				sortorder INTEGER NOT NULL DEFAULT 0,
				value_text VARCHAR,
				value_int INTEGER,
				value_clob TEXT,
				value_blob BLOB,
				value_long BIGINT,
				value_double DOUBLE,
				value_date TIMESTAMP,
				nodeversiontimestamp BIGINT NOT NULL,
				nodeversionremoved BIGINT NOT NULL DEFAULT 0
			)`,
		},
	},
}

// Run applies every migration newer than the recorded schema version. Each
// migration runs in its own transaction.
func Run(ctx context.Context, db *sql.DB) error {
	log := zap.S().Named("migrations")

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description VARCHAR NOT NULL,
		applied_at TIMESTAMP NOT NULL DEFAULT current_timestamp
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.description, err)
		}
		log.Infow("applied migration", "version", m.version, "description", m.description)
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range m.statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version, description) VALUES (?, ?)`, m.version, m.description); err != nil {
		return err
	}
	return tx.Commit()
}
