// Package index provides a SQLite index of vault maps and their nodes, with
// optional FTS5 full-text search.
package index

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS maps (
	path          TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	checksum      TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '[]',
	body          TEXT NOT NULL DEFAULT '',
	node_count    INTEGER NOT NULL DEFAULT 0,
	heading_count INTEGER NOT NULL DEFAULT 0,
	list_count    INTEGER NOT NULL DEFAULT 0,
	max_depth     INTEGER NOT NULL DEFAULT 0,
	updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS nodes (
	map_path  TEXT NOT NULL REFERENCES maps(path) ON DELETE CASCADE,
	node_id   TEXT NOT NULL,
	parent_id TEXT,
	position  INTEGER NOT NULL,
	type      TEXT NOT NULL DEFAULT '',
	level     INTEGER NOT NULL DEFAULT 0,
	topic     TEXT NOT NULL DEFAULT '',
	full_path TEXT NOT NULL DEFAULT '',
	notes     TEXT NOT NULL DEFAULT '',
	depth     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (map_path, node_id)
);

CREATE INDEX IF NOT EXISTS idx_nodes_topic ON nodes(topic);
CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}
