//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
	"strings"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS maps_fts USING fts5(
			path UNINDEXED,
			title,
			body,
			tags,
			tokenize = 'unicode61 remove_diacritics 2'
		);
		CREATE VIRTUAL TABLE IF NOT EXISTS nodes_fts USING fts5(
			map_path UNINDEXED,
			node_id UNINDEXED,
			topic,
			notes,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(tx *sql.Tx, e Entry) error {
	path := e.Map.Path
	ftsDelete(tx, path)
	_, err := tx.Exec(`INSERT INTO maps_fts (path, title, body, tags) VALUES (?, ?, ?, ?)`,
		path, e.Map.Title, e.Body, strings.Join(e.Map.Tags, " "))
	if err != nil {
		return fmt.Errorf("index: upsert fts: %w", err)
	}
	if len(e.Nodes) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO nodes_fts (map_path, node_id, topic, notes) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare node fts: %w", err)
	}
	defer stmt.Close()
	for _, n := range e.Nodes {
		if _, err := stmt.Exec(path, n.ID, n.Topic, n.Notes); err != nil {
			return fmt.Errorf("index: upsert node fts: %w", err)
		}
	}
	return nil
}

func ftsDelete(tx *sql.Tx, path string) {
	_, _ = tx.Exec(`DELETE FROM maps_fts WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM nodes_fts WHERE map_path = ?`, path)
}

// Search performs an FTS5 search over maps and returns hits with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT path,
		       title,
		       snippet(maps_fts, 2, '<b>', '</b>', '...', 64)
		FROM maps_fts
		WHERE maps_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.Path, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SearchNodes performs an FTS5 search over node topics and notes.
func (db *DB) SearchNodes(query string, limit int) ([]NodeHit, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT n.map_path, m.title, n.node_id, n.type, n.level, n.topic, n.full_path,
		       snippet(nodes_fts, 3, '<b>', '</b>', '...', 32)
		FROM nodes_fts
		JOIN nodes n ON n.map_path = nodes_fts.map_path AND n.node_id = nodes_fts.node_id
		JOIN maps m ON m.path = n.map_path
		WHERE nodes_fts MATCH ?
		ORDER BY nodes_fts.rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search nodes: %w", err)
	}
	defer rows.Close()
	return scanNodeHits(rows)
}
