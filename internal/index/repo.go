package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/starford/mindmark/internal/apperr"
	"github.com/starford/mindmark/internal/models"
)

// SearchResult is one map-level search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// NodeHit is one node-level search hit.
type NodeHit struct {
	MapPath  string `json:"map_path"`
	MapTitle string `json:"map_title"`
	NodeID   string `json:"node_id"`
	Type     string `json:"type"`
	Level    int    `json:"level,omitempty"`
	Topic    string `json:"topic"`
	FullPath string `json:"full_path"`
	Snippet  string `json:"snippet,omitempty"`
}

// UpsertMap replaces a map row, its nodes and its FTS entries in one
// transaction.
func (db *DB) UpsertMap(e Entry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	m := e.Map
	tagsJSON, _ := json.Marshal(nonNil(m.Tags))
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO maps (path, title, checksum, tags, body, node_count, heading_count, list_count, max_depth, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title         = excluded.title,
			checksum      = excluded.checksum,
			tags          = excluded.tags,
			body          = excluded.body,
			node_count    = excluded.node_count,
			heading_count = excluded.heading_count,
			list_count    = excluded.list_count,
			max_depth     = excluded.max_depth,
			updated_at    = excluded.updated_at
	`, m.Path, m.Title, m.Checksum, string(tagsJSON), e.Body, m.Nodes, m.Headings, m.Lists, m.MaxDepth, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert map: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM nodes WHERE map_path = ?`, m.Path); err != nil {
		return fmt.Errorf("index: clear nodes: %w", err)
	}
	if len(e.Nodes) > 0 {
		stmt, err := tx.Prepare(`
			INSERT OR IGNORE INTO nodes (map_path, node_id, parent_id, position, type, level, topic, full_path, notes, depth)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare node insert: %w", err)
		}
		defer stmt.Close()
		for _, n := range e.Nodes {
			if _, err := stmt.Exec(m.Path, n.ID, nullable(n.ParentID), n.Position, n.Type, n.Level, n.Topic, n.FullPath, n.Notes, n.Depth); err != nil {
				return fmt.Errorf("index: insert node: %w", err)
			}
		}
	}

	// no-op without the sqlite_fts5 tag
	if err := ftsUpsert(tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteMap removes a map with its nodes and FTS entries.
func (db *DB) DeleteMap(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	_, _ = tx.Exec(`DELETE FROM nodes WHERE map_path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM maps WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a map, or "" if not indexed.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM maps WHERE path = ?`, path).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

const summaryColumns = `path, title, checksum, tags, node_count, heading_count, list_count, max_depth, updated_at`

func scanSummary(sc interface{ Scan(...any) error }) (models.MapSummary, error) {
	var (
		m    models.MapSummary
		tags string
	)
	if err := sc.Scan(&m.Path, &m.Title, &m.Checksum, &tags, &m.Nodes, &m.Headings, &m.Lists, &m.MaxDepth, &m.UpdatedAt); err != nil {
		return m, err
	}
	if err := json.Unmarshal([]byte(tags), &m.Tags); err != nil || m.Tags == nil {
		m.Tags = []string{}
	}
	return m, nil
}

// GetMap returns the indexed summary of one map.
func (db *DB) GetMap(path string) (*models.MapSummary, error) {
	row := db.conn.QueryRow(`SELECT `+summaryColumns+` FROM maps WHERE path = ?`, path)
	m, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get map: %w", err)
	}
	return &m, nil
}

// ListMaps returns a page of map summaries and the total matching count.
// sort is one of "title", "nodes" or "updated" (default, newest first).
func (db *DB) ListMaps(limit, offset int, tag, sort string) ([]models.MapSummary, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where := ""
	var args []any
	if tag != "" {
		where = ` WHERE tags LIKE ?`
		args = append(args, `%"`+strings.ReplaceAll(tag, `"`, ``)+`"%`)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM maps`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count maps: %w", err)
	}

	order := "updated_at DESC"
	switch sort {
	case "title":
		order = "title COLLATE NOCASE ASC"
	case "nodes":
		order = "node_count DESC"
	}
	rows, err := db.conn.Query(`SELECT `+summaryColumns+` FROM maps`+where+
		` ORDER BY `+order+`, path LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list maps: %w", err)
	}
	defer rows.Close()

	var out []models.MapSummary
	for rows.Next() {
		m, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, m)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path -> checksum for every indexed map.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM maps`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func scanNodeHits(rows *sql.Rows) ([]NodeHit, error) {
	var out []NodeHit
	for rows.Next() {
		var h NodeHit
		if err := rows.Scan(&h.MapPath, &h.MapTitle, &h.NodeID, &h.Type, &h.Level, &h.Topic, &h.FullPath, &h.Snippet); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
