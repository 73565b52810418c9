//go:build sqlite_fts5

package index

import (
	"testing"
)

func TestFTS5_TablesExist(t *testing.T) {
	db := testDB(t)
	var count int
	for _, table := range []string{"maps_fts", "nodes_fts"} {
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestFTS5_SearchWithSnippet(t *testing.T) {
	db := testDB(t)
	if err := db.UpsertMap(mustEntry(t, "fts.md", "# FTS Map\nMindmark provides powerful full-text search capabilities.")); err != nil {
		t.Fatalf("UpsertMap: %v", err)
	}
	results, err := db.Search("powerful", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Path != "fts.md" {
		t.Fatalf("results = %+v", results)
	}
	if results[0].Snippet == "" {
		t.Error("expected non-empty snippet")
	}
}

func TestFTS5_SearchNodesMatchesNotes(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertMap(mustEntry(t, "n.md", "# Trip\n- packing\n  remember the passport"))
	hits, err := db.SearchNodes("passport", 10)
	if err != nil {
		t.Fatalf("SearchNodes: %v", err)
	}
	if len(hits) != 1 || hits[0].Topic != "packing" || hits[0].Snippet == "" {
		t.Errorf("hits = %+v", hits)
	}
}

func TestFTS5_DeleteRemovesFromFTS(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertMap(mustEntry(t, "gone.md", "# Gone\nvanishing content"))
	_ = db.DeleteMap("gone.md")

	results, _ := db.Search("vanishing", 10)
	if len(results) != 0 {
		t.Errorf("deleted map still in FTS index: %+v", results)
	}
}

func TestFTS5_UpsertReplacesContent(t *testing.T) {
	db := testDB(t)
	_ = db.UpsertMap(mustEntry(t, "evo.md", "# Old\noriginal text"))
	_ = db.UpsertMap(mustEntry(t, "evo.md", "# New\nreplacement text"))

	results, _ := db.Search("original", 10)
	if len(results) != 0 {
		t.Error("old FTS content should be gone")
	}
	results, _ = db.Search("replacement", 10)
	if len(results) != 1 || results[0].Title != "New" {
		t.Errorf("FTS not updated: %+v", results)
	}
}
