package mapservice

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/mindmark/internal/apperr"
	"github.com/starford/mindmark/internal/ast"
	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/index"
	"github.com/starford/mindmark/internal/testutil"
)

const sampleMap = "---\ntitle: Q1 Plan\nauthor: dana\ntags: [work]\n---\n# Root\nwhy we plan\n## Goals\n- ship\n- learn\n## Risks\n"

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) PublishMapEvent(kind, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, kind+":"+path)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestService(t *testing.T) (*Service, *index.DB, *recorder) {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	conv := testutil.TestConverter(t)
	rec := &recorder{}
	syncer := index.NewSyncer(db, conv, store, testutil.Logger())
	return NewService(store, db, syncer, conv, rec), db, rec
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plan", "plan.md"},
		{"plan.md", "plan.md"},
		{"/work/plan", "work/plan.md"},
		{"a/../b.md", "b.md"},
		{"../../etc/passwd", "etc/passwd.md"},
		{`dir\file`, "dir/file.md"},
	}
	for _, tt := range tests {
		got, err := NormalizePath(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	for _, bad := range []string{"", "  ", "/", ".."} {
		_, err := NormalizePath(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, bad)
	}
}

func TestCreateAndGetMap(t *testing.T) {
	ctx := context.Background()
	svc, db, rec := newTestService(t)

	created, err := svc.CreateMap(ctx, "plans/q1", []byte(sampleMap))
	require.NoError(t, err)
	assert.Equal(t, "plans/q1.md", created.Path)
	assert.Equal(t, "Q1 Plan", created.Title)
	assert.Equal(t, []string{"work"}, created.Tags)
	assert.Equal(t, 5, created.Stats.TotalNodes)
	assert.Equal(t, 3, created.Stats.Types["heading"])

	got, err := svc.GetMap(ctx, "plans/q1.md")
	require.NoError(t, err)
	assert.Equal(t, created.Checksum, got.Checksum)
	assert.Equal(t, sampleMap, got.Content)

	sum, err := db.GetMap("plans/q1.md")
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Nodes)
	assert.Equal(t, 2, sum.Lists)

	assert.Equal(t, []string{"created:plans/q1.md"}, rec.list())

	_, err = svc.CreateMap(ctx, "plans/q1.md", []byte("# dup"))
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
}

func TestGetMap_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	_, err := svc.GetMap(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.GetMapTree(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.GetMapAST(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Preview(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateMap_IfMatch(t *testing.T) {
	ctx := context.Background()
	svc, db, rec := newTestService(t)

	created, err := svc.CreateMap(ctx, "m", []byte("# A"))
	require.NoError(t, err)

	_, err = svc.UpdateMap(ctx, "m", []byte("# B"), "stale")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	updated, err := svc.UpdateMap(ctx, "m", []byte("# B\n- x"), created.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Title)
	assert.NotEqual(t, created.Checksum, updated.Checksum)

	sum, err := db.GetMap("m.md")
	require.NoError(t, err)
	assert.Equal(t, "B", sum.Title)
	assert.Equal(t, updated.Checksum, sum.Checksum)

	_, err = svc.UpdateMap(ctx, "other", []byte("# C"), "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, []string{"created:m.md", "updated:m.md"}, rec.list())
}

func TestGetMapTree_MetaFromFrontmatter(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreateMap(ctx, "q1", []byte(sampleMap))
	require.NoError(t, err)

	tree, err := svc.GetMapTree(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, "Q1 Plan", tree.Meta.Name)
	assert.Equal(t, "dana", tree.Meta.Author)
	require.NotNil(t, tree.Root)
	assert.Equal(t, "Root", tree.Root.Topic)
	assert.Equal(t, "why we plan", tree.Root.Notes)

	root, err := svc.GetMapAST(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, ast.KindHeading, root.Kind)
	assert.Len(t, root.Children, 2)
}

func TestUpdateMapFromTree_KeepsFrontmatter(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	created, err := svc.CreateMap(ctx, "q1", []byte(sampleMap))
	require.NoError(t, err)

	tree, err := svc.GetMapTree(ctx, "q1")
	require.NoError(t, err)
	tree.Root.Children[1].Topic = "Threats"

	updated, err := svc.UpdateMapFromTree(ctx, "q1", tree, created.Checksum)
	require.NoError(t, err)
	assert.Equal(t, "Q1 Plan", updated.Title)
	assert.Equal(t, []string{"work"}, updated.Tags)
	assert.Contains(t, updated.Content, "author: dana")
	assert.Contains(t, updated.Content, "## Threats")
	assert.NotContains(t, updated.Content, "## Risks")
	assert.Equal(t, created.Stats.TotalNodes, updated.Stats.TotalNodes)

	_, err = svc.UpdateMapFromTree(ctx, "q1", tree, created.Checksum)
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = svc.UpdateMapFromTree(ctx, "q1", &converter.NodeTree{}, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCreateMapFromTree(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	tree, err := converter.ParseNodeTree([]byte(`{
		"meta": {"name": "imported", "author": "eli", "version": "1.0"},
		"format": "node_array",
		"data": [
			{"id": "a", "topic": "Trip", "parentid": null, "data": {"type": "heading", "level": 1}},
			{"id": "b", "topic": "Pack", "parentid": "a"},
			{"id": "c", "topic": "Book", "parentid": "a"}
		]}`))
	require.NoError(t, err)

	created, err := svc.CreateMapFromTree(ctx, "trip", tree)
	require.NoError(t, err)
	assert.Equal(t, "Trip", created.Title)
	assert.Contains(t, created.Content, "author: eli")
	assert.Contains(t, created.Content, "# Trip")
	assert.Contains(t, created.Content, "## Pack")

	_, err = svc.CreateMapFromTree(ctx, "empty", &converter.NodeTree{Format: converter.FormatNodeTree})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
	_, err = svc.CreateMapFromTree(ctx, "nil", nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestDeleteMap(t *testing.T) {
	ctx := context.Background()
	svc, db, rec := newTestService(t)
	_, err := svc.CreateMap(ctx, "gone", []byte("# Gone"))
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMap(ctx, "gone"))
	_, err = svc.GetMap(ctx, "gone")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = db.GetMap("gone.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteMap(ctx, "gone"), apperr.ErrNotFound)
	assert.Equal(t, []string{"created:gone.md", "deleted:gone.md"}, rec.list())
}

func TestMoveMap(t *testing.T) {
	ctx := context.Background()
	svc, db, rec := newTestService(t)
	_, err := svc.CreateMap(ctx, "draft", []byte("# Draft"))
	require.NoError(t, err)
	_, err = svc.CreateMap(ctx, "taken", []byte("# Taken"))
	require.NoError(t, err)

	_, err = svc.MoveMap(ctx, "draft", "taken")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	moved, err := svc.MoveMap(ctx, "draft", "archive/final")
	require.NoError(t, err)
	assert.Equal(t, "archive/final.md", moved.Path)

	_, err = svc.GetMap(ctx, "draft")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = db.GetMap("draft.md")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	sum, err := db.GetMap("archive/final.md")
	require.NoError(t, err)
	assert.Equal(t, "Draft", sum.Title)

	assert.Equal(t, []string{
		"created:draft.md", "created:taken.md",
		"deleted:draft.md", "created:archive/final.md",
	}, rec.list())
}

func TestListAndSearch(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreateMap(ctx, "q1", []byte(sampleMap))
	require.NoError(t, err)
	_, err = svc.CreateMap(ctx, "garden", []byte("# Garden\n- tomatoes\n- basil"))
	require.NoError(t, err)

	items, total, err := svc.ListMaps(ctx, 10, 0, "work", "")
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "q1.md", items[0].Path)

	results, err := svc.Search(ctx, "tomatoes", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "garden.md", results[0].Path)

	hits, err := svc.SearchNodes(ctx, "learn", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "q1.md", hits[0].MapPath)
	assert.Equal(t, "Root/Goals/learn", hits[0].FullPath)
}

func TestNodeContext(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreateMap(ctx, "q1", []byte(sampleMap))
	require.NoError(t, err)

	tree, err := svc.GetMapTree(ctx, "q1")
	require.NoError(t, err)
	goals := tree.Root.Children[0]
	require.Equal(t, "Goals", goals.Topic)

	nc, err := svc.NodeContext(ctx, "q1", goals.ID)
	require.NoError(t, err)
	assert.Equal(t, "q1.md", nc.MapPath)
	assert.Equal(t, "Q1 Plan", nc.MapTitle)
	assert.Equal(t, "heading", nc.Type)
	assert.Equal(t, 2, nc.Level)
	assert.Equal(t, "Root/Goals", nc.FullPath)
	assert.Equal(t, []string{"Risks"}, nc.SiblingNodes)
	require.NotNil(t, nc.Parent)
	assert.Equal(t, "Root", nc.Parent.Topic)
	require.Len(t, nc.Children, 2)
	assert.Equal(t, "ship", nc.Children[0].Topic)
	assert.Contains(t, nc.Markdown, "## Goals")
	assert.Contains(t, nc.Markdown, "- learn")
	assert.NotContains(t, nc.Markdown, "Risks")

	root, err := svc.NodeContext(ctx, "q1", tree.Root.ID)
	require.NoError(t, err)
	assert.Nil(t, root.Parent)
	assert.Equal(t, "why we plan", root.Notes)

	_, err = svc.NodeContext(ctx, "q1", "node_999")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.NodeContext(ctx, "q1", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestPreview(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)
	_, err := svc.CreateMap(ctx, "q1", []byte(sampleMap))
	require.NoError(t, err)

	html, err := svc.Preview(ctx, "q1")
	require.NoError(t, err)
	assert.Contains(t, html, "<h1")
	assert.Contains(t, html, "<li>ship</li>")
	assert.NotContains(t, html, "title: Q1 Plan")
}
