package mcpserver

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/index"
	"github.com/starford/mindmark/internal/mapservice"
	"github.com/starford/mindmark/internal/testutil"
)

const sample = "# Root\n## Goals\n- ship\n- learn\n## Risks"

func testServer(t *testing.T) *Server {
	t.Helper()
	_, store := testutil.TestVault(t)
	db := testutil.TestDB(t)
	conv := testutil.TestConverter(t)
	syncer := index.NewSyncer(db, conv, store, testutil.Logger())
	return New(mapservice.NewService(store, db, syncer, conv, nil), "test")
}

func callTool(t *testing.T, srv *Server, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	handlers := map[string]func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error){
		"list_maps":           srv.listMaps,
		"read_map":            srv.readMap,
		"create_map":          srv.createMap,
		"search_maps":         srv.searchMaps,
		"search_nodes":        srv.searchNodes,
		"node_context":        srv.nodeContext,
		"convert":             srv.convert,
		"map_stats":           srv.mapStats,
		"validate_map":        srv.validateMap,
		"get_format_contract": srv.getFormatContract,
	}
	h, ok := handlers[name]
	if !ok {
		t.Fatalf("unknown tool: %s", name)
	}
	result, err := h(ctx, req)
	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestCreateAndReadMap(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "create_map", map[string]any{
		"path":    "plans/q1",
		"content": sample,
	})
	if text := resultText(r); text != "created: plans/q1.md (5 nodes)" {
		t.Errorf("create result = %q", text)
	}

	r = callTool(t, srv, "read_map", map[string]any{"path": "plans/q1.md"})
	if text := resultText(r); text != sample {
		t.Errorf("read result = %q", text)
	}

	r = callTool(t, srv, "read_map", map[string]any{"path": "plans/q1.md", "format": "nodetree"})
	tree, err := converter.ParseNodeTree([]byte(resultText(r)))
	if err != nil {
		t.Fatalf("parse nodetree: %v", err)
	}
	if tree.Root.Topic != "Root" || len(tree.Root.Children) != 2 {
		t.Errorf("tree root = %+v", tree.Root)
	}

	r = callTool(t, srv, "read_map", map[string]any{"path": "plans/q1.md", "format": "ast"})
	if !strings.Contains(resultText(r), `"type": "heading"`) {
		t.Errorf("ast result = %s", resultText(r))
	}
}

func TestCreateMap_Duplicate(t *testing.T) {
	srv := testServer(t)
	args := map[string]any{"path": "a.md", "content": "# A"}
	_ = callTool(t, srv, "create_map", args)
	r := callTool(t, srv, "create_map", args)
	if !r.IsError || !strings.Contains(resultText(r), "already exists") {
		t.Errorf("duplicate result = %q", resultText(r))
	}
}

func TestCreateMap_FromTree(t *testing.T) {
	srv := testServer(t)
	tree := `{"format": "node_tree", "data": {"id": "r", "topic": "Trip",
		"data": {"type": "heading", "level": 1},
		"children": [{"id": "a", "topic": "pack"}]}}`
	r := callTool(t, srv, "create_map", map[string]any{"path": "trip.md", "tree": tree})
	if r.IsError {
		t.Fatalf("create from tree: %s", resultText(r))
	}

	r = callTool(t, srv, "read_map", map[string]any{"path": "trip.md"})
	if text := resultText(r); !strings.Contains(text, "# Trip") || !strings.Contains(text, "## pack") {
		t.Errorf("stored markdown = %q", text)
	}

	r = callTool(t, srv, "create_map", map[string]any{"path": "empty.md"})
	if !r.IsError {
		t.Error("expected error without content or tree")
	}
}

func TestReadMapMissing(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "read_map", map[string]any{"path": "nope.md"})
	if !r.IsError || !strings.HasPrefix(resultText(r), "not found") {
		t.Errorf("missing map result = %q", resultText(r))
	}
}

func TestListAndSearch(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "create_map", map[string]any{"path": "a.md", "content": sample})
	_ = callTool(t, srv, "create_map", map[string]any{"path": "b.md", "content": "# Other\n- nothing"})

	r := callTool(t, srv, "list_maps", map[string]any{})
	var list struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &list); err != nil {
		t.Fatalf("list: %v", err)
	}
	if list.Total != 2 {
		t.Errorf("total = %d, want 2", list.Total)
	}

	r = callTool(t, srv, "search_maps", map[string]any{"query": "learn"})
	if !strings.Contains(resultText(r), "a.md") || strings.Contains(resultText(r), "b.md") {
		t.Errorf("search result = %s", resultText(r))
	}

	r = callTool(t, srv, "search_nodes", map[string]any{"query": "ship"})
	var hits []index.NodeHit
	if err := json.Unmarshal([]byte(resultText(r)), &hits); err != nil {
		t.Fatalf("search_nodes: %v", err)
	}
	if len(hits) != 1 || hits[0].FullPath != "Root/Goals/ship" {
		t.Errorf("hits = %+v", hits)
	}

	r = callTool(t, srv, "search_maps", map[string]any{})
	if !r.IsError {
		t.Error("expected error without query")
	}
}

func TestNodeContext(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "create_map", map[string]any{"path": "a.md", "content": sample})

	r := callTool(t, srv, "read_map", map[string]any{"path": "a.md", "format": "nodetree"})
	tree, err := converter.ParseNodeTree([]byte(resultText(r)))
	if err != nil {
		t.Fatal(err)
	}
	goals := tree.Root.Children[0]

	r = callTool(t, srv, "node_context", map[string]any{"path": "a.md", "node_id": goals.ID})
	var nc mapservice.NodeContext
	if err := json.Unmarshal([]byte(resultText(r)), &nc); err != nil {
		t.Fatalf("node_context: %v", err)
	}
	if nc.Topic != "Goals" || nc.FullPath != "Root/Goals" || len(nc.Children) != 2 {
		t.Errorf("context = %+v", nc)
	}
	if nc.Parent == nil || nc.Parent.Topic != "Root" {
		t.Errorf("parent = %+v", nc.Parent)
	}

	r = callTool(t, srv, "node_context", map[string]any{"path": "a.md", "node_id": "node_999"})
	if !r.IsError {
		t.Error("expected error for unknown node")
	}
}

func TestConvert(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "convert", map[string]any{"input": sample, "from": "markdown", "to": "nodetree"})
	if r.IsError {
		t.Fatalf("convert: %s", resultText(r))
	}
	treeJSON := resultText(r)

	r = callTool(t, srv, "convert", map[string]any{"input": treeJSON, "from": "nodetree", "to": "markdown"})
	want := "# Root\n\n## Goals\n\n- ship\n- learn\n## Risks"
	if text := resultText(r); text != want {
		t.Errorf("back to markdown = %q, want %q", text, want)
	}

	r = callTool(t, srv, "convert", map[string]any{"input": "{", "from": "ast", "to": "markdown"})
	if !r.IsError {
		t.Error("expected error for malformed ast")
	}
	r = callTool(t, srv, "convert", map[string]any{"input": sample, "from": "markdown", "to": "yaml"})
	if !r.IsError {
		t.Error("expected error for unknown format")
	}
}

func TestMapStats(t *testing.T) {
	srv := testServer(t)
	_ = callTool(t, srv, "create_map", map[string]any{"path": "a.md", "content": sample})

	for _, args := range []map[string]any{
		{"path": "a.md"},
		{"input": sample, "format": "markdown"},
	} {
		r := callTool(t, srv, "map_stats", args)
		var st converter.Stats
		if err := json.Unmarshal([]byte(resultText(r)), &st); err != nil {
			t.Fatalf("map_stats %v: %v", args, err)
		}
		if st.TotalNodes != 5 || st.Types["list"] != 2 || st.MaxDepth != 2 {
			t.Errorf("stats %v = %+v", args, st)
		}
	}

	r := callTool(t, srv, "map_stats", map[string]any{})
	if !r.IsError {
		t.Error("expected error without path or input")
	}
}

func TestValidateMap(t *testing.T) {
	srv := testServer(t)

	r := callTool(t, srv, "validate_map", map[string]any{"input": sample})
	if text := resultText(r); text != "valid" {
		t.Errorf("markdown = %q", text)
	}

	bad := `{"format": "node_tree", "data": {"id": "r", "topic": "R", "children": [{"id": "r", "topic": "dup"}]}}`
	r = callTool(t, srv, "validate_map", map[string]any{"input": bad, "format": "nodetree"})
	if !strings.Contains(resultText(r), `"valid": false`) {
		t.Errorf("duplicate ids = %s", resultText(r))
	}
}

func TestFormatContract(t *testing.T) {
	srv := testServer(t)
	r := callTool(t, srv, "get_format_contract", map[string]any{})
	if resultText(r) != MarkdownDialect {
		t.Error("contract text mismatch")
	}

	contents, err := srv.readDialectResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok || tc.URI != DialectURI || tc.Text != MarkdownDialect {
		t.Errorf("resource = %+v", contents[0])
	}
}
