// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes mind maps and conversions to LLM assistants over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/mindmark/internal/apperr"
	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/mapservice"
	"github.com/starford/mindmark/internal/metrics"
)

// Server wraps the MCP server with mindmark tools.
type Server struct {
	mcp *server.MCPServer
	svc *mapservice.Service
}

var formats = []string{string(converter.FormatMarkdown), string(converter.FormatAST), string(converter.FormatTree)}

// New creates a new MCP server with all tools registered.
func New(svc *mapservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"mindmark",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_maps",
		mcp.WithDescription("List maps in the vault, newest first."),
		mcp.WithString("tag", mcp.Description("Only maps carrying this tag")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of maps (default 50)")),
	), s.listMaps)

	s.mcp.AddTool(mcp.NewTool("read_map",
		mcp.WithDescription("Read a map as Markdown, as an ast tree or as a NodeTree. "+
			"The nodetree form carries the node ids accepted by node_context."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the map (e.g. plans/q1.md)")),
		mcp.WithString("format", mcp.Description("Representation to return"), mcp.Enum(formats...)),
	), s.readMap)

	s.mcp.AddTool(mcp.NewTool("create_map",
		mcp.WithDescription("Create a new map from Markdown or from a NodeTree JSON document. "+
			"Markdown MUST follow the mindmark map format: read it first via "+
			"get_format_contract or the "+DialectURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the new map")),
		mcp.WithString("content", mcp.Description("Markdown content")),
		mcp.WithString("tree", mcp.Description("NodeTree JSON, used when content is empty")),
	), s.createMap)

	s.mcp.AddTool(mcp.NewTool("search_maps",
		mcp.WithDescription("Full-text search through map titles, tags and content."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchMaps)

	s.mcp.AddTool(mcp.NewTool("search_nodes",
		mcp.WithDescription("Search individual nodes (topics and notes) across all maps. "+
			"Results carry each node's breadcrumb path."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 20)")),
	), s.searchNodes)

	s.mcp.AddTool(mcp.NewTool("node_context",
		mcp.WithDescription("Breadcrumb path, parent, siblings, children, notes and subtree Markdown of one node."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path of the map")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("Node id from read_map with format nodetree")),
	), s.nodeContext)

	s.mcp.AddTool(mcp.NewTool("convert",
		mcp.WithDescription("Convert a document between markdown, ast and nodetree. "+
			"ast and nodetree documents are passed as JSON text."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Document to convert")),
		mcp.WithString("from", mcp.Required(), mcp.Description("Input format"), mcp.Enum(formats...)),
		mcp.WithString("to", mcp.Required(), mcp.Description("Output format"), mcp.Enum(formats...)),
	), s.convert)

	s.mcp.AddTool(mcp.NewTool("map_stats",
		mcp.WithDescription("Node counts by type and maximum depth, for a stored map or an inline document."),
		mcp.WithString("path", mcp.Description("Relative path of a stored map")),
		mcp.WithString("input", mcp.Description("Inline document, used when path is empty")),
		mcp.WithString("format", mcp.Description("Format of input"), mcp.Enum(formats...)),
	), s.mapStats)

	s.mcp.AddTool(mcp.NewTool("validate_map",
		mcp.WithDescription("Check the structure of a document and report problems per node."),
		mcp.WithString("input", mcp.Required(), mcp.Description("Document to validate")),
		mcp.WithString("format", mcp.Description("Format of input"), mcp.Enum(formats...)),
	), s.validateMap)

	s.mcp.AddTool(mcp.NewTool("get_format_contract",
		mcp.WithDescription("Returns the mindmark map format. "+
			"Call this before creating or updating maps to ensure correct structure."),
	), s.getFormatContract)

	s.mcp.AddResource(
		mcp.NewResource(DialectURI, "Map Format",
			mcp.WithResourceDescription("Markdown dialect and NodeTree JSON used by mindmark maps."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDialectResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("not found: " + err.Error())
	}
	return mcp.NewToolResultError(err.Error())
}

// document decodes a text argument in the given format.
func document(input string, format converter.Format) (any, error) {
	if format == converter.FormatMarkdown {
		return input, nil
	}
	return converter.Decode([]byte(input), format)
}

func (s *Server) listMaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, total, err := s.svc.ListMaps(ctx, req.GetInt("limit", 0), 0, req.GetString("tag", ""), "")
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(map[string]any{"maps": items, "total": total})
}

func (s *Server) readMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := converter.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return errorResult(err), nil
	}

	switch format {
	case converter.FormatAST:
		node, err := s.svc.GetMapAST(ctx, path)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(node)
	case converter.FormatTree:
		tree, err := s.svc.GetMapTree(ctx, path)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(tree)
	}
	m, err := s.svc.GetMap(ctx, path)
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(m.Content), nil
}

func (s *Server) createMap(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content := req.GetString("content", "")
	treeJSON := req.GetString("tree", "")

	var m *mapservice.MapDetail
	switch {
	case content != "":
		m, err = s.svc.CreateMap(ctx, path, []byte(content))
	case treeJSON != "":
		tree, perr := converter.ParseNodeTree([]byte(treeJSON))
		if perr != nil {
			return errorResult(perr), nil
		}
		m, err = s.svc.CreateMapFromTree(ctx, path, tree)
	default:
		return mcp.NewToolResultError("content or tree is required"), nil
	}
	if errors.Is(err, apperr.ErrAlreadyExists) {
		return mcp.NewToolResultError(fmt.Sprintf("map already exists: %s", path)), nil
	}
	if err != nil {
		return errorResult(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %s (%d nodes)", m.Path, m.Stats.TotalNodes)), nil
}

func (s *Server) searchMaps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.svc.Search(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(results)
}

func (s *Server) searchNodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.svc.SearchNodes(ctx, query, req.GetInt("limit", 20))
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(hits)
}

func (s *Server) nodeContext(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	nc, err := s.svc.NodeContext(ctx, path, id)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(nc)
}

func (s *Server) convert(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := converter.ParseFormat(req.GetString("from", ""))
	if err != nil {
		return errorResult(err), nil
	}
	to, err := converter.ParseFormat(req.GetString("to", ""))
	if err != nil {
		return errorResult(err), nil
	}
	data, err := document(input, from)
	if err != nil {
		return errorResult(err), nil
	}

	start := time.Now()
	out, err := s.svc.Converter().Convert(data, from, to)
	metrics.ObserveConversion(string(from)+"_to_"+string(to), start, err)
	if err != nil {
		return errorResult(err), nil
	}
	if md, ok := out.(string); ok {
		return mcp.NewToolResultText(md), nil
	}
	return jsonResult(out)
}

func (s *Server) mapStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if path := req.GetString("path", ""); path != "" {
		m, err := s.svc.GetMap(ctx, path)
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult(m.Stats)
	}

	input := req.GetString("input", "")
	if input == "" {
		return mcp.NewToolResultError("path or input is required"), nil
	}
	format, err := converter.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return errorResult(err), nil
	}
	data, err := document(input, format)
	if err != nil {
		return errorResult(err), nil
	}
	st, err := s.svc.Converter().GetStats(data, format)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(st)
}

func (s *Server) validateMap(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := req.RequireString("input")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := converter.ParseFormat(req.GetString("format", ""))
	if err != nil {
		return errorResult(err), nil
	}
	data, err := document(input, format)
	if err != nil {
		return errorResult(err), nil
	}

	err = s.svc.Converter().Validate(data, format)
	var verrs validation.Errors
	switch {
	case err == nil:
		return mcp.NewToolResultText("valid"), nil
	case errors.As(err, &verrs):
		return jsonResult(map[string]any{"valid": false, "errors": verrs})
	}
	return errorResult(err), nil
}

func (s *Server) getFormatContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(MarkdownDialect), nil
}

func (s *Server) readDialectResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DialectURI,
			MIMEType: "text/markdown",
			Text:     MarkdownDialect,
		},
	}, nil
}
