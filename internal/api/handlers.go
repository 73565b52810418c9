package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindmark/internal/checksum"
	"github.com/starford/mindmark/internal/converter"
	"github.com/starford/mindmark/internal/mapservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *mapservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *mapservice.Service) *Handler {
	return &Handler{svc: svc}
}

// mapPath extracts the map path from the URL wildcard. Encoded slashes
// (plans%2Fq1.md) are accepted.
func mapPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func requirePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := mapPath(r)
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path is required"))
		return "", false
	}
	return p, true
}

// ListMaps handles GET /api/maps.
//
//	@Summary		List maps with optional pagination and filtering
//	@Tags			maps
//	@Produce		json
//	@Param			limit	query		int		false	"Page size"
//	@Param			offset	query		int		false	"Page offset"
//	@Param			tag		query		string	false	"Filter by tag"
//	@Param			sort	query		string	false	"Sort field"	Enums(updated_at, title, nodes)
//	@Success		200		{object}	MapListResponse
//	@Security		BearerAuth
//	@Router			/maps [get]
func (h *Handler) ListMaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	items, total, err := h.svc.ListMaps(r.Context(), limit, offset, q.Get("tag"), q.Get("sort"))
	if err != nil {
		writeError(w, "list maps", err)
		return
	}
	writeJSON(w, http.StatusOK, MapListResponse{Maps: nonNil(items), Total: total})
}

// GetMap handles GET /api/maps/*.
//
//	@Summary		Get a map in Markdown, ast or NodeTree form
//	@Tags			maps
//	@Produce		json
//	@Param			path	path		string	true	"Map path"
//	@Param			format	query		string	false	"Representation"	Enums(markdown, ast, nodetree)
//	@Success		200		{object}	MapDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps/{path} [get]
func (h *Handler) GetMap(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePath(w, r)
	if !ok {
		return
	}
	format, err := converter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, "get map", err)
		return
	}

	switch format {
	case converter.FormatAST:
		node, err := h.svc.GetMapAST(r.Context(), p)
		if err != nil {
			writeError(w, "get map ast", err, slog.String("path", p))
			return
		}
		writeJSON(w, http.StatusOK, node)
	case converter.FormatTree:
		tree, err := h.svc.GetMapTree(r.Context(), p)
		if err != nil {
			writeError(w, "get map tree", err, slog.String("path", p))
			return
		}
		writeJSON(w, http.StatusOK, tree)
	default:
		m, err := h.svc.GetMap(r.Context(), p)
		if err != nil {
			writeError(w, "get map", err, slog.String("path", p))
			return
		}
		w.Header().Set("ETag", checksum.ETag(m.Checksum))
		writeJSON(w, http.StatusOK, m)
	}
}

// CreateMap handles POST /api/maps.
//
//	@Summary		Create a map from Markdown or a NodeTree
//	@Tags			maps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateMapRequest	true	"Map to create"
//	@Success		201		{object}	MapDetail
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps [post]
func (h *Handler) CreateMap(w http.ResponseWriter, r *http.Request) {
	var req CreateMapRequest
	if !readJSON(w, r, &req) {
		return
	}

	var (
		m   *MapDetail
		err error
	)
	if len(req.Tree) > 0 {
		tree, perr := converter.ParseNodeTree(req.Tree)
		if perr != nil {
			writeError(w, "create map", perr)
			return
		}
		m, err = h.svc.CreateMapFromTree(r.Context(), req.Path, tree)
	} else {
		m, err = h.svc.CreateMap(r.Context(), req.Path, []byte(req.Content))
	}
	if err != nil {
		writeError(w, "create map", err, slog.String("path", req.Path))
		return
	}
	w.Header().Set("ETag", checksum.ETag(m.Checksum))
	writeJSON(w, http.StatusCreated, m)
}

// UpdateMap handles PUT /api/maps/*.
//
//	@Summary		Replace a map with optimistic concurrency
//	@Tags			maps
//	@Accept			json
//	@Produce		json
//	@Param			path		path		string				true	"Map path"
//	@Param			If-Match	header		string				false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateMapRequest	true	"New content"
//	@Success		200			{object}	MapDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps/{path} [put]
func (h *Handler) UpdateMap(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePath(w, r)
	if !ok {
		return
	}
	var req UpdateMapRequest
	if !readJSON(w, r, &req) {
		return
	}

	ifMatch := r.Header.Get("If-Match")

	var (
		m   *MapDetail
		err error
	)
	if len(req.Tree) > 0 {
		tree, perr := converter.ParseNodeTree(req.Tree)
		if perr != nil {
			writeError(w, "update map", perr)
			return
		}
		m, err = h.svc.UpdateMapFromTree(r.Context(), p, tree, ifMatch)
	} else {
		m, err = h.svc.UpdateMap(r.Context(), p, []byte(req.Content), ifMatch)
	}
	if err != nil {
		writeError(w, "update map", err, slog.String("path", p))
		return
	}
	w.Header().Set("ETag", checksum.ETag(m.Checksum))
	writeJSON(w, http.StatusOK, m)
}

// DeleteMap handles DELETE /api/maps/*.
//
//	@Summary		Delete a map
//	@Tags			maps
//	@Param			path	path	string	true	"Map path"
//	@Success		204		"Map deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/maps/{path} [delete]
func (h *Handler) DeleteMap(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePath(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteMap(r.Context(), p); err != nil {
		writeError(w, "delete map", err, slog.String("path", p))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveMap handles POST /api/move.
//
//	@Summary		Rename a map
//	@Tags			maps
//	@Accept			json
//	@Produce		json
//	@Param			body	body		MoveMapRequest	true	"Source and target paths"
//	@Success		200		{object}	MapDetail
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/move [post]
func (h *Handler) MoveMap(w http.ResponseWriter, r *http.Request) {
	var req MoveMapRequest
	if !readJSON(w, r, &req) {
		return
	}
	m, err := h.svc.MoveMap(r.Context(), req.From, req.To)
	if err != nil {
		writeError(w, "move map", err, slog.String("from", req.From), slog.String("to", req.To))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across maps
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: nonNil(results)})
}

// SearchNodes handles GET /api/search/nodes.
//
//	@Summary		Search node topics and notes across maps
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	NodeSearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search/nodes [get]
func (h *Handler) SearchNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	hits, err := h.svc.SearchNodes(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search nodes", err, slog.String("query", q))
		return
	}
	writeJSON(w, http.StatusOK, NodeSearchResponse{Results: nonNil(hits)})
}

// NodeContext handles GET /api/context/*?node=ID.
//
//	@Summary		Breadcrumb, neighbours and subtree of one node
//	@Tags			maps
//	@Produce		json
//	@Param			path	path		string	true	"Map path"
//	@Param			node	query		string	true	"Node id"
//	@Success		200		{object}	mapservice.NodeContext
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/context/{path} [get]
func (h *Handler) NodeContext(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePath(w, r)
	if !ok {
		return
	}
	node := r.URL.Query().Get("node")
	nc, err := h.svc.NodeContext(r.Context(), p, node)
	if err != nil {
		writeError(w, "node context", err, slog.String("path", p), slog.String("node", node))
		return
	}
	writeJSON(w, http.StatusOK, nc)
}

// Preview handles GET /api/preview/*.
//
//	@Summary		Render a map as HTML
//	@Tags			maps
//	@Produce		html
//	@Param			path	path	string	true	"Map path"
//	@Success		200		{string}	string	"HTML fragment"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/preview/{path} [get]
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	p, ok := requirePath(w, r)
	if !ok {
		return
	}
	html, err := h.svc.Preview(r.Context(), p)
	if err != nil {
		writeError(w, "preview", err, slog.String("path", p))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
