package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/mindmark/internal/mapservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events, where the token may
// also be passed as ?access_token=.
func NewRouter(svc *mapservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		r.Get("/maps", h.ListMaps)
		r.Post("/maps", h.CreateMap)
		r.Get("/maps/*", h.GetMap)
		r.Put("/maps/*", h.UpdateMap)
		r.Delete("/maps/*", h.DeleteMap)
		r.Post("/move", h.MoveMap)

		r.Post("/convert", h.Convert)
		r.Post("/validate", h.Validate)
		r.Post("/roundtrip", h.RoundTrip)
		r.Post("/stats", h.Stats)

		r.Get("/search", h.Search)
		r.Get("/search/nodes", h.SearchNodes)
		r.Get("/context/*", h.NodeContext)
		r.Get("/preview/*", h.Preview)
	})

	if sseHandler != nil {
		r.With(StreamAuthMiddleware(authEnabled, token)).Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
