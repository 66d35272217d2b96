package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// events, if non-nil, is notified after initialize and sync runs.
// sseHandler, if non-nil, is mounted at GET /events.
func NewRouter(svc Indexer, events Publisher, sseHandler http.Handler, mw ...func(http.Handler) http.Handler) chi.Router {
	h := NewHandler(svc, events)

	r := chi.NewRouter()
	r.Use(mw...)

	// Index lifecycle.
	r.Post("/index/initialize", h.Initialize)
	r.Post("/index/sync", h.Sync)
	r.Get("/stats", h.Stats)

	// Graph.
	r.Get("/graph", h.Graph)
	r.Get("/graph/local/*", h.LocalGraph)
	r.Get("/notes/*", h.Note)
	r.Get("/analytics", h.Analytics)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
