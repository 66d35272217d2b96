// Package api implements the notegraph REST API using chi.
package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/notegraph/internal/analytics"
	"github.com/starford/notegraph/internal/graph"
	"github.com/starford/notegraph/internal/index"
	"github.com/starford/notegraph/internal/indexer"
)

// DefaultLocalDepth is the local-graph depth used when the query omits it.
const DefaultLocalDepth = 1

// Indexer is the index and graph surface the API serves.
type Indexer interface {
	Initialize(ctx context.Context) (*indexer.InitResult, error)
	Sync(ctx context.Context) (*indexer.SyncResult, error)
	Stats(ctx context.Context) (index.Counts, error)
	Graph(ctx context.Context) (*graph.Snapshot, error)
	LocalGraph(ctx context.Context, id string, depth int) (*graph.LocalGraph, error)
	Analytics(ctx context.Context) (*analytics.Report, error)
	Note(ctx context.Context, id string) (*index.Record, error)
}

// Publisher is notified after index runs.
type Publisher interface {
	PublishSync(*indexer.SyncResult)
	PublishInitialized(*indexer.InitResult)
}

// Handler holds API route handlers.
type Handler struct {
	svc    Indexer
	events Publisher
}

// NewHandler creates a new Handler. events may be nil.
func NewHandler(svc Indexer, events Publisher) *Handler {
	return &Handler{svc: svc, events: events}
}

// noteID extracts the note id from the wildcard URL segment.
// Supports encoded slashes (e.g. projects%2FPlan).
func noteID(r *http.Request) string {
	raw := strings.Trim(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// Initialize handles POST /api/index/initialize.
//
//	@Summary		Rebuild the index and graph from every document
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	InitResponse
//	@Failure		503	{object}	errResponse
//	@Router			/index/initialize [post]
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	// Index runs are not tied to the client connection.
	res, err := h.svc.Initialize(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, r, "initialize", err)
		return
	}
	if h.events != nil {
		h.events.PublishInitialized(res)
	}
	writeJSON(w, http.StatusOK, newInitResponse(res))
}

// Sync handles POST /api/index/sync.
//
//	@Summary		Apply document changes since the last run
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	SyncResponse
//	@Failure		503	{object}	errResponse
//	@Router			/index/sync [post]
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Sync(context.WithoutCancel(r.Context()))
	if err != nil {
		writeError(w, r, "sync", err)
		return
	}
	if h.events != nil {
		h.events.PublishSync(res)
	}
	writeJSON(w, http.StatusOK, newSyncResponse(res))
}

// Stats handles GET /api/stats.
//
//	@Summary		Counts from the persisted index
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	StatsResponse
//	@Router			/stats [get]
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, StatsResponse{Notes: c.Notes, Links: c.Links})
}

// Graph handles GET /api/graph.
//
//	@Summary		Full graph snapshot
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, r, "graph", err)
		return
	}
	writeJSON(w, http.StatusOK, newGraphResponse(snap))
}

// LocalGraph handles GET /api/graph/local/*.
//
//	@Summary		Subgraph within depth hops of a note
//	@Tags			graph
//	@Produce		json
//	@Param			id		path		string	true	"Note id"
//	@Param			depth	query		int		false	"Hop limit (default 1)"
//	@Success		200		{object}	graph.LocalGraph
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/graph/local/{id} [get]
func (h *Handler) LocalGraph(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note id is required"))
		return
	}
	depth := DefaultLocalDepth
	if v := r.URL.Query().Get("depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody("depth must be a non-negative integer"))
			return
		}
		depth = d
	}
	lg, err := h.svc.LocalGraph(r.Context(), id, depth)
	if err != nil {
		writeError(w, r, "local graph", err)
		return
	}
	writeJSON(w, http.StatusOK, lg)
}

// Note handles GET /api/notes/*.
//
//	@Summary		Indexed note with its graph neighbourhood
//	@Tags			notes
//	@Produce		json
//	@Param			id	path		string	true	"Note id"
//	@Success		200	{object}	NoteResponse
//	@Failure		404	{object}	errResponse
//	@Router			/notes/{id} [get]
func (h *Handler) Note(w http.ResponseWriter, r *http.Request) {
	id := noteID(r)
	if id == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("note id is required"))
		return
	}
	rec, err := h.svc.Note(r.Context(), id)
	if err != nil {
		writeError(w, r, "get note", err)
		return
	}
	snap, err := h.svc.Graph(r.Context())
	if err != nil {
		writeError(w, r, "get note", err)
		return
	}
	writeJSON(w, http.StatusOK, newNoteResponse(rec, snap))
}

// Analytics handles GET /api/analytics.
//
//	@Summary		Clusters, bridges, gaps, temporal trends and health
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	AnalyticsResponse
//	@Router			/analytics [get]
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Analytics(r.Context())
	if err != nil {
		writeError(w, r, "analytics", err)
		return
	}
	writeJSON(w, http.StatusOK, newAnalyticsResponse(rep))
}
