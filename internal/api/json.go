package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/notegraph/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrStorageUnavailable), errors.Is(err, apperr.ErrRootUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs unexpected failures and writes the mapped error body.
func writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusOf(err)
	msg := http.StatusText(status)
	switch status {
	case http.StatusNotFound:
		msg = "not found"
	case http.StatusServiceUnavailable:
		msg = err.Error()
		slog.Warn(op+" unavailable", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	default:
		msg = "internal error"
		slog.Error(op+" failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody(msg))
}
