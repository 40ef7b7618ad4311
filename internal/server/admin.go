package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/Sternrassler/apicache/pkg/api"
	"github.com/Sternrassler/apicache/pkg/cache"
	"github.com/Sternrassler/apicache/pkg/logging"
)

// maxAdminBody bounds admin request bodies.
const maxAdminBody = 1 << 10

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.deps.Cache.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *server) handleGetMaxSize(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.MaxSizeResponse{MaxSize: s.deps.Cache.MaxSize()})
}

func (s *server) handleSetMaxSize(w http.ResponseWriter, r *http.Request) {
	var req api.MaxSizeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxAdminBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error: "request body must be JSON: " + err.Error(),
			Code:  api.CodeBadRequest,
		})
		return
	}

	if err := s.deps.Cache.SetMaxSize(r.Context(), api.RawValue(req.MaxSize)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.MaxSizeResponse{MaxSize: s.deps.Cache.MaxSize()})
}

func (s *server) handleClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Cache.Clear(r.Context(), ""); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.ClearResponse{Cleared: "all"})
}

// handleClearEntries clears one exact key (?key=) or every key matching a glob (?pattern=).
func (s *server) handleClearEntries(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	key, pattern := query.Get("key"), query.Get("pattern")

	switch {
	case key != "" && pattern != "":
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error: "key and pattern are mutually exclusive",
			Code:  api.CodeBadRequest,
		})
	case key != "":
		if err := s.deps.Cache.Clear(r.Context(), key); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, api.ClearResponse{Cleared: key})
	case pattern != "":
		n, err := s.deps.Cache.ClearMatching(r.Context(), pattern)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, api.ClearResponse{Cleared: pattern, Deleted: &n})
	default:
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error: "key or pattern query parameter is required",
			Code:  api.CodeBadRequest,
		})
	}
}

// writeError maps cache errors onto admin error responses.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var tooSmall *cache.CapacityTooSmallError
	switch {
	case errors.As(err, &tooSmall):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error:     err.Error(),
			Code:      api.CodeCapacityTooSmall,
			Requested: tooSmall.Requested,
			Current:   tooSmall.Current,
		})
	case errors.Is(err, cache.ErrInvalidCapacity):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error: err.Error(),
			Code:  api.CodeInvalidCapacity,
		})
	case errors.Is(err, doublestar.ErrBadPattern):
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{
			Error: err.Error(),
			Code:  api.CodeBadPattern,
		})
	default:
		logging.FromContext(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Msg("Admin request failed")
		writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
			Error: err.Error(),
			Code:  api.CodeInternal,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
