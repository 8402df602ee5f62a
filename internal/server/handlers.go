package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"goflare.io/urlguard"
)

type checkRequest struct {
	URL string `json:"url"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleCheckURL(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	verdict, err := s.guard.Check(r.Context(), req.URL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verdict)
	case errors.Is(err, urlguard.ErrEmptyURL):
		writeError(w, http.StatusBadRequest, "No URL provided")
	case errors.Is(err, urlguard.ErrInvalidURL):
		writeError(w, http.StatusBadRequest, "Invalid URL")
	default:
		s.logger.Error("URL check failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("url", req.URL),
			zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to check URL")
	}
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	report, err := s.guard.Stats(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, report)
	case errors.Is(err, urlguard.ErrStatsUnavailable):
		writeError(w, http.StatusNotFound, "No cache statistics available yet")
	default:
		s.logger.Error("Failed to read cache statistics", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to read cache statistics")
	}
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	n, err := s.guard.Purge(r.Context())
	if err != nil {
		// Entries are gone from memory even when the snapshot write failed.
		s.logger.Warn("Purge could not persist cache", zap.Int("purged", n), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]int{"purged": n})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
