package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleHealth matches the teacher's handleHealth shape, renamed to this
// service's identity.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "marketpulse-ingestor",
	})
}

// writeJSON is the teacher's writeJSON helper, unchanged.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// writeError renders the {"error":{"code":...,"message":...}} shape
// spec.md §7 uses throughout, not just in the rate-limit/quota gates.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}

// userID resolves the caller's identity from an X-User-Id header.
// Authentication itself is out of scope (spec.md §1 marks auth/user
// management an adjacent concern) — this is the single seam a real auth
// middleware would fill in, matching how FastAPI's original handlers
// receive a already-authenticated user via dependency injection.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}

func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}
