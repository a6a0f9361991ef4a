// SPDX-License-Identifier: MIT

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pointerlabs/clnp/internal/admin"
	"github.com/pointerlabs/clnp/internal/auth"
	"github.com/pointerlabs/clnp/internal/log"
)

// requireAdmin guards the operator endpoints. An unconfigured token keeps
// the surface closed rather than open.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(s.adminToken) == "" {
			writeError(w, http.StatusServiceUnavailable, errAdminNotConfigured)
			return
		}
		if !auth.AuthorizeRequest(r, s.adminToken, true) {
			writeError(w, http.StatusUnauthorized, errInvalidToken)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleAdminStats serves the aggregated session statistics.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Stats()
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("stats aggregation failed")
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleAdminSessions serves a newest-first page of session rows.
func (s *Server) handleAdminSessions(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	offset := queryInt(r, "offset")
	rows, err := s.stats.Sessions(limit, offset)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("session listing failed")
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": rows})
}

// handleAdminSession serves one full session record.
func (s *Server) handleAdminSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.stats.Session(r.Context(), id)
	if err != nil {
		if errors.Is(err, admin.ErrNotFound) {
			writeError(w, http.StatusNotFound, errSessionNotFound)
			return
		}
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Str("session_id", id).Msg("session lookup failed")
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session": rec})
}

// queryInt parses a non-negative integer query parameter, zero when absent
// or malformed.
func queryInt(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
