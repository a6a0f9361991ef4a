// SPDX-License-Identifier: MIT

package api

import (
	"net/http"
	"time"

	"github.com/pointerlabs/clnp/internal/version"
)

// handleHealth reports liveness. Public, unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":                true,
		"uptimeSec":         time.Since(s.started).Seconds(),
		"pendingChallenges": s.store.Pending(),
	})
}

// handleVersion reports the build stamp.
func (s *Server) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": version.Version,
		"commit":  version.Commit,
		"date":    version.Date,
	})
}
