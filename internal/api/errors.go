// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pointerlabs/clnp/internal/store"
)

// Wire error codes. Clients branch on these strings, so they are part of
// the API contract.
const (
	errBodyTooLarge        = "body_too_large"
	errInvalidJSON         = "invalid_json"
	errInsufficientPointer = "insufficient_pointer_data"
	errMissingPhases       = "missing_phases"
	errMissingCanvas       = "missing_canvas"
	errMissingElements     = "missing_elements"
	errInvalidToken        = "invalid_token"
	errAdminNotConfigured  = "admin_not_configured"
	errChallengeNotFound   = "challenge_not_found"
	errSessionNotFound     = "session_not_found"
	errWrongMode           = "wrong_challenge_mode"
	errChallengeUsed       = "challenge_already_used"
	errChallengeExpired    = "challenge_expired"
	errAnalysisFailed      = "analysis_failed"
	errNotFound            = "not_found"
	errInternal            = "internal_error"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes the error envelope every non-2xx API response uses.
func writeError(w http.ResponseWriter, code int, errCode string) {
	writeJSON(w, code, map[string]any{"ok": false, "error": errCode})
}

// writeStoreError maps challenge store errors onto the wire taxonomy.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, errChallengeNotFound)
	case errors.Is(err, store.ErrWrongMode):
		writeError(w, http.StatusBadRequest, errWrongMode)
	case errors.Is(err, store.ErrUsed):
		writeError(w, http.StatusConflict, errChallengeUsed)
	case errors.Is(err, store.ErrExpired):
		writeError(w, http.StatusGone, errChallengeExpired)
	default:
		writeError(w, http.StatusInternalServerError, errInternal)
	}
}
