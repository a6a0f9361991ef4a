// SPDX-License-Identifier: MIT

// Package auth guards the operator endpoints with a single shared token.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/pointerlabs/clnp/internal/log"
)

// ExtractToken retrieves the admin token from the request.
// 1. Authorization: Bearer <token>
// 2. Query: ?token= (if enabled, for dashboard links)
func ExtractToken(r *http.Request, allowQuery bool) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}

	if allowQuery {
		if t := r.URL.Query().Get("token"); t != "" {
			logger := log.WithComponent("auth")
			logger.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("query parameter authentication leaks tokens into proxy logs; prefer the Authorization header")
			return t
		}
	}

	return ""
}

// AuthorizeToken returns true if got matches expected using constant-time
// comparison. Empty tokens are always unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// AuthorizeRequest extracts a token from r and validates it against expected.
func AuthorizeRequest(r *http.Request, expected string, allowQuery bool) bool {
	if r == nil {
		return false
	}
	return AuthorizeToken(ExtractToken(r, allowQuery), expected)
}
