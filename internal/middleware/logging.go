// SPDX-License-Identifier: MIT

package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pointerlabs/clnp/internal/log"
)

// Logging emits one structured access log line per request. Scrape and
// probe endpoints log at debug to keep the info stream readable.
func Logging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			sw := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(sw, r)

			logger := log.WithComponentFromContext(r.Context(), "http")
			level := zerolog.InfoLevel
			switch r.URL.Path {
			case "/metrics", "/api/health":
				level = zerolog.DebugLevel
			}

			logger.WithLevel(level).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.statusCode).
				Dur("duration", time.Since(start)).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request")
		})
	}
}
