// SPDX-License-Identifier: MIT

// Package api exposes the HTTP surface of the verification service:
// challenge issuance, session verification, the admin endpoints and the
// operational endpoints (health, version, metrics).
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/pointerlabs/clnp/internal/admin"
	"github.com/pointerlabs/clnp/internal/archive"
	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/middleware"
	"github.com/pointerlabs/clnp/internal/scoring"
	"github.com/pointerlabs/clnp/internal/session"
	"github.com/pointerlabs/clnp/internal/store"
	"github.com/pointerlabs/clnp/internal/token"
)

// Deps bundles everything the server needs. Archive and Publisher are
// optional sinks; the rest is required.
type Deps struct {
	Generator *challenge.Generator
	Store     *store.Store
	Signer    *token.Signer
	Scorer    *scoring.Scorer
	Sessions  *session.Logger
	Archive   *archive.Store
	Publisher *session.Publisher
	Stats     *admin.Aggregator

	// AdminToken guards /api/admin. Empty disables the admin surface
	// with 503 rather than leaving it open.
	AdminToken string

	// TracingService names the service in HTTP spans. Empty skips the
	// tracing middleware entirely.
	TracingService string
}

func (d Deps) validate() error {
	switch {
	case d.Generator == nil:
		return errors.New("challenge generator is required")
	case d.Store == nil:
		return errors.New("challenge store is required")
	case d.Signer == nil:
		return errors.New("token signer is required")
	case d.Scorer == nil:
		return errors.New("scorer is required")
	case d.Sessions == nil:
		return errors.New("session logger is required")
	case d.Stats == nil:
		return errors.New("stats aggregator is required")
	}
	return nil
}

// Server holds the wired dependencies of the HTTP surface.
type Server struct {
	gen        *challenge.Generator
	store      *store.Store
	signer     *token.Signer
	scorer     *scoring.Scorer
	sessions   *session.Logger
	archive    *archive.Store
	publisher  *session.Publisher
	stats      *admin.Aggregator
	adminToken string
	tracing    string
	started    time.Time
	logger     zerolog.Logger
}

// New validates deps and returns a ready-to-route server.
func New(d Deps) (*Server, error) {
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &Server{
		gen:        d.Generator,
		store:      d.Store,
		signer:     d.Signer,
		scorer:     d.Scorer,
		sessions:   d.Sessions,
		archive:    d.Archive,
		publisher:  d.Publisher,
		stats:      d.Stats,
		adminToken: d.AdminToken,
		tracing:    d.TracingService,
		started:    time.Now(),
		logger:     log.WithComponent("api"),
	}, nil
}

// Router assembles the middleware stack and the route table.
func (s *Server) Router() *chi.Mux {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:            true,
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        s.tracing,
		EnableLogging:         true,
	})

	r.Post("/api/challenge", s.handleChallenge)
	r.Post("/api/verify", s.handleVerify)
	r.Post("/api/embed/challenge", s.handleEmbedChallenge)
	r.Post("/api/embed/verify", s.handleEmbedVerify)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/version", s.handleVersion)

	r.Route("/api/admin", func(ar chi.Router) {
		ar.Use(s.requireAdmin)
		ar.Get("/stats", s.handleAdminStats)
		ar.Get("/sessions", s.handleAdminSessions)
		ar.Get("/session/{id}", s.handleAdminSession)
	})

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errNotFound)
	})

	return r
}
