// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/metrics"
	"github.com/pointerlabs/clnp/internal/telemetry"
	"github.com/pointerlabs/clnp/internal/token"
)

type challengeResponse struct {
	OK        bool           `json:"ok"`
	Challenge challenge.View `json:"challenge"`
	Token     string         `json:"token"`
}

// handleChallenge issues a standalone challenge.
func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	s.issueChallenge(w, r, challenge.ModeStandalone)
}

// handleEmbedChallenge issues an embed challenge.
func (s *Server) handleEmbedChallenge(w http.ResponseWriter, r *http.Request) {
	s.issueChallenge(w, r, challenge.ModeEmbed)
}

func (s *Server) issueChallenge(w http.ResponseWriter, r *http.Request, mode challenge.Mode) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var (
		ch  *challenge.Challenge
		err error
	)
	if mode == challenge.ModeEmbed {
		ch, err = s.gen.Embed()
	} else {
		ch, err = s.gen.Standalone()
	}
	if err != nil {
		logger.Error().Err(err).Str("mode", string(mode)).Msg("challenge generation failed")
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	tok, err := s.signer.Sign(token.Claims{
		ChallengeID: ch.ID,
		Mode:        string(ch.Mode),
		IssuedAt:    ch.IssuedAt.UnixMilli(),
		ExpiresAt:   ch.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		logger.Error().Err(err).Msg("token signing failed")
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	s.store.Put(ch)
	metrics.RecordChallengeIssued(string(ch.Mode))
	trace.SpanFromContext(r.Context()).SetAttributes(
		telemetry.ChallengeAttributes(ch.ID, string(ch.Mode), len(ch.Pulses), len(ch.Probes))...)

	logger.Info().
		Str("challenge_id", ch.ID).
		Str("mode", string(ch.Mode)).
		Time("expires_at", ch.ExpiresAt).
		Msg("challenge issued")

	writeJSON(w, http.StatusOK, challengeResponse{
		OK:        true,
		Challenge: challenge.ClientView(ch),
		Token:     tok,
	})
}
