// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/pointerlabs/clnp/internal/analysis"
	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/metrics"
	"github.com/pointerlabs/clnp/internal/reconstruct"
	"github.com/pointerlabs/clnp/internal/scoring"
	"github.com/pointerlabs/clnp/internal/session"
	"github.com/pointerlabs/clnp/internal/telemetry"
	"github.com/pointerlabs/clnp/internal/token"
)

const (
	// maxBodyBytes caps verify payloads. A full standalone capture at
	// 240 Hz stays well under 1 MiB.
	maxBodyBytes = 2 << 20

	// Sample floors below which no pipeline can produce a stable estimate.
	minStandaloneSamples = 50
	minEmbedSamples      = 30

	// maxEmbedElements caps the element table; indexes are client data.
	maxEmbedElements = 256
)

type phasesRequest struct {
	TrackingStart float64 `json:"trackingStart"`
	DualtaskStart float64 `json:"dualtaskStart"`
	TestEnd       float64 `json:"testEnd"`
}

type canvasRequest struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type verifyRequest struct {
	Token       string                   `json:"token"`
	Pointer     []analysis.PointerSample `json:"pointer"`
	Accel       []analysis.AccelSample   `json:"accel"`
	Phases      *phasesRequest           `json:"phases"`
	Canvas      *canvasRequest           `json:"canvas"`
	InputMethod string                   `json:"inputMethod"`
	CogAnswer   *int                     `json:"cogAnswer"`
}

type embedElementRequest struct {
	Index int                  `json:"index"`
	Rect  analysis.ElementRect `json:"rect"`
}

// embedVerifyRequest also arrives with client-side hover and pulse logs;
// those are ignored because the pointer stream is re-derived server-side.
type embedVerifyRequest struct {
	Token         string                        `json:"token"`
	Pointer       []analysis.EmbedPointerSample `json:"pointer"`
	Accel         []analysis.AccelSample        `json:"accel"`
	Elements      []embedElementRequest         `json:"elements"`
	InputMethod   string                        `json:"inputMethod"`
	DeviceProfile string                        `json:"deviceProfile"`
}

type verifyResponse struct {
	OK           bool                      `json:"ok"`
	SessionID    string                    `json:"sessionId"`
	Score        float64                   `json:"score"`
	Verdict      string                    `json:"verdict"`
	VerdictClass string                    `json:"verdictClass"`
	ValidMetrics int                       `json:"validMetrics"`
	SampleRate   float64                   `json:"sampleRate"`
	Metrics      map[string]scoring.Metric `json:"metrics"`
	Receipt      string                    `json:"receipt"`

	// Embed only.
	Verified       *bool    `json:"verified,omitempty"`
	Plausible      *bool    `json:"plausible,omitempty"`
	HoverTimeMs    *float64 `json:"hoverTimeMs,omitempty"`
	UniqueElements *int     `json:"uniqueElements,omitempty"`
}

// handleVerify scores a standalone session capture against its challenge.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	claims, err := s.signer.Verify(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errInvalidToken)
		return
	}
	ctx := log.ContextWithChallengeID(r.Context(), claims.ChallengeID)
	r = r.WithContext(ctx)

	ch, err := s.store.Begin(claims.ChallengeID, challenge.ModeStandalone)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	// Shape checks run before the challenge is consumed so a client can
	// retry a truncated capture with the same token.
	if len(req.Pointer) < minStandaloneSamples {
		writeError(w, http.StatusBadRequest, errInsufficientPointer)
		return
	}
	if req.Phases == nil {
		writeError(w, http.StatusBadRequest, errMissingPhases)
		return
	}
	if req.Canvas == nil || req.Canvas.Width <= 0 || req.Canvas.Height <= 0 {
		writeError(w, http.StatusBadRequest, errMissingCanvas)
		return
	}

	if _, err := s.store.Commit(ch.ID); err != nil {
		writeStoreError(w, err)
		return
	}

	in := &analysis.StandaloneInput{
		Pointer: req.Pointer,
		Accel:   req.Accel,
		Phases: reconstruct.Phases{
			TrackingStart: req.Phases.TrackingStart,
			DualTaskStart: req.Phases.DualtaskStart,
		},
		Canvas:      reconstruct.Canvas{Width: req.Canvas.Width, Height: req.Canvas.Height},
		CogAnswer:   req.CogAnswer,
		InputMethod: req.InputMethod,
	}
	res, err := runAnalysis(func() *analysis.Results {
		return analysis.AnalyzeStandalone(ch, in)
	})
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("analysis failed")
		writeError(w, http.StatusInternalServerError, errAnalysisFailed)
		return
	}

	first, last := req.Pointer[0].T, req.Pointer[len(req.Pointer)-1].T
	s.finish(w, r, ch, res, spanMs(first, last))
}

// handleEmbedVerify scores an embed session capture against its challenge.
func (s *Server) handleEmbedVerify(w http.ResponseWriter, r *http.Request) {
	var req embedVerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}

	claims, err := s.signer.Verify(req.Token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, errInvalidToken)
		return
	}
	ctx := log.ContextWithChallengeID(r.Context(), claims.ChallengeID)
	r = r.WithContext(ctx)

	ch, err := s.store.Begin(claims.ChallengeID, challenge.ModeEmbed)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	if len(req.Pointer) < minEmbedSamples {
		writeError(w, http.StatusBadRequest, errInsufficientPointer)
		return
	}
	if len(req.Elements) == 0 {
		writeError(w, http.StatusBadRequest, errMissingElements)
		return
	}

	if _, err := s.store.Commit(ch.ID); err != nil {
		writeStoreError(w, err)
		return
	}

	device := req.DeviceProfile
	if device == "" {
		device = req.InputMethod
	}
	in := &analysis.EmbedInput{
		Pointer:  req.Pointer,
		Elements: elementTable(req.Elements),
		Device:   device,
	}
	res, err := runAnalysis(func() *analysis.Results {
		return analysis.AnalyzeEmbed(ch, in)
	})
	if err != nil {
		logger := log.WithComponentFromContext(ctx, "api")
		logger.Error().Err(err).Msg("analysis failed")
		writeError(w, http.StatusInternalServerError, errAnalysisFailed)
		return
	}

	first, last := req.Pointer[0].T, req.Pointer[len(req.Pointer)-1].T
	s.finish(w, r, ch, res, spanMs(first, last))
}

// finish is the shared tail of both verify flows: score, persist, emit.
func (s *Server) finish(w http.ResponseWriter, r *http.Request, ch *challenge.Challenge, res *analysis.Results, durationMs float64) {
	out := s.scorer.Score(res)

	rec := session.NewRecord(ch.ID, res, out, durationMs, s.signer.IPHash(clientIP(r)), r.UserAgent())
	s.sessions.Append(rec)
	if s.archive != nil {
		s.archive.Insert(rec)
	}
	if s.publisher != nil {
		s.publisher.Publish(rec)
	}

	metrics.RecordVerification(string(ch.Mode), out.VerdictClass, out.Score)
	attrs := telemetry.VerifyAttributes(string(ch.Mode), out.VerdictClass, res.InputMethod, out.Score, out.ValidMetrics)
	attrs = append(attrs, telemetry.AnalysisAttributes(res.SampleCount, res.SampleRate, int64(durationMs))...)
	trace.SpanFromContext(r.Context()).SetAttributes(attrs...)

	receipt, err := s.signer.SignReceipt(token.Receipt{
		ChallengeID:  ch.ID,
		Mode:         string(ch.Mode),
		Verified:     out.Verified,
		Score:        out.Score,
		Verdict:      out.Verdict,
		VerdictClass: out.VerdictClass,
		VerifiedAt:   time.Now().UnixMilli(),
	})
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("receipt signing failed")
		writeError(w, http.StatusInternalServerError, errInternal)
		return
	}

	finishLogger := log.WithComponentFromContext(r.Context(), "api")
	finishLogger.Info().
		Str("session_id", rec.ID).
		Str("mode", string(ch.Mode)).
		Str("verdict_class", out.VerdictClass).
		Float64("score", out.Score).
		Int("valid_metrics", out.ValidMetrics).
		Int("samples", res.SampleCount).
		Msg("verification complete")

	resp := verifyResponse{
		OK:           true,
		SessionID:    rec.ID,
		Score:        out.Score,
		Verdict:      out.Verdict,
		VerdictClass: out.VerdictClass,
		ValidMetrics: out.ValidMetrics,
		SampleRate:   res.SampleRate,
		Metrics:      out.Metrics,
		Receipt:      receipt,
	}
	if ch.Mode == challenge.ModeEmbed {
		resp.Verified = &out.Verified
		resp.Plausible = &res.Plausible
		resp.HoverTimeMs = &res.HoverTimeMs
		resp.UniqueElements = &res.UniqueElements
	}
	writeJSON(w, http.StatusOK, resp)
}

// runAnalysis shields the request from panics in the numeric pipelines.
// The challenge is already consumed at this point; a crashed analysis must
// not leave the token replayable.
func runAnalysis(fn func() *analysis.Results) (res *analysis.Results, err error) {
	defer func() {
		if p := recover(); p != nil {
			res = nil
			err = fmt.Errorf("analysis panicked: %v", p)
		}
	}()
	start := time.Now()
	res = fn()
	metrics.ObserveAnalysisDuration(time.Since(start))
	return res, nil
}

// decodeBody caps and decodes a JSON request body, writing the wire error
// itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, into any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusBadRequest, errBodyTooLarge)
		} else {
			writeError(w, http.StatusBadRequest, errInvalidJSON)
		}
		return false
	}
	return true
}

// elementTable lays the client-reported rects out by their declared index.
func elementTable(elems []embedElementRequest) []analysis.ElementRect {
	n := 0
	for _, e := range elems {
		if e.Index >= 0 && e.Index < maxEmbedElements && e.Index+1 > n {
			n = e.Index + 1
		}
	}
	rects := make([]analysis.ElementRect, n)
	for _, e := range elems {
		if e.Index >= 0 && e.Index < n {
			rects[e.Index] = e.Rect
		}
	}
	return rects
}

// spanMs is the wall-clock span of the capture, clamped at zero because
// timestamps are client data.
func spanMs(first, last float64) float64 {
	if d := last - first; d > 0 {
		return d
	}
	return 0
}

// clientIP resolves the caller address behind the usual proxy headers.
func clientIP(r *http.Request) string {
	if v := strings.TrimSpace(r.Header.Get("Cf-Connecting-Ip")); v != "" {
		return v
	}
	if v := r.Header.Get("X-Forwarded-For"); v != "" {
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		return strings.TrimSpace(v)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
