// SPDX-License-Identifier: MIT

// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clnp_http_requests_total",
		Help: "Total number of HTTP requests by route, method and status code",
	}, []string{"path", "method", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "clnp_http_request_duration_seconds",
		Help:    "HTTP request latency by route and method",
		Buckets: prometheus.DefBuckets,
	}, []string{"path", "method"})

	// Challenge lifecycle

	challengesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clnp_challenges_issued_total",
		Help: "Total number of issued challenges by mode",
	}, []string{"mode"})

	challengesPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "clnp_challenges_pending",
		Help: "Unused, unexpired challenges currently held in memory",
	})

	storeEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clnp_store_evictions_total",
		Help: "Challenges evicted by the sweeper, by reason",
	}, []string{"reason"}) // reason=expired|used

	// Verification pipeline

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clnp_verifications_total",
		Help: "Completed verifications by mode and verdict class",
	}, []string{"mode", "verdict"})

	verificationScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clnp_verification_score",
		Help:    "Distribution of aggregate liveness scores",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "clnp_analysis_duration_seconds",
		Help:    "Wall time of the analysis pipeline per verification",
		Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	// Session sinks

	sessionLogFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "clnp_session_log_failures_total",
		Help: "Failed appends to the JSONL session log (best-effort writes)",
	})

	sessionSinkFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "clnp_session_sink_failures_total",
		Help: "Failed writes to optional session sinks, by sink",
	}, []string{"sink"}) // sink=sqlite|redis
)

// RecordHTTPRequest counts one served request and observes its latency.
func RecordHTTPRequest(path, method string, status int, elapsed time.Duration) {
	httpRequestsTotal.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(path, method).Observe(elapsed.Seconds())
}

// RecordChallengeIssued counts one issued challenge.
func RecordChallengeIssued(mode string) {
	challengesIssuedTotal.WithLabelValues(mode).Inc()
}

// SetChallengesPending tracks the live challenge count.
func SetChallengesPending(n int) {
	challengesPending.Set(float64(n))
}

// RecordStoreEvictions counts sweeper evictions for one reason.
func RecordStoreEvictions(reason string, n int) {
	storeEvictionsTotal.WithLabelValues(reason).Add(float64(n))
}

// RecordVerification counts one completed verification and observes its score.
func RecordVerification(mode, verdictClass string, score float64) {
	verificationsTotal.WithLabelValues(mode, verdictClass).Inc()
	verificationScore.Observe(score)
}

// ObserveAnalysisDuration records the analysis wall time.
func ObserveAnalysisDuration(elapsed time.Duration) {
	analysisDuration.Observe(elapsed.Seconds())
}

// RecordSessionLogFailure counts one swallowed session-log write error.
func RecordSessionLogFailure() {
	sessionLogFailuresTotal.Inc()
}

// RecordSessionSinkFailure counts one swallowed archive or stream write error.
func RecordSessionSinkFailure(sink string) {
	sessionSinkFailuresTotal.WithLabelValues(sink).Inc()
}
