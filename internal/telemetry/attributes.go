// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the service.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Challenge attributes
	ChallengeIDKey     = "challenge.id"
	ChallengeModeKey   = "challenge.mode"
	ChallengePulsesKey = "challenge.pulses"
	ChallengeProbesKey = "challenge.probes"

	// Verification attributes
	VerifyModeKey         = "verify.mode"
	VerifyVerdictClassKey = "verify.verdict_class"
	VerifyScoreKey        = "verify.score"
	VerifyValidMetricsKey = "verify.valid_metrics"
	VerifyInputMethodKey  = "verify.input_method"

	// Analysis attributes
	AnalysisSamplesKey    = "analysis.samples"
	AnalysisSampleRateKey = "analysis.sample_rate_hz"
	AnalysisDurationKey   = "analysis.duration_ms"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// ChallengeAttributes creates challenge-issuance span attributes.
func ChallengeAttributes(id, mode string, pulses, probes int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(ChallengeIDKey, id),
		attribute.String(ChallengeModeKey, mode),
		attribute.Int(ChallengePulsesKey, pulses),
		attribute.Int(ChallengeProbesKey, probes),
	}
}

// VerifyAttributes creates verification span attributes.
func VerifyAttributes(mode, verdictClass, inputMethod string, score float64, validMetrics int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(VerifyModeKey, mode),
		attribute.String(VerifyVerdictClassKey, verdictClass),
		attribute.Float64(VerifyScoreKey, score),
		attribute.Int(VerifyValidMetricsKey, validMetrics),
	}
	if inputMethod != "" {
		attrs = append(attrs, attribute.String(VerifyInputMethodKey, inputMethod))
	}
	return attrs
}

// AnalysisAttributes creates analysis span attributes.
func AnalysisAttributes(samples int, sampleRateHz float64, durationMS int64) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AnalysisSamplesKey, samples),
		attribute.Float64(AnalysisSampleRateKey, sampleRateHz),
		attribute.Int64(AnalysisDurationKey, durationMS),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
