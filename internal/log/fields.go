// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID   = "request_id"
	FieldChallengeID = "challenge_id"
	FieldSessionID   = "session_id"
	FieldIPHash      = "ip_hash"
	FieldTraceID     = "trace_id"
	FieldSpanID      = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Challenge fields
	FieldMode        = "mode"
	FieldInputMethod = "input_method"

	// Analysis fields
	FieldScore        = "score"
	FieldVerdict      = "verdict"
	FieldVerdictClass = "verdict_class"
	FieldValidMetrics = "valid_metrics"
	FieldSampleRate   = "sample_rate"
	FieldSampleCount  = "sample_count"

	// Path / storage fields
	FieldPath = "path"
)
