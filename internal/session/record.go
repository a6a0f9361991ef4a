// SPDX-License-Identifier: MIT

// Package session persists completed verifications: a JSONL log as the
// primary record, with optional archive and stream sinks layered on top.
// Every sink is best-effort; a verification response never waits on or fails
// with its sinks.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/pointerlabs/clnp/internal/analysis"
	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/scoring"
)

// CogSummary preserves the count task outcome for offline review.
type CogSummary struct {
	TrueCount int  `json:"trueCount"`
	Answer    *int `json:"answer,omitempty"`
}

// EmbedSummary preserves the embed plausibility evidence.
type EmbedSummary struct {
	HoverTimeMs    float64 `json:"hoverTimeMs"`
	UniqueElements int     `json:"uniqueElements"`
	Plausible      bool    `json:"plausible"`
}

// Record is one completed verification as written to every sink.
type Record struct {
	ID           string                    `json:"id"`
	CreatedAt    string                    `json:"createdAt"`
	Mode         string                    `json:"mode"`
	InputMethod  string                    `json:"inputMethod,omitempty"`
	Score        float64                   `json:"score"`
	Verdict      string                    `json:"verdict"`
	VerdictClass string                    `json:"verdictClass"`
	ValidMetrics int                       `json:"validMetrics"`
	SampleCount  int                       `json:"sampleCount"`
	SampleRate   float64                   `json:"sampleRate"`
	DurationMs   float64                   `json:"durationMs"`
	Metrics      map[string]scoring.Metric `json:"metrics"`
	Cog          *CogSummary               `json:"cog,omitempty"`
	Embed        *EmbedSummary             `json:"embed,omitempty"`
	IPHash       string                    `json:"ipHash,omitempty"`
	UserAgent    string                    `json:"userAgent,omitempty"`
	ChallengeID  string                    `json:"challengeId"`
}

// NewRecord assembles the session record for one scored verification.
func NewRecord(challengeID string, res *analysis.Results, out scoring.Outcome, durationMs float64, ipHash, userAgent string) *Record {
	rec := &Record{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC().Format(time.RFC3339),
		Mode:         res.Mode,
		InputMethod:  res.InputMethod,
		Score:        out.Score,
		Verdict:      out.Verdict,
		VerdictClass: out.VerdictClass,
		ValidMetrics: out.ValidMetrics,
		SampleCount:  res.SampleCount,
		SampleRate:   res.SampleRate,
		DurationMs:   durationMs,
		Metrics:      out.Metrics,
		IPHash:       ipHash,
		UserAgent:    userAgent,
		ChallengeID:  challengeID,
	}
	switch res.Mode {
	case string(challenge.ModeStandalone):
		rec.Cog = &CogSummary{
			TrueCount: res.Cog.TrueCount,
			Answer:    res.Cog.Answer,
		}
	case string(challenge.ModeEmbed):
		rec.Embed = &EmbedSummary{
			HoverTimeMs:    res.HoverTimeMs,
			UniqueElements: res.UniqueElements,
			Plausible:      res.Plausible,
		}
	}
	return rec
}
