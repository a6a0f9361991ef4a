// SPDX-License-Identifier: MIT

// Package challenge defines verification challenges and generates their
// randomized parameters. A challenge fully determines the target motion the
// client must track; the server later reconstructs that motion bit-for-bit
// from the same parameters.
package challenge

import "time"

// Mode selects the challenge flavor.
type Mode string

const (
	// ModeStandalone is the full-page flow: free movement, pursuit
	// tracking and a dual-task phase with cognitive flashes.
	ModeStandalone Mode = "standalone"
	// ModeEmbed is the sub-perceptual hover probe for embedded widgets.
	ModeEmbed Mode = "embed"
)

// PathSpec parameterizes the smooth Lissajous pursuit path.
type PathSpec struct {
	FreqX   float64 // Hz
	FreqY   float64 // Hz
	Phase   float64 // radians, applied to the X axis
	Padding float64 // fraction of the half-extent kept clear of the canvas edge
}

// Probe is one sum-of-sines perturbation component.
type Probe struct {
	Freq        float64 // Hz
	AmpX        float64 // px
	AmpY        float64 // px
	PhaseOffset float64 // radians, applied to the X axis
}

// Pulse is a step displacement with a hold plateau and an eased return.
// Standalone pulses are scheduled on the tracking clock (OffsetMs);
// embed pulses on the cumulative hover clock (HoverTimeMs).
type Pulse struct {
	OffsetMs    float64
	HoverTimeMs float64
	AmpX        float64 // px, signed
	AmpY        float64 // px; pulses displace X only, the y response is measured
	HoldMs      float64
	ReturnMs    float64
}

// Flash is one color flash of the cognitive dual task.
type Flash struct {
	TimeMs   float64 // ms since dualtask start
	Color    string
	IsTarget bool
}

// CogTask is the counting task overlaid on the dualtask phase.
// TargetCount and the per-flash IsTarget flags never reach clients.
type CogTask struct {
	TargetColor string
	TargetCount int
	Colors      []string
	Flashes     []Flash
}

// Challenge is the full server-side challenge state.
type Challenge struct {
	ID        string
	Mode      Mode
	IssuedAt  time.Time
	ExpiresAt time.Time

	// Used flips exactly once, before analysis runs.
	Used   bool
	UsedAt time.Time

	FreeMoveDurationMs float64
	TrackingDurationMs float64
	DualTaskDurationMs float64

	Path   PathSpec
	Probes []Probe
	Pulses []Pulse
	Cog    *CogTask
}

// Expired reports whether the challenge TTL has elapsed at the given time.
func (c *Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}
