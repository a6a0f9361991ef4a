// SPDX-License-Identifier: MIT

// Package analysis turns captured pointer and sensor streams into the
// biological-motor evidence the scorer weighs. Each pipeline is independent,
// reports a Valid flag instead of failing, and never mutates its input.
package analysis

import (
	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/reconstruct"
)

// PointerSample is one captured cursor position (standalone flow).
type PointerSample struct {
	T float64 `json:"t"` // ms, client clock
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EmbedPointerSample is one captured cursor position in the embed flow.
// HoverT is the cumulative hover time over instrumented elements.
type EmbedPointerSample struct {
	T       float64 `json:"t"`
	HoverT  float64 `json:"hoverT"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Element int     `json:"el"`
}

// AccelSample is one accelerometer reading.
type AccelSample struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// ElementRect is the client-reported bounding box of an instrumented element.
type ElementRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// StandaloneInput is the captured session data of the standalone flow.
type StandaloneInput struct {
	Pointer     []PointerSample
	Accel       []AccelSample
	Phases      reconstruct.Phases
	Canvas      reconstruct.Canvas
	CogAnswer   *int
	InputMethod string
}

// EmbedInput is the captured session data of the embed flow.
type EmbedInput struct {
	Pointer  []EmbedPointerSample
	Elements []ElementRect
	Device   string
}

// series is the reconstructed tracking record every pipeline consumes:
// cursor, target and perturbation sampled on the original client timestamps,
// plus the estimated capture rate.
type series struct {
	ts []float64 // client clock, ms
	x  []float64 // cursor
	y  []float64
	tx []float64 // reconstructed target
	ty []float64
	ex []float64 // cursor - target, per axis
	ey []float64

	pertX   []float64 // perturbation input signal
	smoothX []float64

	rate float64 // estimated samples/second
}

// estimateRate derives the capture rate from the first timestamps; n caps how
// many samples participate (0 means all).
func estimateRate(ts []float64, n int) float64 {
	if n <= 0 || n > len(ts) {
		n = len(ts)
	}
	if n < 2 {
		return 0
	}
	span := ts[n-1] - ts[0]
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span * 1000
}

// prepareTracking reconstructs the target for every sample at or after the
// tracking phase start.
func prepareTracking(ch *challenge.Challenge, in *StandaloneInput) *series {
	s := &series{}
	for _, p := range in.Pointer {
		if p.T < in.Phases.TrackingStart {
			continue
		}
		pt := reconstruct.At(ch, in.Canvas, in.Phases, p.T)
		s.ts = append(s.ts, p.T)
		s.x = append(s.x, p.X)
		s.y = append(s.y, p.Y)
		s.tx = append(s.tx, pt.TargetX)
		s.ty = append(s.ty, pt.TargetY)
		s.ex = append(s.ex, p.X-pt.TargetX)
		s.ey = append(s.ey, p.Y-pt.TargetY)
		s.pertX = append(s.pertX, pt.PertX)
		s.smoothX = append(s.smoothX, pt.SmoothX)
	}
	s.rate = estimateRate(s.ts, 0)
	return s
}

// prepareEmbed reconstructs the element-relative target on the hover clock.
// Samples pointing at an unknown element index are dropped.
func prepareEmbed(ch *challenge.Challenge, in *EmbedInput) *series {
	s := &series{}
	for _, p := range in.Pointer {
		if p.Element < 0 || p.Element >= len(in.Elements) {
			continue
		}
		rect := in.Elements[p.Element]
		cx := rect.X + rect.W/2
		cy := rect.Y + rect.H/2

		pertX, pertY, _, _ := reconstruct.EmbedPert(ch, p.HoverT)
		tx := cx + pertX
		ty := cy + pertY

		s.ts = append(s.ts, p.HoverT)
		s.x = append(s.x, p.X)
		s.y = append(s.y, p.Y)
		s.tx = append(s.tx, tx)
		s.ty = append(s.ty, ty)
		s.ex = append(s.ex, p.X-tx)
		s.ey = append(s.ey, p.Y-ty)
		s.pertX = append(s.pertX, pertX)
		s.smoothX = append(s.smoothX, cx)
	}
	s.rate = estimateRate(s.ts, 0)
	return s
}
