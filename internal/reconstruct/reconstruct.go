// SPDX-License-Identifier: MIT

// Package reconstruct rebuilds the exact target motion of a challenge from
// its parameters. Everything here is a pure function of the inputs, so the
// server-side reconstruction is bit-for-bit reproducible for a session.
package reconstruct

import (
	"math"

	"github.com/pointerlabs/clnp/internal/challenge"
)

// Phases carries the client-reported phase start timestamps (ms, client clock).
type Phases struct {
	FreeMoveStart float64
	TrackingStart float64
	DualTaskStart float64
}

// Canvas is the client viewport the path was rendered in.
type Canvas struct {
	Width  float64
	Height float64
}

// Point is the reconstructed target state at one instant.
type Point struct {
	TargetX, TargetY float64 // smooth path plus all perturbations
	SmoothX, SmoothY float64 // Lissajous path alone
	PertX, PertY     float64 // probe and pulse displacement
	PulseActive      bool
	PulseIdx         int // index into ch.Pulses, -1 when no pulse is active
}

// PathTime maps a client timestamp onto the continuous path clock. During
// tracking the clock is t - trackingStart; the dualtask phase continues the
// clock seamlessly at trackingDuration.
func PathTime(ch *challenge.Challenge, ph Phases, t float64) float64 {
	if ph.DualTaskStart > 0 && t >= ph.DualTaskStart {
		return ch.TrackingDurationMs + (t - ph.DualTaskStart)
	}
	return t - ph.TrackingStart
}

// At reconstructs the target at client timestamp t (ms).
func At(ch *challenge.Challenge, cv Canvas, ph Phases, t float64) Point {
	pt := PathTime(ch, ph, t)

	cx := cv.Width / 2
	cy := cv.Height / 2
	ax := cx * (1 - ch.Path.Padding)
	ay := cy * (1 - ch.Path.Padding)

	sec := pt / 1000
	smoothX := cx + ax*math.Sin(2*math.Pi*ch.Path.FreqX*sec+ch.Path.Phase)
	smoothY := cy + ay*math.Sin(2*math.Pi*ch.Path.FreqY*sec)

	probeX, probeY := probeSum(ch.Probes, sec)
	pulseX, pulseY, active, idx := pulseAt(ch.Pulses, pt, false)

	p := Point{
		SmoothX:     smoothX,
		SmoothY:     smoothY,
		PertX:       probeX + pulseX,
		PertY:       probeY + pulseY,
		PulseActive: active,
		PulseIdx:    idx,
	}
	p.TargetX = smoothX + p.PertX
	p.TargetY = smoothY + p.PertY
	return p
}

// EmbedPert reconstructs the perturbation for an embed sample at the given
// cumulative hover time (ms). The embed target is the hovered element's rect
// center plus this displacement.
func EmbedPert(ch *challenge.Challenge, hoverMs float64) (pertX, pertY float64, pulseActive bool, pulseIdx int) {
	probeX, probeY := probeSum(ch.Probes, hoverMs/1000)
	pulseX, pulseY, active, idx := pulseAt(ch.Pulses, hoverMs, true)
	return probeX + pulseX, probeY + pulseY, active, idx
}

func probeSum(probes []challenge.Probe, sec float64) (x, y float64) {
	for _, p := range probes {
		omega := 2 * math.Pi * p.Freq * sec
		x += p.AmpX * math.Sin(omega+p.PhaseOffset)
		y += p.AmpY * math.Sin(omega)
	}
	return x, y
}

// pulseAt sums the active pulse displacement at clock value now (ms).
// During the hold window the full amplitude applies; the return window eases
// out quadratically: amp * (1 - frac^2). The schedule guarantees pulses never
// overlap, so at most one contributes.
func pulseAt(pulses []challenge.Pulse, now float64, hoverClock bool) (x, y float64, active bool, idx int) {
	idx = -1
	for i, p := range pulses {
		start := p.OffsetMs
		if hoverClock {
			start = p.HoverTimeMs
		}
		dt := now - start
		if dt < 0 || dt >= p.HoldMs+p.ReturnMs {
			continue
		}
		active = true
		idx = i
		if dt < p.HoldMs {
			x += p.AmpX
			y += p.AmpY
		} else {
			frac := (dt - p.HoldMs) / p.ReturnMs
			scale := 1 - frac*frac
			x += p.AmpX * scale
			y += p.AmpY * scale
		}
	}
	return x, y, active, idx
}
