// SPDX-License-Identifier: MIT

package analysis

import (
	"github.com/pointerlabs/clnp/internal/challenge"
)

const (
	embedMinElements   = 2
	embedMinPulses     = 2
	embedMinHoverMs    = 4000
	embedMinHoverTouch = 3000
)

// AnalyzeStandalone runs every pipeline over a standalone session capture.
// Pipelines that lack data report Valid=false rather than aborting the run.
func AnalyzeStandalone(ch *challenge.Challenge, in *StandaloneInput) *Results {
	s := prepareTracking(ch, in)

	starts := make([]float64, len(ch.Pulses))
	for i, p := range ch.Pulses {
		starts[i] = in.Phases.TrackingStart + p.OffsetMs
	}

	res := &Results{
		Mode:        string(challenge.ModeStandalone),
		SampleCount: len(in.Pointer),
		SampleRate:  s.rate,
		InputMethod: in.InputMethod,
	}
	res.Transfer = analyzeTransfer(s, ch.Probes)
	res.CursorTremor = analyzeCursorTremor(s)
	res.AccelTremor = analyzeAccelTremor(in.Accel)
	res.OneOverF = analyzeOneOverF(s)
	res.NoiseCorr = analyzeNoiseCorr(s)
	res.CrossAxis = analyzeCrossAxis(s, starts)
	res.Pulse = analyzePulseResponse(s, ch.Pulses, starts)
	res.MinJerk = analyzeMinJerk(res.Pulse)
	res.Cog = analyzeCog(s, ch.Cog, in.Phases, in.CogAnswer)
	return res
}

// AnalyzeEmbed runs the pipelines that survive the hover clock. There is no
// dual-task phase and no accelerometer capture in the embed flow; those
// pipelines stay invalid. Plausibility gates score release on evidence that
// the pointer actually visited the instrumented elements.
func AnalyzeEmbed(ch *challenge.Challenge, in *EmbedInput) *Results {
	s := prepareEmbed(ch, in)

	starts := make([]float64, len(ch.Pulses))
	for i, p := range ch.Pulses {
		starts[i] = p.HoverTimeMs
	}

	res := &Results{
		Mode:        string(challenge.ModeEmbed),
		SampleCount: len(in.Pointer),
		SampleRate:  s.rate,
		InputMethod: in.Device,
	}
	res.Transfer = analyzeTransfer(s, ch.Probes)
	res.CursorTremor = analyzeCursorTremor(s)
	res.OneOverF = analyzeOneOverF(s)
	res.NoiseCorr = analyzeNoiseCorr(s)
	res.CrossAxis = analyzeCrossAxis(s, starts)
	res.Pulse = analyzePulseResponse(s, ch.Pulses, starts)
	res.MinJerk = analyzeMinJerk(res.Pulse)

	seen := make(map[int]struct{})
	var maxHover float64
	for _, p := range in.Pointer {
		if p.Element >= 0 && p.Element < len(in.Elements) {
			seen[p.Element] = struct{}{}
		}
		if p.HoverT > maxHover {
			maxHover = p.HoverT
		}
	}
	res.HoverTimeMs = maxHover
	res.UniqueElements = len(seen)
	for _, p := range ch.Pulses {
		if maxHover >= p.HoverTimeMs {
			res.PulsesTriggered++
		}
	}

	minHover := float64(embedMinHoverMs)
	if in.Device == "touch" {
		minHover = embedMinHoverTouch
	}
	res.Plausible = res.UniqueElements >= embedMinElements &&
		res.HoverTimeMs >= minHover &&
		res.PulsesTriggered >= embedMinPulses
	return res
}
