// SPDX-License-Identifier: MIT

package analysis

import (
	"math"

	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/dsp"
)

const (
	pulsePreWindowMs  = 200
	pulsePostWindowMs = 600
	pulsePreMin       = 2
	pulsePostMin      = 5

	onsetEarliestMs  = 80
	onsetThreshold   = 0.20
	sustainThreshold = 0.15
	sustainSpanMs    = 40

	pulseMinDetected = 2

	minJerkMinSamples = 4
	minJerkMinSpanMs  = 30
)

// analyzePulseResponse measures how the cursor corrects each target pulse.
// The correction is normalized by the pulse amplitude, so 1.0 means the
// displacement was fully matched. Onset is the first sustained crossing of
// the correction threshold after the reflex floor.
func analyzePulseResponse(s *series, pulses []challenge.Pulse, starts []float64) PulseResult {
	res := PulseResult{}
	if len(starts) != len(pulses) {
		return res
	}

	var latencies, overshoots []float64
	for pi, start := range starts {
		amp := pulses[pi].AmpX
		if math.Abs(amp) < 1e-9 {
			continue
		}

		var preT, preX []float64
		var dts, xs []float64
		for i, t := range s.ts {
			dt := t - start
			switch {
			case dt >= -pulsePreWindowMs && dt < 0:
				preT = append(preT, t)
				preX = append(preX, s.x[i])
			case dt >= 0 && dt < pulsePostWindowMs:
				dts = append(dts, dt)
				xs = append(xs, s.x[i])
			}
		}
		if len(preT) < pulsePreMin || len(dts) < pulsePostMin {
			continue
		}

		// Extrapolate the pre-pulse trajectory; deviation from it is the
		// pulse-evoked correction.
		slope, intercept, _ := dsp.LinReg(preT, preX)
		corr := make([]float64, len(xs))
		for j := range xs {
			predicted := slope*(start+dts[j]) + intercept
			corr[j] = (xs[j] - predicted) / amp
		}

		onset := -1.0
		for j := range dts {
			if dts[j] < onsetEarliestMs || corr[j] <= onsetThreshold {
				continue
			}
			if sustained(dts, corr, j) {
				onset = dts[j]
				break
			}
		}
		if onset < 0 {
			continue
		}

		peak, peakTime := corr[0], dts[0]
		first := true
		for j := range dts {
			if dts[j] < onset {
				continue
			}
			if first || corr[j] > peak {
				peak, peakTime = corr[j], dts[j]
				first = false
			}
		}

		latencies = append(latencies, onset)
		overshoots = append(overshoots, math.Max(0, peak-1))
		res.Fits = append(res.Fits, PulseFit{
			PulseIdx:  pi,
			LatencyMs: onset,
			PeakMs:    peakTime,
			Peak:      peak,
			Dts:       dts,
			Corr:      corr,
		})
	}

	res.Detected = len(latencies)
	if res.Detected < pulseMinDetected {
		res.Fits = nil
		return res
	}
	res.Valid = true
	res.LatencyMeanMs = dsp.Mean(latencies)
	res.LatencyStdMs = dsp.StdDev(latencies)
	res.OvershootMean = dsp.Mean(overshoots)
	return res
}

// sustained reports whether every sample within the sustain span after index
// j stays above the lower threshold.
func sustained(dts, corr []float64, j int) bool {
	limit := dts[j] + sustainSpanMs
	for k := j + 1; k < len(dts) && dts[k] <= limit; k++ {
		if corr[k] <= sustainThreshold {
			return false
		}
	}
	return true
}

// analyzeMinJerk fits each detected pulse correction between onset and peak
// against the minimum-jerk reach profile. Smooth biological reaches score
// near 1; stepped or linear trajectories do not.
func analyzeMinJerk(p PulseResult) MinJerkResult {
	res := MinJerkResult{}
	var r2s []float64
	for _, fit := range p.Fits {
		span := fit.PeakMs - fit.LatencyMs
		if span < minJerkMinSpanMs {
			continue
		}

		var ts, ys []float64
		for j := range fit.Dts {
			if fit.Dts[j] >= fit.LatencyMs && fit.Dts[j] <= fit.PeakMs {
				ts = append(ts, fit.Dts[j])
				ys = append(ys, fit.Corr[j])
			}
		}
		if len(ts) < minJerkMinSamples {
			continue
		}

		x0, xf := ys[0], fit.Peak
		var ssRes, ssTot float64
		mean := dsp.Mean(ys)
		for j := range ts {
			tau := (ts[j] - fit.LatencyMs) / span
			t3 := tau * tau * tau
			model := x0 + (xf-x0)*(10*t3-15*t3*tau+6*t3*tau*tau)
			ssRes += (ys[j] - model) * (ys[j] - model)
			ssTot += (ys[j] - mean) * (ys[j] - mean)
		}
		if ssTot < 1e-12 {
			continue
		}
		r2 := 1 - ssRes/ssTot
		if r2 < 0 {
			r2 = 0
		} else if r2 > 1 {
			r2 = 1
		}
		r2s = append(r2s, r2)
	}

	if len(r2s) == 0 {
		return res
	}
	res.Valid = true
	res.MeanR2 = dsp.Mean(r2s)
	res.Fits = len(r2s)
	return res
}
