// SPDX-License-Identifier: MIT

package analysis

import (
	"math"

	"github.com/pointerlabs/clnp/internal/dsp"
)

const (
	oneOverFMinSamples = 64
	oneOverFMinPoints  = 8
	oneOverFLowHz      = 0.3

	noiseWindowLen   = 15
	noiseMinWindows  = 5
	noiseMinSpeedPxS = 10
)

// analyzeOneOverF fits the log-log spectrum of the horizontal error velocity.
// Biological corrective motion shows pink-noise structure; white noise fits a
// flat line and scripted motion collapses to spikes.
func analyzeOneOverF(s *series) OneOverFResult {
	res := OneOverFResult{}
	if len(s.ts) < oneOverFMinSamples || s.rate <= 0 {
		return res
	}
	_, err := dsp.Resample(s.ts, s.ex, s.rate)
	if len(err) < 2 {
		return res
	}
	// Grid step is 1000/rate ms, so the forward difference times rate is px/s.
	vel := make([]float64, len(err)-1)
	for i := range vel {
		vel[i] = (err[i+1] - err[i]) * s.rate
	}
	freqs, power := dsp.PSD(vel, s.rate)

	highHz := s.rate / 4
	var logF, logP []float64
	for i, f := range freqs {
		if f < oneOverFLowHz || f > highHz || power[i] <= 0 {
			continue
		}
		logF = append(logF, math.Log10(f))
		logP = append(logP, math.Log10(power[i]))
	}
	if len(logF) < oneOverFMinPoints {
		return res
	}
	slope, _, r2 := dsp.LinReg(logF, logP)
	res.Valid = true
	res.Slope = slope
	res.R2 = r2
	res.Points = len(logF)
	return res
}

// analyzeNoiseCorr checks whether error variability scales with movement
// speed, the signature of signal-dependent motor noise. Windows run over the
// raw samples with 50% overlap.
func analyzeNoiseCorr(s *series) NoiseCorrResult {
	res := NoiseCorrResult{}
	n := len(s.ts)
	if n < noiseWindowLen {
		return res
	}

	errMag := make([]float64, n)
	for i := range errMag {
		errMag[i] = math.Hypot(s.ex[i], s.ey[i])
	}

	var speeds, sds []float64
	step := noiseWindowLen / 2
	for start := 0; start+noiseWindowLen <= n; start += step {
		end := start + noiseWindowLen

		var speedSum float64
		count := 0
		for i := start + 1; i < end; i++ {
			dt := s.ts[i] - s.ts[i-1]
			if dt <= 0 {
				continue
			}
			dx := s.x[i] - s.x[i-1]
			dy := s.y[i] - s.y[i-1]
			speedSum += math.Hypot(dx, dy) / dt * 1000
			count++
		}
		if count == 0 {
			continue
		}
		meanSpeed := speedSum / float64(count)
		if meanSpeed <= noiseMinSpeedPxS {
			continue
		}
		speeds = append(speeds, meanSpeed)
		sds = append(sds, dsp.StdDev(errMag[start:end]))
	}

	if len(speeds) < noiseMinWindows {
		return res
	}
	slope, _, _ := dsp.LinReg(speeds, sds)
	res.Valid = true
	res.Corr = dsp.Pearson(speeds, sds)
	res.Slope = slope
	res.Windows = len(speeds)
	return res
}
