// SPDX-License-Identifier: MIT

package analysis

import (
	"math"
	"math/cmplx"

	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/dsp"
)

const (
	transferMinSamples   = 64
	transferEps          = 1e-12
	coherenceFloor       = 0.15
	delayPlausibleLowMs  = 30
	delayPlausibleHighMs = 500
)

// analyzeTransfer estimates gain, phase and coherence of the cursor response
// at each probe frequency. The input signal is the injected perturbation, the
// output is the horizontal cursor residual around the smooth path; phase lag
// of the output maps to a positive delay.
func analyzeTransfer(s *series, probes []challenge.Probe) TransferResult {
	res := TransferResult{}
	if len(s.ts) < transferMinSamples || s.rate <= 0 || len(probes) == 0 {
		return res
	}

	residual := make([]float64, len(s.x))
	for i := range s.x {
		residual[i] = s.x[i] - s.smoothX[i]
	}

	_, in := dsp.Resample(s.ts, s.pertX, s.rate)
	_, out := dsp.Resample(s.ts, residual, s.rate)
	if len(in) < transferMinSamples || len(out) < transferMinSamples {
		return res
	}
	if len(in) != len(out) {
		// Same timestamps feed both resamples, so the grids agree.
		n := min(len(in), len(out))
		in, out = in[:n], out[:n]
	}

	freqs, sxy, sxx, syy := dsp.CrossSpectrum(in, out, s.rate)
	if len(freqs) == 0 {
		return res
	}

	res.Gains = make([]float64, len(probes))
	res.PhasesRad = make([]float64, len(probes))
	res.Coherences = make([]float64, len(probes))

	var delaySum, cohSum float64
	for i, p := range probes {
		bin := dsp.NearestBin(freqs, p.Freq)
		if bin < 0 {
			continue
		}
		cross := sxy[bin]
		gain := cmplx.Abs(cross) / (sxx[bin] + transferEps)
		phase := math.Atan2(imag(cross), real(cross))
		coh := (real(cross)*real(cross) + imag(cross)*imag(cross)) /
			(sxx[bin]*syy[bin] + transferEps)

		res.Gains[i] = gain
		res.PhasesRad[i] = phase
		res.Coherences[i] = coh

		if coh > coherenceFloor {
			res.CoherentProbes++
			d := -phase / (2 * math.Pi * p.Freq) * 1000
			if d > 0 && d < 1000 {
				delaySum += d * coh
				cohSum += coh
			}
		}
	}

	// Biological controllers attenuate fast probes. Two consecutive drops
	// across the ascending frequency order count as rolloff.
	run := 0
	for i := 1; i < len(res.Gains); i++ {
		if res.Gains[i] < res.Gains[i-1] {
			run++
			if run >= 2 {
				res.HasRolloff = true
				break
			}
		} else {
			run = 0
		}
	}

	if cohSum > 0 {
		res.MeanDelayMs = delaySum / cohSum
		res.DelayPlausible = res.MeanDelayMs > delayPlausibleLowMs &&
			res.MeanDelayMs < delayPlausibleHighMs
	}
	res.Valid = true
	return res
}
