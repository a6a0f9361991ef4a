// SPDX-License-Identifier: MIT

package analysis

import (
	"math"

	"github.com/pointerlabs/clnp/internal/dsp"
)

const (
	tremorBandLowHz   = 8
	tremorBandHighHz  = 12
	tremorFloorHz     = 1
	tremorMinSamples  = 64
	cursorResampleCap = 120
	accelResampleCap  = 100
	accelMinRateHz    = 20
	accelRateWindow   = 500
)

// bandRatio sums spectral power in the physiological tremor band and divides
// by everything above the drift floor.
func bandRatio(freqs, power []float64) (ratio, peakFreq float64, ok bool) {
	var total, band, peakPow float64
	for i, f := range freqs {
		if f <= tremorFloorHz {
			continue
		}
		total += power[i]
		if f >= tremorBandLowHz && f <= tremorBandHighHz {
			band += power[i]
			if power[i] > peakPow {
				peakPow = power[i]
				peakFreq = f
			}
		}
	}
	if total <= 0 {
		return 0, 0, false
	}
	return band / total, peakFreq, true
}

// tremorInSeries detrends a uniformly sampled series and measures its
// tremor-band fraction.
func tremorInSeries(vals []float64, rate float64) TremorResult {
	res := TremorResult{}
	if len(vals) < tremorMinSamples || rate <= 0 {
		return res
	}
	window := int(rate / 3)
	trend := dsp.MovingAverage(vals, window)
	detr := make([]float64, len(vals))
	for i := range vals {
		detr[i] = vals[i] - trend[i]
	}
	freqs, power := dsp.PSD(detr, rate)
	ratio, peak, ok := bandRatio(freqs, power)
	if !ok {
		return res
	}
	res.Valid = true
	res.Ratio = ratio
	res.PeakFreqHz = peak
	return res
}

// analyzeCursorTremor measures tremor in the cursor speed profile. The series
// is resampled to a uniform grid first; capture rates above 120 Hz carry no
// extra tremor information and only stretch the FFT.
func analyzeCursorTremor(s *series) TremorResult {
	if len(s.ts) < tremorMinSamples || s.rate <= 0 {
		return TremorResult{}
	}
	rate := math.Min(s.rate, cursorResampleCap)
	grid, rx := dsp.Resample(s.ts, s.x, rate)
	_, ry := dsp.Resample(s.ts, s.y, rate)
	if len(grid) < 2 || len(rx) != len(ry) {
		return TremorResult{}
	}
	_, speed := dsp.Velocity(grid, rx, ry)
	return tremorInSeries(speed, rate)
}

// analyzeAccelTremor measures tremor in the accelerometer magnitude. Devices
// reporting below 20 Hz cannot resolve the band and are skipped.
func analyzeAccelTremor(accel []AccelSample) TremorResult {
	if len(accel) < tremorMinSamples {
		return TremorResult{}
	}
	ts := make([]float64, len(accel))
	mag := make([]float64, len(accel))
	for i, a := range accel {
		ts[i] = a.T
		mag[i] = math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
	}
	rate := estimateRate(ts, accelRateWindow)
	if rate < accelMinRateHz {
		return TremorResult{}
	}
	rate = math.Min(rate, accelResampleCap)
	_, rm := dsp.Resample(ts, mag, rate)
	return tremorInSeries(rm, rate)
}
