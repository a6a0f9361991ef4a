// SPDX-License-Identifier: MIT

package analysis

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tremorCursorSeries drifts steadily so the speed stays positive, with a
// superimposed oscillation at freqHz showing up directly in the speed trace.
func tremorCursorSeries(rate, durMs, freqHz, ampPx float64) *series {
	s := &series{rate: rate}
	step := 1000 / rate
	n := int(durMs / step)
	for i := 0; i < n; i++ {
		t := float64(i) * step
		x := 400 + 0.3*t + ampPx*math.Sin(2*math.Pi*freqHz*t/1000)
		s.ts = append(s.ts, t)
		s.x = append(s.x, x)
		s.y = append(s.y, 300)
		s.smoothX = append(s.smoothX, 400)
		s.pertX = append(s.pertX, 0)
		s.tx = append(s.tx, x)
		s.ty = append(s.ty, 300)
		s.ex = append(s.ex, 0)
		s.ey = append(s.ey, 0)
	}
	return s
}

func TestCursorTremorFindsPhysiologicalBand(t *testing.T) {
	s := tremorCursorSeries(100, 20000, 9.3, 2)
	res := analyzeCursorTremor(s)

	require.True(t, res.Valid)
	assert.Greater(t, res.Ratio, 0.3)
	assert.InDelta(t, 9.3, res.PeakFreqHz, 0.3)
}

func TestCursorTremorLowForWhiteJitter(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 17))
	s := &series{rate: 100}
	step := 10.0
	for i := 0; i < 2000; i++ {
		t := float64(i) * step
		x := 400 + 0.3*t + 2*(rng.Float64()-0.5)
		s.ts = append(s.ts, t)
		s.x = append(s.x, x)
		s.y = append(s.y, 300)
		s.smoothX = append(s.smoothX, 400)
		s.pertX = append(s.pertX, 0)
		s.tx = append(s.tx, x)
		s.ty = append(s.ty, 300)
		s.ex = append(s.ex, 0)
		s.ey = append(s.ey, 0)
	}
	res := analyzeCursorTremor(s)

	require.True(t, res.Valid)
	assert.Less(t, res.Ratio, 0.25)
}

func TestAccelTremorPeaksAtOscillation(t *testing.T) {
	var accel []AccelSample
	for i := 0; i < 1500; i++ {
		tm := float64(i) * 20 // 50 Hz
		accel = append(accel, AccelSample{
			T: tm,
			X: 0.02 * math.Sin(2*math.Pi*10*tm/1000),
			Y: 0.01,
			Z: 9.81 + 0.05*math.Sin(2*math.Pi*10*tm/1000),
		})
	}
	res := analyzeAccelTremor(accel)

	require.True(t, res.Valid)
	assert.InDelta(t, 10, res.PeakFreqHz, 0.3)
	assert.Greater(t, res.Ratio, 0.3)
}

func TestAccelTremorRejectsSlowSensors(t *testing.T) {
	var accel []AccelSample
	for i := 0; i < 200; i++ {
		accel = append(accel, AccelSample{T: float64(i) * 100, Z: 9.81}) // 10 Hz
	}
	res := analyzeAccelTremor(accel)
	assert.False(t, res.Valid)
}

func TestAccelTremorRejectsShortCapture(t *testing.T) {
	accel := []AccelSample{{T: 0, Z: 9.81}, {T: 20, Z: 9.81}}
	res := analyzeAccelTremor(accel)
	assert.False(t, res.Valid)
}
