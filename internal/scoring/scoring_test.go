// SPDX-License-Identifier: MIT

package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointerlabs/clnp/internal/analysis"
	"github.com/pointerlabs/clnp/internal/scoring"
)

func TestVerdictThresholds(t *testing.T) {
	cfg := scoring.Default()

	verdict, class := cfg.Verdict(0.65)
	assert.Equal(t, scoring.VerdictBiological, verdict)
	assert.Equal(t, scoring.ClassBiological, class)

	verdict, class = cfg.Verdict(0.64)
	assert.Equal(t, scoring.VerdictUncertain, verdict)
	assert.Equal(t, scoring.ClassUncertain, class)

	verdict, class = cfg.Verdict(0.35)
	assert.Equal(t, scoring.VerdictUncertain, verdict)
	assert.Equal(t, scoring.ClassUncertain, class)

	verdict, class = cfg.Verdict(0.34)
	assert.Equal(t, scoring.VerdictNonBiological, verdict)
	assert.Equal(t, scoring.ClassNonBiological, class)
}

func fullTransfer() analysis.TransferResult {
	return analysis.TransferResult{
		Valid:          true,
		HasRolloff:     true,
		MeanDelayMs:    180,
		DelayPlausible: true,
		CoherentProbes: 5,
	}
}

func TestScoreExcludesInvalidMetrics(t *testing.T) {
	s := scoring.New(scoring.Default())

	res := &analysis.Results{Transfer: fullTransfer()}
	out := s.Score(res)

	assert.Equal(t, 1, out.ValidMetrics)
	assert.InDelta(t, 1.0, out.Score, 1e-9, "single valid metric carries the whole weight")
	assert.Equal(t, scoring.ClassBiological, out.VerdictClass)
	require.Contains(t, out.Metrics, "tremor")
	assert.False(t, out.Metrics["tremor"].Valid)
}

func TestScoreWeightsAcrossMetrics(t *testing.T) {
	s := scoring.New(scoring.Default())

	// Transfer scores 1.0 at weight 3.0, min-jerk 0.5 at weight 1.5.
	res := &analysis.Results{
		Transfer: fullTransfer(),
		MinJerk:  analysis.MinJerkResult{Valid: true, MeanR2: 0.3, Fits: 3},
	}
	out := s.Score(res)

	assert.Equal(t, 2, out.ValidMetrics)
	assert.InDelta(t, (3.0*1.0+1.5*0.5)/4.5, out.Score, 1e-9)
}

func TestNoValidMetricsScoresZero(t *testing.T) {
	s := scoring.New(scoring.Default())
	out := s.Score(&analysis.Results{})

	assert.Zero(t, out.ValidMetrics)
	assert.Zero(t, out.Score)
	assert.Equal(t, scoring.ClassNonBiological, out.VerdictClass)
	assert.False(t, out.Verified)
}

func TestTremorTakesBestChannel(t *testing.T) {
	s := scoring.New(scoring.Default())

	res := &analysis.Results{
		CursorTremor: analysis.TremorResult{Valid: true, Ratio: 0.003, PeakFreqHz: 9.2},
		AccelTremor:  analysis.TremorResult{Valid: true, Ratio: 0.02, PeakFreqHz: 10.1},
	}
	out := s.Score(res)

	m := out.Metrics["tremor"]
	require.True(t, m.Valid)
	assert.InDelta(t, 1.0, m.Score, 1e-9, "accelerometer channel saturates the metric")
	assert.Contains(t, m.Features, "cursorRatio")
	assert.Contains(t, m.Features, "accelRatio")

	res = &analysis.Results{
		CursorTremor: analysis.TremorResult{Valid: true, Ratio: 0.003, PeakFreqHz: 9.2},
	}
	out = s.Score(res)
	m = out.Metrics["tremor"]
	require.True(t, m.Valid)
	assert.InDelta(t, 0.4, m.Score, 1e-9, "0.2 band fraction plus 0.2 peak bonus")
}

func TestCrossAxisDeviceProfiles(t *testing.T) {
	s := scoring.New(scoring.Default())

	mouse := &analysis.Results{
		InputMethod: "mouse",
		CrossAxis:   analysis.CrossAxisResult{Valid: true, Mean: 0.15, Pulses: 3},
	}
	assert.InDelta(t, 0.5, s.Score(mouse).Metrics["crossAxis"].Score, 1e-9)

	robotic := &analysis.Results{
		InputMethod: "mouse",
		CrossAxis:   analysis.CrossAxisResult{Valid: true, Mean: 2.5, Pulses: 3},
	}
	assert.InDelta(t, 0.5, s.Score(robotic).Metrics["crossAxis"].Score, 1e-9,
		"implausibly large coupling is halved")

	touch := &analysis.Results{
		InputMethod: "touch",
		CrossAxis:   analysis.CrossAxisResult{Valid: true, Mean: 1.0, Pulses: 3},
	}
	assert.InDelta(t, 1.0, s.Score(touch).Metrics["crossAxis"].Score, 1e-9)
}

func TestCogScoreAdds(t *testing.T) {
	s := scoring.New(scoring.Default())

	answer := 3
	res := &analysis.Results{
		Cog: analysis.CogResult{
			Valid:             true,
			TargetIncrease:    0.08,
			NonTargetIncrease: 0.02,
			AttentionEffect:   0.06,
			TrueCount:         4,
			Answer:            &answer,
			Answered:          true,
		},
	}
	out := s.Score(res)
	assert.InDelta(t, 1.0, out.Metrics["cogInterference"].Score, 1e-9)

	res.Cog.Answer = nil
	res.Cog.Answered = false
	out = s.Score(res)
	assert.InDelta(t, 0.75, out.Metrics["cogInterference"].Score, 1e-9)
}

func TestPulseScoreOrdering(t *testing.T) {
	s := scoring.New(scoring.Default())

	score := func(mean, sd float64) float64 {
		res := &analysis.Results{
			Pulse: analysis.PulseResult{
				Valid: true, Detected: 3,
				LatencyMeanMs: mean, LatencyStdMs: sd,
			},
		}
		return s.Score(res).Metrics["pulseResponse"].Score
	}

	human := score(250, 60)
	machineFast := score(85, 4)
	machineSlow := score(600, 60)

	assert.Greater(t, human, 0.8)
	assert.Greater(t, human, machineFast)
	assert.Greater(t, human, machineSlow)
	assert.Less(t, machineFast, 0.5)
}

func TestEmbedVerifiedThreshold(t *testing.T) {
	s := scoring.New(scoring.Default())

	res := &analysis.Results{Transfer: fullTransfer()}
	out := s.Score(res)
	assert.True(t, out.Verified)

	res = &analysis.Results{
		Transfer: analysis.TransferResult{Valid: true, HasRolloff: false,
			MeanDelayMs: 60, DelayPlausible: true},
	}
	out = s.Score(res)
	assert.InDelta(t, 0.3, out.Score, 1e-9)
	assert.False(t, out.Verified)
}
