// SPDX-License-Identifier: MIT

package scoring

import (
	"math"

	"github.com/pointerlabs/clnp/internal/analysis"
)

// Verdict strings and classes, exactly as emitted to clients.
const (
	ClassBiological    = "BIOLOGICAL"
	ClassUncertain     = "UNCERTAIN"
	ClassNonBiological = "NON_BIOLOGICAL"

	VerdictBiological    = "BIOLOGICAL CONTROLLER DETECTED"
	VerdictUncertain     = "VERIFICATION UNCERTAIN"
	VerdictNonBiological = "NON-BIOLOGICAL CONTROLLER SUSPECTED"
)

// Metric is one scored evidence source as reported to clients and the
// session log.
type Metric struct {
	Valid    bool               `json:"valid"`
	Score    float64            `json:"score"`
	Features map[string]float64 `json:"features,omitempty"`
}

// Outcome is the scored session.
type Outcome struct {
	Score        float64           `json:"score"`
	Verdict      string            `json:"verdict"`
	VerdictClass string            `json:"verdictClass"`
	ValidMetrics int               `json:"validMetrics"`
	Verified     bool              `json:"verified"`
	Metrics      map[string]Metric `json:"metrics"`
}

// Scorer applies one immutable Config.
type Scorer struct {
	cfg Config
}

func New(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score weighs every valid metric and maps the aggregate to a verdict.
// Invalid metrics contribute neither weight nor score.
func (s *Scorer) Score(res *analysis.Results) Outcome {
	metrics := map[string]Metric{
		"transferFn":      scoreTransfer(res.Transfer),
		"tremor":          scoreTremor(res.CursorTremor, res.AccelTremor),
		"oneOverF":        scoreOneOverF(res.OneOverF),
		"signalDepNoise":  scoreNoiseCorr(res.NoiseCorr),
		"crossAxis":       scoreCrossAxis(res.CrossAxis, res.InputMethod),
		"pulseResponse":   scorePulse(res.Pulse),
		"cogInterference": scoreCog(res.Cog),
		"minJerk":         scoreMinJerk(res.MinJerk),
	}

	weights := map[string]float64{
		"transferFn":      s.cfg.Weights.TransferFn,
		"tremor":          s.cfg.Weights.Tremor,
		"oneOverF":        s.cfg.Weights.OneOverF,
		"signalDepNoise":  s.cfg.Weights.SignalDepNoise,
		"crossAxis":       s.cfg.Weights.CrossAxis,
		"pulseResponse":   s.cfg.Weights.PulseResponse,
		"cogInterference": s.cfg.Weights.CogInterference,
		"minJerk":         s.cfg.Weights.MinJerk,
	}

	var sum, wsum float64
	valid := 0
	for name, m := range metrics {
		if !m.Valid {
			continue
		}
		valid++
		w := weights[name]
		sum += w * m.Score
		wsum += w
	}

	out := Outcome{
		ValidMetrics: valid,
		Metrics:      metrics,
	}
	if wsum > 0 {
		out.Score = sum / wsum
	}
	out.Verdict, out.VerdictClass = s.cfg.Verdict(out.Score)
	out.Verified = out.Score >= s.cfg.Thresholds.EmbedVerified
	return out
}

// Verdict maps an aggregate score to the published verdict pair.
func (c Config) Verdict(score float64) (verdict, class string) {
	switch {
	case score >= c.Thresholds.Biological:
		return VerdictBiological, ClassBiological
	case score >= c.Thresholds.Uncertain:
		return VerdictUncertain, ClassUncertain
	default:
		return VerdictNonBiological, ClassNonBiological
	}
}

func scoreTransfer(r analysis.TransferResult) Metric {
	m := Metric{Valid: r.Valid}
	if !r.Valid {
		return m
	}
	if r.HasRolloff {
		m.Score += 0.7
	}
	if r.MeanDelayMs > 50 {
		m.Score += 0.15
	}
	if r.DelayPlausible {
		m.Score += 0.15
	}
	m.Features = map[string]float64{
		"meanDelayMs":    r.MeanDelayMs,
		"coherentProbes": float64(r.CoherentProbes),
		"hasRolloff":     boolFeature(r.HasRolloff),
		"delayPlausible": boolFeature(r.DelayPlausible),
	}
	return m
}

// scoreTremor blends the cursor and accelerometer channels; either one alone
// carries the metric.
func scoreTremor(cursor, accel analysis.TremorResult) Metric {
	m := Metric{Valid: cursor.Valid || accel.Valid}
	if !m.Valid {
		return m
	}
	m.Features = map[string]float64{}
	best := 0.0
	if cursor.Valid {
		sc := tremorSub(cursor)
		best = math.Max(best, sc)
		m.Features["cursorRatio"] = cursor.Ratio
		m.Features["cursorPeakHz"] = cursor.PeakFreqHz
	}
	if accel.Valid {
		sc := tremorSub(accel)
		best = math.Max(best, sc)
		m.Features["accelRatio"] = accel.Ratio
		m.Features["accelPeakHz"] = accel.PeakFreqHz
	}
	m.Score = best
	return m
}

func tremorSub(r analysis.TremorResult) float64 {
	sc := math.Min(1, r.Ratio/0.015)
	if r.PeakFreqHz >= 7 && r.PeakFreqHz <= 13 {
		sc += 0.2
	}
	return math.Min(1, sc)
}

func scoreOneOverF(r analysis.OneOverFResult) Metric {
	m := Metric{Valid: r.Valid}
	if !r.Valid {
		return m
	}
	m.Score = rangeScore(r.Slope, -2.5, 0, 3)
	m.Features = map[string]float64{
		"slope":  r.Slope,
		"r2":     r.R2,
		"points": float64(r.Points),
	}
	return m
}

func scoreNoiseCorr(r analysis.NoiseCorrResult) Metric {
	m := Metric{Valid: r.Valid}
	if !r.Valid {
		return m
	}
	m.Score = clamp01(r.Corr / 0.4)
	m.Features = map[string]float64{
		"corr":    r.Corr,
		"slope":   r.Slope,
		"windows": float64(r.Windows),
	}
	return m
}

// scoreCrossAxis expects a little vertical leakage, more on touch devices
// where the whole hand moves.
func scoreCrossAxis(r analysis.CrossAxisResult, inputMethod string) Metric {
	m := Metric{Valid: r.Valid}
	if !r.Valid {
		return m
	}
	idealMax, denom := 2.0, 0.3
	if inputMethod == "touch" {
		idealMax, denom = 8.0, 1.0
	}
	sc := math.Min(1, r.Mean/denom)
	if r.Mean >= idealMax {
		sc /= 2
	}
	m.Score = sc
	m.Features = map[string]float64{
		"mean":   r.Mean,
		"sd":     r.SD,
		"pulses": float64(r.Pulses),
	}
	return m
}

func scorePulse(r analysis.PulseResult) Metric {
	m := Metric{Valid: r.Valid}
	if !r.Valid {
		return m
	}
	m.Score = 0.6*windowScore(r.LatencyMeanMs, 120, 380) +
		0.4*windowScore(r.LatencyStdMs, 15, 180)
	m.Features = map[string]float64{
		"latencyMeanMs": r.LatencyMeanMs,
		"latencyStdMs":  r.LatencyStdMs,
		"overshootMean": r.OvershootMean,
		"detected":      float64(r.Detected),
	}
	return m
}

func scoreCog(r analysis.CogResult) Metric {
	m := Metric{Valid: r.Valid}
	if !r.Valid {
		return m
	}
	maxEffect := math.Max(r.TargetIncrease, r.NonTargetIncrease)
	sc := 0.55 * clamp01(maxEffect/0.08)
	if r.AttentionEffect > 0.02 {
		sc += 0.2
	}
	if r.Answered {
		sc += 0.1
		if r.Answer != nil && math.Abs(float64(*r.Answer-r.TrueCount)) <= 1 {
			sc += 0.15
		}
	}
	m.Score = math.Min(1, sc)
	m.Features = map[string]float64{
		"targetIncrease":    r.TargetIncrease,
		"nonTargetIncrease": r.NonTargetIncrease,
		"attentionEffect":   r.AttentionEffect,
		"answered":          boolFeature(r.Answered),
	}
	return m
}

func scoreMinJerk(r analysis.MinJerkResult) Metric {
	m := Metric{Valid: r.Valid}
	if !r.Valid {
		return m
	}
	m.Score = clamp01(r.MeanR2 / 0.6)
	m.Features = map[string]float64{
		"meanR2": r.MeanR2,
		"fits":   float64(r.Fits),
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// rangeScore rises inside [lo, hi] and falls outside, with steepness k.
func rangeScore(x, lo, hi, k float64) float64 {
	return sigmoid(k*(x-lo)) * sigmoid(-k*(x-hi))
}

// windowScore is a rangeScore whose steepness is normalized to the window
// width, so narrow and wide plausibility windows behave alike.
func windowScore(x, lo, hi float64) float64 {
	return rangeScore(x, lo, hi, 10/(hi-lo))
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
