// SPDX-License-Identifier: MIT

package analysis

// TransferResult holds per-probe transfer-function estimates.
type TransferResult struct {
	Valid          bool      `json:"valid"`
	Gains          []float64 `json:"gains,omitempty"`
	PhasesRad      []float64 `json:"phasesRad,omitempty"`
	Coherences     []float64 `json:"coherences,omitempty"`
	HasRolloff     bool      `json:"hasRolloff"`
	CoherentProbes int       `json:"coherentProbes"`
	MeanDelayMs    float64   `json:"meanDelayMs"`
	DelayPlausible bool      `json:"delayPlausible"`
}

// TremorResult reports the 8-12 Hz band fraction of a velocity spectrum.
type TremorResult struct {
	Valid      bool    `json:"valid"`
	Ratio      float64 `json:"ratio"`
	PeakFreqHz float64 `json:"peakFreqHz"`
}

// OneOverFResult is the log-log slope of the error-velocity spectrum.
type OneOverFResult struct {
	Valid  bool    `json:"valid"`
	Slope  float64 `json:"slope"`
	R2     float64 `json:"r2"`
	Points int     `json:"points"`
}

// NoiseCorrResult is the windowed speed / error-variability correlation.
type NoiseCorrResult struct {
	Valid   bool    `json:"valid"`
	Corr    float64 `json:"corr"`
	Slope   float64 `json:"slope"`
	Windows int     `json:"windows"`
}

// CrossAxisResult summarizes vertical leakage of horizontal pulse corrections.
type CrossAxisResult struct {
	Valid  bool    `json:"valid"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	Pulses int     `json:"pulses"`
}

// PulseFit is the corrected response of one detected pulse, kept for the
// movement-profile fit.
type PulseFit struct {
	PulseIdx  int
	LatencyMs float64
	PeakMs    float64
	Peak      float64
	Dts       []float64
	Corr      []float64
}

// PulseResult aggregates correction onsets across pulses.
type PulseResult struct {
	Valid         bool       `json:"valid"`
	Detected      int        `json:"detected"`
	LatencyMeanMs float64    `json:"latencyMeanMs"`
	LatencyStdMs  float64    `json:"latencyStdMs"`
	OvershootMean float64    `json:"overshootMean"`
	Fits          []PulseFit `json:"-"`
}

// CogResult compares tracking error before and after distractor flashes.
type CogResult struct {
	Valid             bool    `json:"valid"`
	TargetIncrease    float64 `json:"targetIncrease"`
	NonTargetIncrease float64 `json:"nonTargetIncrease"`
	AttentionEffect   float64 `json:"attentionEffect"`
	TrueCount         int     `json:"trueCount"`
	Answer            *int    `json:"answer,omitempty"`
	Answered          bool    `json:"answered"`
}

// MinJerkResult is the mean fit of pulse corrections to a smooth reach profile.
type MinJerkResult struct {
	Valid  bool    `json:"valid"`
	MeanR2 float64 `json:"meanR2"`
	Fits   int     `json:"fits"`
}

// Results bundles every pipeline output for one session.
type Results struct {
	Mode        string `json:"mode"`
	SampleCount int    `json:"sampleCount"`
	SampleRate  float64 `json:"sampleRate"`
	InputMethod string `json:"inputMethod,omitempty"`

	Transfer     TransferResult `json:"transferFn"`
	CursorTremor TremorResult   `json:"cursorTremor"`
	AccelTremor  TremorResult   `json:"accelTremor"`
	OneOverF     OneOverFResult `json:"oneOverF"`
	NoiseCorr    NoiseCorrResult `json:"signalDepNoise"`
	CrossAxis    CrossAxisResult `json:"crossAxis"`
	Pulse        PulseResult    `json:"pulseResponse"`
	Cog          CogResult      `json:"cogInterference"`
	MinJerk      MinJerkResult  `json:"minJerk"`

	// Embed-only plausibility evidence.
	HoverTimeMs     float64 `json:"hoverTimeMs,omitempty"`
	UniqueElements  int     `json:"uniqueElements,omitempty"`
	PulsesTriggered int     `json:"pulsesTriggered,omitempty"`
	Plausible       bool    `json:"plausible,omitempty"`
}

// ValidCount reports how many pipelines produced a usable metric.
func (r *Results) ValidCount() int {
	n := 0
	for _, v := range []bool{
		r.Transfer.Valid, r.CursorTremor.Valid, r.AccelTremor.Valid,
		r.OneOverF.Valid, r.NoiseCorr.Valid, r.CrossAxis.Valid,
		r.Pulse.Valid, r.Cog.Valid, r.MinJerk.Valid,
	} {
		if v {
			n++
		}
	}
	return n
}
