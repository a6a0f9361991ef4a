// SPDX-License-Identifier: MIT

package challenge

// View is the client-facing challenge description. It carries everything a
// client needs to run the task and nothing the analysis depends on being
// secret: no target count, no per-flash target flags, no scoring parameters.
type View struct {
	Mode string `json:"mode"`

	FreeMoveDurationMs float64 `json:"freeMoveDuration,omitempty"`
	TrackingDurationMs float64 `json:"trackingDuration,omitempty"`
	DualTaskDurationMs float64 `json:"dualtaskDuration,omitempty"`

	Path    *PathView   `json:"path,omitempty"`
	Probes  []ProbeView `json:"probes"`
	Pulses  []PulseView `json:"pulses"`
	CogTask *CogView    `json:"cogTask,omitempty"`
}

// PathView mirrors PathSpec on the wire.
type PathView struct {
	FreqX   float64 `json:"freqX"`
	FreqY   float64 `json:"freqY"`
	Phase   float64 `json:"phase"`
	Padding float64 `json:"padding"`
}

// ProbeView mirrors Probe on the wire.
type ProbeView struct {
	Freq        float64 `json:"freq"`
	AmpX        float64 `json:"ampX"`
	AmpY        float64 `json:"ampY"`
	PhaseOffset float64 `json:"phaseOffset"`
}

// PulseView mirrors Pulse on the wire. Standalone pulses carry offset,
// embed pulses carry hoverTime.
type PulseView struct {
	OffsetMs    float64 `json:"offset,omitempty"`
	HoverTimeMs float64 `json:"hoverTime,omitempty"`
	AmpX        float64 `json:"ampX"`
	AmpY        float64 `json:"ampY"`
	HoldMs      float64 `json:"hold"`
	ReturnMs    float64 `json:"return"`
}

// CogView is the client-facing cognitive task: flash schedule and the color
// to count, without the expected answer.
type CogView struct {
	TargetColor string      `json:"targetColor"`
	Colors      []string    `json:"colors"`
	Flashes     []FlashView `json:"flashes"`
}

// FlashView mirrors Flash on the wire, minus the target flag.
type FlashView struct {
	TimeMs float64 `json:"time"`
	Color  string  `json:"color"`
}

// ClientView projects a challenge onto its client-facing shape.
func ClientView(c *Challenge) View {
	v := View{
		Mode:               string(c.Mode),
		FreeMoveDurationMs: c.FreeMoveDurationMs,
		TrackingDurationMs: c.TrackingDurationMs,
		DualTaskDurationMs: c.DualTaskDurationMs,
		Probes:             make([]ProbeView, len(c.Probes)),
		Pulses:             make([]PulseView, len(c.Pulses)),
	}

	if c.Mode == ModeStandalone {
		v.Path = &PathView{
			FreqX:   c.Path.FreqX,
			FreqY:   c.Path.FreqY,
			Phase:   c.Path.Phase,
			Padding: c.Path.Padding,
		}
	}

	for i, p := range c.Probes {
		v.Probes[i] = ProbeView{
			Freq:        p.Freq,
			AmpX:        p.AmpX,
			AmpY:        p.AmpY,
			PhaseOffset: p.PhaseOffset,
		}
	}
	for i, p := range c.Pulses {
		v.Pulses[i] = PulseView{
			OffsetMs:    p.OffsetMs,
			HoverTimeMs: p.HoverTimeMs,
			AmpX:        p.AmpX,
			AmpY:        p.AmpY,
			HoldMs:      p.HoldMs,
			ReturnMs:    p.ReturnMs,
		}
	}

	if c.Cog != nil {
		cog := &CogView{
			TargetColor: c.Cog.TargetColor,
			Colors:      c.Cog.Colors,
			Flashes:     make([]FlashView, len(c.Cog.Flashes)),
		}
		for i, f := range c.Cog.Flashes {
			cog.Flashes[i] = FlashView{TimeMs: f.TimeMs, Color: f.Color}
		}
		v.CogTask = cog
	}
	return v
}
