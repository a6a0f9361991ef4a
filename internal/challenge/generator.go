// SPDX-License-Identifier: MIT

package challenge

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"
)

// Fixed schedule parameters. Amplitudes and frequencies are drawn per
// challenge; these bounds are structural and shared with the reconstructor's
// assumptions (pulse offsets stay inside the tracking window).
const (
	freeMoveDurationMs = 5000

	trackingMinMs = 18000
	trackingMaxMs = 22000
	dualtaskMinMs = 10000
	dualtaskMaxMs = 14000

	probeCount = 5

	pulseMinGapMs      = 2800
	pulseReturnMs      = 200
	embedPulseReturnMs = 150

	// Embed pulses are scheduled over a fixed hover budget because there is
	// no tracking clock to partition.
	embedHoverBudgetMs  = 12000
	embedPulseMinGapMs  = 1500
	flashCount          = 8
	pathPhaseBase       = math.Pi / 4
	pathPhaseJitter     = 0.5
	probePhaseBase      = math.Pi / 3
	probePhaseJitter    = 0.3
	flashTimeJitterFrac = 0.15
)

// probePool holds the probe frequencies: prime multiples of 0.05 Hz, which
// keeps every pair non-harmonic. Five are drawn per challenge, ascending.
var probePool = []float64{
	0.35, 0.55, 0.65, 0.85, 0.95, 1.15, 1.45, 1.55, 1.85,
	2.05, 2.15, 2.35, 2.65, 2.95, 3.05, 3.35, 3.55, 3.65,
}

// pathPairs are the rational Lissajous frequency pairs (Hz). Ratios:
// 2:3, 3:4, 3:5, 4:5, 5:6, 2:5, 5:7.
var pathPairs = [][2]float64{
	{0.10, 0.15},
	{0.12, 0.16},
	{0.09, 0.15},
	{0.12, 0.15},
	{0.10, 0.12},
	{0.06, 0.15},
	{0.10, 0.14},
}

// flashPalette is the fixed three-color palette of the cognitive task.
var flashPalette = []string{"#ef4444", "#22c55e", "#3b82f6"}

// Generator draws challenge parameters. Safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand

	standaloneTTL time.Duration
	embedTTL      time.Duration
	now           func() time.Time
}

// NewGenerator returns a Generator with a crypto-seeded parameter stream.
func NewGenerator(standaloneTTL, embedTTL time.Duration) *Generator {
	var seed [16]byte
	_, _ = crand.Read(seed[:])
	hi := binary.LittleEndian.Uint64(seed[0:8])
	lo := binary.LittleEndian.Uint64(seed[8:16])
	return &Generator{
		rng:           rand.New(rand.NewPCG(hi, lo)),
		standaloneTTL: standaloneTTL,
		embedTTL:      embedTTL,
		now:           time.Now,
	}
}

// NewSeededGenerator returns a deterministic Generator for tests.
func NewSeededGenerator(seed uint64, standaloneTTL, embedTTL time.Duration) *Generator {
	return &Generator{
		rng:           rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		standaloneTTL: standaloneTTL,
		embedTTL:      embedTTL,
		now:           time.Now,
	}
}

// NewID returns a 128-bit random challenge ID as 32 hex characters.
func NewID() (string, error) {
	var buf [16]byte
	if _, err := crand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("generate challenge id: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

// Standalone draws a full-page challenge.
func (g *Generator) Standalone() (*Challenge, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	tracking := g.uniform(trackingMinMs, trackingMaxMs)
	dualtask := g.uniform(dualtaskMinMs, dualtaskMaxMs)

	ch := &Challenge{
		ID:                 id,
		Mode:               ModeStandalone,
		IssuedAt:           now,
		ExpiresAt:          now.Add(g.standaloneTTL),
		FreeMoveDurationMs: freeMoveDurationMs,
		TrackingDurationMs: tracking,
		DualTaskDurationMs: dualtask,
		Path:               g.drawPath(),
		Probes:             g.drawProbes(false),
		Pulses:             g.drawStandalonePulses(tracking),
		Cog:                g.drawCogTask(dualtask),
	}
	return ch, nil
}

// Embed draws a sub-perceptual hover challenge.
func (g *Generator) Embed() (*Challenge, error) {
	id, err := NewID()
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	ch := &Challenge{
		ID:        id,
		Mode:      ModeEmbed,
		IssuedAt:  now,
		ExpiresAt: now.Add(g.embedTTL),
		Probes:    g.drawProbes(true),
		Pulses:    g.drawEmbedPulses(),
	}
	return ch, nil
}

func (g *Generator) drawPath() PathSpec {
	pair := pathPairs[g.rng.IntN(len(pathPairs))]
	return PathSpec{
		FreqX:   pair[0],
		FreqY:   pair[1],
		Phase:   pathPhaseBase + g.uniform(-pathPhaseJitter, pathPhaseJitter),
		Padding: 0.30,
	}
}

func (g *Generator) drawProbes(embed bool) []Probe {
	idx := g.rng.Perm(len(probePool))[:probeCount]
	freqs := make([]float64, probeCount)
	for i, j := range idx {
		freqs[i] = probePool[j]
	}
	slices.Sort(freqs)

	probes := make([]Probe, probeCount)
	for i, f := range freqs {
		p := Probe{
			Freq:        f,
			PhaseOffset: probePhaseBase + g.uniform(-probePhaseJitter, probePhaseJitter),
		}
		if embed {
			p.AmpX = g.uniform(0.15, 0.35)
			p.AmpY = g.uniform(0.05, 0.15)
		} else {
			p.AmpX = float64(3 + g.rng.IntN(5)) // 3..7 px
			p.AmpY = float64(1 + g.rng.IntN(3)) // 1..3 px
		}
		probes[i] = p
	}
	return probes
}

func (g *Generator) drawStandalonePulses(trackingMs float64) []Pulse {
	count := 4 + g.rng.IntN(4) // 4..7
	bucket := (trackingMs - pulseMinGapMs) / float64(count)
	pulses := make([]Pulse, count)
	for i := range pulses {
		amp := float64(18 + g.rng.IntN(9)) // 18..26 px
		if i%3 == 2 {
			amp = -amp
		}
		pulses[i] = Pulse{
			OffsetMs: pulseMinGapMs + float64(i)*bucket + g.uniform(0, 0.6*bucket),
			AmpX:     amp,
			HoldMs:   g.uniform(500, 700),
			ReturnMs: pulseReturnMs,
		}
	}
	return pulses
}

func (g *Generator) drawEmbedPulses() []Pulse {
	count := 4 + g.rng.IntN(2) // 4..5
	bucket := (embedHoverBudgetMs - embedPulseMinGapMs) / float64(count)
	pulses := make([]Pulse, count)
	for i := range pulses {
		amp := g.uniform(1.0, 2.0)
		if i%3 == 2 {
			amp = -amp
		}
		pulses[i] = Pulse{
			HoverTimeMs: embedPulseMinGapMs + float64(i)*bucket + g.uniform(0, 0.6*bucket),
			AmpX:        amp,
			HoldMs:      g.uniform(400, 600),
			ReturnMs:    embedPulseReturnMs,
		}
	}
	return pulses
}

func (g *Generator) drawCogTask(dualtaskMs float64) *CogTask {
	colors := make([]string, len(flashPalette))
	copy(colors, flashPalette)
	g.rng.Shuffle(len(colors), func(i, j int) { colors[i], colors[j] = colors[j], colors[i] })

	target := colors[g.rng.IntN(len(colors))]
	targetCount := 2 + g.rng.IntN(4) // 2..5

	var distractors []string
	for _, c := range colors {
		if c != target {
			distractors = append(distractors, c)
		}
	}

	flashes := make([]Flash, 0, flashCount)
	for i := 0; i < targetCount; i++ {
		flashes = append(flashes, Flash{Color: target, IsTarget: true})
	}
	for i := targetCount; i < flashCount; i++ {
		flashes = append(flashes, Flash{Color: distractors[g.rng.IntN(len(distractors))]})
	}
	g.rng.Shuffle(len(flashes), func(i, j int) { flashes[i], flashes[j] = flashes[j], flashes[i] })

	gap := dualtaskMs / (flashCount + 1)
	for i := range flashes {
		jitter := g.uniform(-flashTimeJitterFrac*gap, flashTimeJitterFrac*gap)
		flashes[i].TimeMs = gap*float64(i+1) + jitter
	}

	return &CogTask{
		TargetColor: target,
		TargetCount: targetCount,
		Colors:      colors,
		Flashes:     flashes,
	}
}

// uniform draws from [lo, hi). Callers hold g.mu.
func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}
