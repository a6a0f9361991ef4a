// SPDX-License-Identifier: MIT

package api

import (
	"bytes"
	"encoding/json"
	"math"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointerlabs/clnp/internal/admin"
	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/reconstruct"
	"github.com/pointerlabs/clnp/internal/scoring"
	"github.com/pointerlabs/clnp/internal/session"
	"github.com/pointerlabs/clnp/internal/store"
	"github.com/pointerlabs/clnp/internal/token"
)

const testAdminToken = "admin-secret"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Now()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testEnv wires a full server with a seeded generator and a controllable
// store clock, and drives it through the real router.
type testEnv struct {
	router  http.Handler
	clock   *fakeClock
	signer  *token.Signer
	logPath string
}

func newTestEnv(t *testing.T, seed uint64) *testEnv {
	t.Helper()

	clock := newFakeClock()
	signer := token.NewSigner([]byte("integration-test-secret"))
	logPath := filepath.Join(t.TempDir(), "sessions.jsonl")

	srv, err := New(Deps{
		Generator:  challenge.NewSeededGenerator(seed, 3*time.Minute, 6*time.Minute),
		Store:      store.NewWithClock(clock.Now),
		Signer:     signer,
		Scorer:     scoring.New(scoring.Default()),
		Sessions:   session.NewLogger(logPath),
		Stats:      admin.New(logPath, nil),
		AdminToken: testAdminToken,
	})
	require.NoError(t, err)

	return &testEnv{
		router:  srv.Router(),
		clock:   clock,
		signer:  signer,
		logPath: logPath,
	}
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, into any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), into), w.Body.String())
}

func (e *testEnv) issue(t *testing.T, path string) (challenge.View, string) {
	t.Helper()
	w := e.post(t, path, struct{}{})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp challengeResponse
	decodeJSON(t, w, &resp)
	require.True(t, resp.OK)
	require.NotEmpty(t, resp.Token)
	return resp.Challenge, resp.Token
}

type errorBody struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func requireError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	var eb errorBody
	decodeJSON(t, w, &eb)
	assert.False(t, eb.OK)
	assert.Equal(t, code, eb.Error)
}

// Wire shapes as a browser client would send them.

type pointerDot struct {
	T float64 `json:"t"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type capturePhases struct {
	TrackingStart float64 `json:"trackingStart"`
	DualtaskStart float64 `json:"dualtaskStart"`
	TestEnd       float64 `json:"testEnd"`
}

type captureCanvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type standaloneBody struct {
	Token       string        `json:"token"`
	Pointer     []pointerDot  `json:"pointer"`
	Phases      capturePhases `json:"phases"`
	Canvas      captureCanvas `json:"canvas"`
	InputMethod string        `json:"inputMethod,omitempty"`
	CogAnswer   *int          `json:"cogAnswer,omitempty"`
}

type hoverDot struct {
	T      float64 `json:"t"`
	HoverT float64 `json:"hoverT"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	El     int     `json:"el"`
}

type hoverRect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type hoverElement struct {
	Index int       `json:"index"`
	Rect  hoverRect `json:"rect"`
}

type embedBody struct {
	Token       string         `json:"token"`
	Pointer     []hoverDot     `json:"pointer"`
	Elements    []hoverElement `json:"elements"`
	InputMethod string         `json:"inputMethod,omitempty"`
}

// challengeFromView rebuilds the reconstruction parameters exactly as a real
// client derives them from the issued challenge JSON.
func challengeFromView(v challenge.View) *challenge.Challenge {
	ch := &challenge.Challenge{
		Mode:               challenge.Mode(v.Mode),
		FreeMoveDurationMs: v.FreeMoveDurationMs,
		TrackingDurationMs: v.TrackingDurationMs,
		DualTaskDurationMs: v.DualTaskDurationMs,
	}
	if v.Path != nil {
		ch.Path = challenge.PathSpec{
			FreqX:   v.Path.FreqX,
			FreqY:   v.Path.FreqY,
			Phase:   v.Path.Phase,
			Padding: v.Path.Padding,
		}
	}
	for _, p := range v.Probes {
		ch.Probes = append(ch.Probes, challenge.Probe{
			Freq:        p.Freq,
			AmpX:        p.AmpX,
			AmpY:        p.AmpY,
			PhaseOffset: p.PhaseOffset,
		})
	}
	for _, p := range v.Pulses {
		ch.Pulses = append(ch.Pulses, challenge.Pulse{
			OffsetMs:    p.OffsetMs,
			HoverTimeMs: p.HoverTimeMs,
			AmpX:        p.AmpX,
			AmpY:        p.AmpY,
			HoldMs:      p.HoldMs,
			ReturnMs:    p.ReturnMs,
		})
	}
	return ch
}

func standalonePhases(v challenge.View) capturePhases {
	ph := capturePhases{TrackingStart: 4000}
	ph.DualtaskStart = ph.TrackingStart + v.TrackingDurationMs
	ph.TestEnd = ph.DualtaskStart + v.DualTaskDurationMs
	return ph
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func minJerkShape(tau float64) float64 {
	tau = clampUnit(tau)
	return tau * tau * tau * (10 + tau*(-15+6*tau))
}

// pulseLevel is the normalized pulse displacement at dt ms past its start:
// full during the hold, quadratic ease during the return.
func pulseLevel(p challenge.Pulse, dt float64) float64 {
	if dt < 0 || dt >= p.HoldMs+p.ReturnMs {
		return 0
	}
	if dt < p.HoldMs {
		return 1
	}
	frac := (dt - p.HoldMs) / p.ReturnMs
	return 1 - frac*frac
}

// ouNoise integrates an Ornstein-Uhlenbeck velocity with a weak positional
// spring. The result is low-frequency-heavy positional noise, the shape a
// human motor plant produces, rather than flat white jitter.
type ouNoise struct {
	v, x float64
}

func (o *ouNoise) step(dt, sigma float64, rng *rand.Rand) float64 {
	const (
		tau    = 0.055
		spring = 2.5
	)
	o.v += -o.v*dt/tau + sigma*math.Sqrt(dt)*rng.NormFloat64()
	o.x += o.v*dt - o.x*spring*dt
	return o.x
}

// biologicalTracker synthesizes the capture of a human-like pursuit: the
// smooth path followed predictively, probes reproduced with increasing
// attenuation and a fixed visuomotor lag, pulses answered with min-jerk
// corrective reaches, 9 Hz tremor, speed-scaled motor noise, and a tracking
// error spike after counted flashes. Returns the samples and the flash count
// a client reads off the challenge.
func biologicalTracker(view challenge.View, cv captureCanvas, ph capturePhases, rng *rand.Rand) ([]pointerDot, int) {
	ch := challengeFromView(view)
	rcv := reconstruct.Canvas{Width: cv.Width, Height: cv.Height}
	rph := reconstruct.Phases{TrackingStart: ph.TrackingStart, DualTaskStart: ph.DualtaskStart}

	gains := []float64{0.95, 0.88, 0.78, 0.66, 0.52}
	const (
		step     = 1000.0 / 60
		probeLag = 120.0
		reachMs  = 240.0
	)

	latency := make([]float64, len(ch.Pulses))
	for i := range latency {
		latency[i] = 150 + 90*rng.Float64()
	}

	type flashEvent struct {
		at     float64
		target bool
	}
	var flashes []flashEvent
	answer := 0
	if view.CogTask != nil {
		for _, f := range view.CogTask.Flashes {
			isTarget := f.Color == view.CogTask.TargetColor
			if isTarget {
				answer++
			}
			flashes = append(flashes, flashEvent{at: ph.DualtaskStart + f.TimeMs, target: isTarget})
		}
	}

	var (
		samples        []pointerDot
		noiseX, noiseY ouNoise
		prevTX, prevTY float64
		havePrev       bool
	)
	for tms := ph.TrackingStart; tms < ph.TestEnd; tms += step {
		pt := reconstruct.At(ch, rcv, rph, tms)
		pathT := reconstruct.PathTime(ch, rph, tms)

		// Probe pursuit: attenuated per frequency, delayed by the lag.
		lagSec := (pathT - probeLag) / 1000
		var px, py float64
		for i, p := range ch.Probes {
			g := gains[i%len(gains)]
			omega := 2 * math.Pi * p.Freq * lagSec
			px += g * p.AmpX * math.Sin(omega+p.PhaseOffset)
			py += g * p.AmpY * math.Sin(omega)
		}

		// Pulse corrections: a min-jerk reach with slight overshoot,
		// launched one reaction time after the jump.
		var rx, ry float64
		for i, p := range ch.Pulses {
			dt := pathT - p.OffsetMs
			if dt < 0 || dt > p.HoldMs+p.ReturnMs+600 {
				continue
			}
			r := dt - latency[i]
			if r <= 0 {
				continue
			}
			level := pulseLevel(p, dt-0.85*latency[i])
			shape := minJerkShape(r/reachMs) +
				0.06*math.Pow(math.Sin(math.Pi*clampUnit(r/reachMs)), 3)
			rx += p.AmpX * level * shape
			ry += p.AmpY * level * shape
		}

		// Motor noise scales with target speed.
		speed := 0.0
		if havePrev {
			speed = math.Hypot(pt.TargetX-prevTX, pt.TargetY-prevTY) / (step / 1000)
		}
		prevTX, prevTY, havePrev = pt.TargetX, pt.TargetY, true
		sigma := 90 * (0.55 + 0.9*math.Min(speed/300, 2))
		nx := noiseX.step(step/1000, sigma, rng)
		ny := noiseY.step(step/1000, sigma, rng)

		// Counting a flash steals attention from tracking.
		var fx float64
		for _, fl := range flashes {
			dt := tms - fl.at
			if dt < 120 || dt >= 680 {
				continue
			}
			amp := 1.0
			if fl.target {
				amp = 5.5
			}
			fx += amp * math.Sin(math.Pi*(dt-120)/560)
		}

		x := pt.SmoothX + px + rx + nx + fx +
			1.1*math.Sin(2*math.Pi*9.1*tms/1000)
		y := pt.SmoothY + py + ry + ny + 0.6*fx +
			0.9*math.Cos(2*math.Pi*9.1*tms/1000)
		samples = append(samples, pointerDot{T: tms, X: x, Y: y})
	}
	return samples, answer
}

// scriptedReplayer follows the published target with machine precision:
// probes at slightly rising gain, pulses through a fixed 350 ms linear ramp,
// a constant aim offset, and nothing stochastic at all.
func scriptedReplayer(view challenge.View, cv captureCanvas, ph capturePhases) []pointerDot {
	ch := challengeFromView(view)
	rcv := reconstruct.Canvas{Width: cv.Width, Height: cv.Height}
	rph := reconstruct.Phases{TrackingStart: ph.TrackingStart, DualTaskStart: ph.DualtaskStart}

	const step = 1000.0 / 60
	var samples []pointerDot
	for tms := ph.TrackingStart; tms < ph.TestEnd; tms += step {
		pt := reconstruct.At(ch, rcv, rph, tms)
		pathT := reconstruct.PathTime(ch, rph, tms)

		sec := pathT / 1000
		var px, py float64
		for i, p := range ch.Probes {
			g := 1 + 0.03*float64(i)
			omega := 2 * math.Pi * p.Freq * sec
			px += g * p.AmpX * math.Sin(omega+p.PhaseOffset)
			py += g * p.AmpY * math.Sin(omega)
		}

		var rx, ry float64
		for _, p := range ch.Pulses {
			dt := pathT - p.OffsetMs
			if dt < 0 || dt >= p.HoldMs+p.ReturnMs {
				continue
			}
			ramp := math.Min(1, dt/350)
			level := pulseLevel(p, dt)
			rx += p.AmpX * level * ramp
			ry += p.AmpY * level * ramp
		}

		samples = append(samples, pointerDot{
			T: tms,
			X: pt.SmoothX + px + rx + 2.0,
			Y: pt.SmoothY + py + ry + 1.5,
		})
	}
	return samples
}

// hoverCapture walks the hover clock across three instrumented elements for
// nine seconds, tracking each element center plus the published hover
// perturbation.
func hoverCapture(view challenge.View, elements []hoverElement) []hoverDot {
	ch := challengeFromView(view)
	var samples []hoverDot
	for i := 0; i < 600; i++ {
		hover := float64(i) * 15
		el := int(hover / 3000)
		if el >= len(elements) {
			el = len(elements) - 1
		}
		rect := elements[el].Rect
		px, py, _, _ := reconstruct.EmbedPert(ch, hover)
		samples = append(samples, hoverDot{
			T:      2000 + hover,
			HoverT: hover,
			X:      rect.X + rect.W/2 + px + 0.8*math.Sin(2*math.Pi*8.6*hover/1000),
			Y:      rect.Y + rect.H/2 + py + 0.6*math.Cos(2*math.Pi*8.6*hover/1000),
			El:     el,
		})
	}
	return samples
}

func TestVerifyBiologicalTracker(t *testing.T) {
	env := newTestEnv(t, 42)
	view, tok := env.issue(t, "/api/challenge")

	cv := captureCanvas{Width: 800, Height: 600}
	ph := standalonePhases(view)
	rng := rand.New(rand.NewPCG(11, 12))
	pointer, count := biologicalTracker(view, cv, ph, rng)

	w := env.post(t, "/api/verify", standaloneBody{
		Token:       tok,
		Pointer:     pointer,
		Phases:      ph,
		Canvas:      cv,
		InputMethod: "mouse",
		CogAnswer:   &count,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp verifyResponse
	decodeJSON(t, w, &resp)
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, scoring.VerdictBiological, resp.Verdict)
	assert.Equal(t, scoring.ClassBiological, resp.VerdictClass)
	assert.GreaterOrEqual(t, resp.Score, 0.65)
	assert.GreaterOrEqual(t, resp.ValidMetrics, 6)
	assert.InDelta(t, 60, resp.SampleRate, 3)

	require.Contains(t, resp.Metrics, "transferFn")
	assert.InDelta(t, 1.0, resp.Metrics["transferFn"].Score, 0.01)
	require.Contains(t, resp.Metrics, "tremor")
	assert.GreaterOrEqual(t, resp.Metrics["tremor"].Score, 0.9)
	require.Contains(t, resp.Metrics, "pulseResponse")
	assert.GreaterOrEqual(t, resp.Metrics["pulseResponse"].Score, 0.5)

	rec, err := env.signer.VerifyReceipt(resp.Receipt)
	require.NoError(t, err)
	assert.Equal(t, string(challenge.ModeStandalone), rec.Mode)
	assert.True(t, rec.Verified)
	assert.InDelta(t, resp.Score, rec.Score, 1e-9)
	assert.Equal(t, resp.VerdictClass, rec.VerdictClass)
	assert.Greater(t, rec.VerifiedAt, int64(0))

	logged, err := os.ReadFile(env.logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), resp.SessionID)
}

func TestVerifyReplayRejected(t *testing.T) {
	env := newTestEnv(t, 43)
	view, tok := env.issue(t, "/api/challenge")

	cv := captureCanvas{Width: 800, Height: 600}
	ph := standalonePhases(view)
	body := standaloneBody{
		Token:       tok,
		Pointer:     scriptedReplayer(view, cv, ph),
		Phases:      ph,
		Canvas:      cv,
		InputMethod: "mouse",
	}

	w := env.post(t, "/api/verify", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.post(t, "/api/verify", body)
	requireError(t, w, http.StatusConflict, "challenge_already_used")
}

func TestVerifyScriptedReplayer(t *testing.T) {
	env := newTestEnv(t, 44)
	view, tok := env.issue(t, "/api/challenge")

	cv := captureCanvas{Width: 800, Height: 600}
	ph := standalonePhases(view)

	w := env.post(t, "/api/verify", standaloneBody{
		Token:       tok,
		Pointer:     scriptedReplayer(view, cv, ph),
		Phases:      ph,
		Canvas:      cv,
		InputMethod: "mouse",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp verifyResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, scoring.VerdictNonBiological, resp.Verdict)
	assert.Equal(t, scoring.ClassNonBiological, resp.VerdictClass)

	// An exact replay leaves no transfer rolloff, no measurable delay, no
	// tremor band power, and pulse onsets pinned at the detection floor.
	require.Contains(t, resp.Metrics, "transferFn")
	assert.InDelta(t, 0.0, resp.Metrics["transferFn"].Score, 0.01)
	require.Contains(t, resp.Metrics, "tremor")
	assert.Less(t, resp.Metrics["tremor"].Score, 0.3)
	require.Contains(t, resp.Metrics, "pulseResponse")
	assert.Less(t, resp.Metrics["pulseResponse"].Score, 0.5)

	rec, err := env.signer.VerifyReceipt(resp.Receipt)
	require.NoError(t, err)
	assert.False(t, rec.Verified)
	assert.Equal(t, scoring.ClassNonBiological, rec.VerdictClass)
}

func TestVerifyForgedTokenRejected(t *testing.T) {
	env := newTestEnv(t, 45)
	view, tok := env.issue(t, "/api/challenge")

	cv := captureCanvas{Width: 800, Height: 600}
	ph := standalonePhases(view)
	rng := rand.New(rand.NewPCG(21, 22))
	pointer, count := biologicalTracker(view, cv, ph, rng)

	forged := tok[:len(tok)-1] + "A"
	if tok[len(tok)-1] == 'A' {
		forged = tok[:len(tok)-1] + "B"
	}
	body := standaloneBody{
		Token:       forged,
		Pointer:     pointer,
		Phases:      ph,
		Canvas:      cv,
		InputMethod: "mouse",
		CogAnswer:   &count,
	}
	w := env.post(t, "/api/verify", body)
	requireError(t, w, http.StatusUnauthorized, "invalid_token")

	// The forged attempt must not consume the challenge.
	body.Token = tok
	w = env.post(t, "/api/verify", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp verifyResponse
	decodeJSON(t, w, &resp)
	assert.Equal(t, scoring.ClassBiological, resp.VerdictClass)
}

func TestVerifyExpiredChallenge(t *testing.T) {
	env := newTestEnv(t, 46)
	view, tok := env.issue(t, "/api/challenge")

	cv := captureCanvas{Width: 800, Height: 600}
	ph := standalonePhases(view)
	body := standaloneBody{
		Token:       tok,
		Pointer:     scriptedReplayer(view, cv, ph),
		Phases:      ph,
		Canvas:      cv,
		InputMethod: "mouse",
	}

	env.clock.Advance(3*time.Minute + 5*time.Second)

	w := env.post(t, "/api/verify", body)
	requireError(t, w, http.StatusGone, "challenge_expired")

	// Expiry consumes the challenge; a retry reads as a replay.
	w = env.post(t, "/api/verify", body)
	requireError(t, w, http.StatusConflict, "challenge_already_used")
}

func TestEmbedVerifyHoverFlow(t *testing.T) {
	env := newTestEnv(t, 47)
	view, tok := env.issue(t, "/api/embed/challenge")
	require.Equal(t, string(challenge.ModeEmbed), view.Mode)

	elements := []hoverElement{
		{Index: 0, Rect: hoverRect{X: 40, Y: 40, W: 160, H: 60}},
		{Index: 1, Rect: hoverRect{X: 260, Y: 40, W: 160, H: 60}},
		{Index: 2, Rect: hoverRect{X: 40, Y: 160, W: 160, H: 60}},
	}

	w := env.post(t, "/api/embed/verify", embedBody{
		Token:       tok,
		Pointer:     hoverCapture(view, elements),
		Elements:    elements,
		InputMethod: "mouse",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp verifyResponse
	decodeJSON(t, w, &resp)
	assert.True(t, resp.OK)
	assert.NotEmpty(t, resp.SessionID)

	require.NotNil(t, resp.Plausible)
	assert.True(t, *resp.Plausible)
	require.NotNil(t, resp.UniqueElements)
	assert.Equal(t, 3, *resp.UniqueElements)
	require.NotNil(t, resp.HoverTimeMs)
	assert.GreaterOrEqual(t, *resp.HoverTimeMs, 8000.0)
	require.NotNil(t, resp.Verified)

	rec, err := env.signer.VerifyReceipt(resp.Receipt)
	require.NoError(t, err)
	assert.Equal(t, string(challenge.ModeEmbed), rec.Mode)

	logged, err := os.ReadFile(env.logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logged), resp.SessionID)
}

func TestVerifyWrongChallengeMode(t *testing.T) {
	env := newTestEnv(t, 48)
	_, tok := env.issue(t, "/api/embed/challenge")

	cv := captureCanvas{Width: 800, Height: 600}
	pointer := make([]pointerDot, 60)
	for i := range pointer {
		pointer[i] = pointerDot{T: float64(i) * 16, X: 100, Y: 100}
	}
	w := env.post(t, "/api/verify", standaloneBody{
		Token:   tok,
		Pointer: pointer,
		Phases:  capturePhases{TrackingStart: 0, DualtaskStart: 500, TestEnd: 1000},
		Canvas:  cv,
	})
	requireError(t, w, http.StatusBadRequest, "wrong_challenge_mode")
}
