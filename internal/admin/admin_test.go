// SPDX-License-Identifier: MIT

package admin_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointerlabs/clnp/internal/admin"
	"github.com/pointerlabs/clnp/internal/archive"
	"github.com/pointerlabs/clnp/internal/scoring"
	"github.com/pointerlabs/clnp/internal/session"
)

var testNow = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)

func logRecord(t *testing.T, id, createdAt, mode, device string, score float64, class string, metrics map[string]scoring.Metric) string {
	t.Helper()
	rec := session.Record{
		ID:           id,
		CreatedAt:    createdAt,
		Mode:         mode,
		InputMethod:  device,
		Score:        score,
		VerdictClass: class,
		Metrics:      metrics,
	}
	data, err := json.Marshal(&rec)
	require.NoError(t, err)
	return string(data)
}

// seedLog writes six sessions oldest-first plus malformed and blank lines.
func seedLog(t *testing.T) string {
	t.Helper()
	lines := []string{
		`{broken`,
		logRecord(t, "s6", "2026-06-01T00:00:00Z", "standalone", "mouse", 0.4, "UNCERTAIN", nil),
		logRecord(t, "s5", "2026-08-19T10:00:00Z", "embed", "touch", 0.7, "BIOLOGICAL", nil),
		"",
		logRecord(t, "s4", "2026-08-23T23:00:00Z", "standalone", "trackpad", 1.0, "BIOLOGICAL", nil),
		logRecord(t, "s3", "2026-08-24T08:00:00Z", "embed", "touch", 0.12, "NON_BIOLOGICAL", map[string]scoring.Metric{
			"transferFn": {Valid: false},
			"tremor":     {Valid: true, Score: 0.2},
		}),
		`"not an object"`,
		logRecord(t, "s2", "2026-08-24T11:30:00Z", "standalone", "mouse", 0.55, "UNCERTAIN", map[string]scoring.Metric{
			"transferFn": {Valid: true, Score: 0.5},
		}),
		logRecord(t, "s1", "2026-08-24T11:59:30Z", "standalone", "mouse", 0.91, "BIOLOGICAL", map[string]scoring.Metric{
			"transferFn": {Valid: true, Score: 0.9},
			"tremor":     {Valid: true, Score: 0.8},
		}),
	}
	path := filepath.Join(t.TempDir(), "sessions.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestStatsAggregatesLog(t *testing.T) {
	agg := admin.NewWithClock(seedLog(t), nil, func() time.Time { return testNow })

	st, err := agg.Stats()
	require.NoError(t, err)

	assert.Equal(t, 6, st.TotalSessions)
	assert.Equal(t, 3, st.Today)
	assert.Equal(t, 2, st.LastHour)

	assert.Equal(t, map[string]int{"BIOLOGICAL": 3, "UNCERTAIN": 2, "NON_BIOLOGICAL": 1}, st.Verdicts)
	assert.Equal(t, map[string]int{"standalone": 4, "embed": 2}, st.Modes)
	assert.Equal(t, map[string]int{"mouse": 3, "touch": 2, "trackpad": 1}, st.Devices)

	require.Len(t, st.Daily, 30)
	assert.Equal(t, "2026-07-26", st.Daily[0].Date)
	assert.Equal(t, admin.DailyCount{Date: "2026-08-24", Count: 3}, st.Daily[29])
	assert.Equal(t, admin.DailyCount{Date: "2026-08-23", Count: 1}, st.Daily[28])
	assert.Equal(t, admin.DailyCount{Date: "2026-08-19", Count: 1}, st.Daily[24])

	total := 0
	for _, d := range st.Daily {
		total += d.Count
	}
	assert.Equal(t, 5, total, "session s6 is outside the 30-day window")

	require.Len(t, st.ScoreHistogram, 10)
	assert.Equal(t, []int{0, 1, 0, 0, 1, 1, 0, 1, 0, 2}, st.ScoreHistogram)

	require.Contains(t, st.DeviceMetrics, "mouse")
	assert.InDelta(t, 0.7, st.DeviceMetrics["mouse"]["transferFn"], 1e-9)
	assert.InDelta(t, 0.8, st.DeviceMetrics["mouse"]["tremor"], 1e-9)
	require.Contains(t, st.DeviceMetrics, "touch")
	assert.InDelta(t, 0.2, st.DeviceMetrics["touch"]["tremor"], 1e-9)
	assert.NotContains(t, st.DeviceMetrics["touch"], "transferFn", "invalid metrics are excluded from means")

	assert.NotEmpty(t, st.Version)
	assert.GreaterOrEqual(t, st.UptimeSec, 0.0)
}

func TestStatsMissingLogIsEmpty(t *testing.T) {
	agg := admin.NewWithClock(filepath.Join(t.TempDir(), "absent.jsonl"), nil, func() time.Time { return testNow })

	st, err := agg.Stats()
	require.NoError(t, err)
	assert.Equal(t, 0, st.TotalSessions)
	assert.Len(t, st.Daily, 30)

	rows, err := agg.Sessions(0, 0)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSessionsNewestFirstPagination(t *testing.T) {
	agg := admin.NewWithClock(seedLog(t), nil, func() time.Time { return testNow })

	rows, err := agg.Sessions(0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "s1", rows[0].ID)
	assert.Equal(t, "s6", rows[5].ID)
	assert.Equal(t, "standalone", rows[0].Mode)
	assert.Equal(t, "mouse", rows[0].InputMethod)
	assert.InDelta(t, 0.91, rows[0].Score, 1e-9)

	page, err := agg.Sessions(2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "s3", page[0].ID)
	assert.Equal(t, "s4", page[1].ID)

	empty, err := agg.Sessions(2, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	capped, err := agg.Sessions(100000, 0)
	require.NoError(t, err)
	assert.Len(t, capped, 6)
}

func TestSessionLookup(t *testing.T) {
	agg := admin.NewWithClock(seedLog(t), nil, func() time.Time { return testNow })

	rec, err := agg.Session(context.Background(), "s3")
	require.NoError(t, err)
	assert.Equal(t, "s3", rec.ID)
	assert.Equal(t, "embed", rec.Mode)
	require.Contains(t, rec.Metrics, "tremor")
	assert.InDelta(t, 0.2, rec.Metrics["tremor"].Score, 1e-9)

	_, err = agg.Session(context.Background(), "missing")
	assert.ErrorIs(t, err, admin.ErrNotFound)
}

func TestSessionFallsBackToArchive(t *testing.T) {
	store, err := archive.Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	archived := &session.Record{
		ID:           "arch1",
		CreatedAt:    "2026-08-01T09:00:00Z",
		Mode:         "standalone",
		InputMethod:  "mouse",
		Score:        0.8,
		VerdictClass: "BIOLOGICAL",
	}
	store.Insert(archived)

	agg := admin.NewWithClock(seedLog(t), store, func() time.Time { return testNow })

	rec, err := agg.Session(context.Background(), "arch1")
	require.NoError(t, err)
	assert.Equal(t, "arch1", rec.ID)
	assert.InDelta(t, 0.8, rec.Score, 1e-9)

	_, err = agg.Session(context.Background(), "nowhere")
	assert.True(t, errors.Is(err, admin.ErrNotFound))
}
