// SPDX-License-Identifier: MIT

// Package admin aggregates the session log for the operator endpoints. The
// JSONL log is streamed line by line on every call; malformed lines are
// skipped, never fatal.
package admin

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pointerlabs/clnp/internal/archive"
	"github.com/pointerlabs/clnp/internal/session"
	"github.com/pointerlabs/clnp/internal/version"
)

// ErrNotFound marks a session id unknown to both the log and the archive.
var ErrNotFound = errors.New("session not found")

const (
	defaultLimit = 50
	maxLimit     = 500

	dailyWindow  = 30
	scanBufBytes = 1024 * 1024
)

// Aggregator reads the session log and, when configured, falls back to the
// SQLite archive for single-session lookups.
type Aggregator struct {
	logPath string
	arch    *archive.Store
	started time.Time
	now     func() time.Time
}

// New returns an Aggregator over the given log file. arch may be nil.
func New(logPath string, arch *archive.Store) *Aggregator {
	return NewWithClock(logPath, arch, time.Now)
}

// NewWithClock injects the clock for tests.
func NewWithClock(logPath string, arch *archive.Store, now func() time.Time) *Aggregator {
	return &Aggregator{
		logPath: logPath,
		arch:    arch,
		started: now(),
		now:     now,
	}
}

// DailyCount is one day of session volume.
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Stats is the aggregate view served to the dashboard.
type Stats struct {
	TotalSessions  int                           `json:"totalSessions"`
	Today          int                           `json:"today"`
	LastHour       int                           `json:"lastHour"`
	Daily          []DailyCount                  `json:"daily"`
	Verdicts       map[string]int                `json:"verdicts"`
	Modes          map[string]int                `json:"modes"`
	Devices        map[string]int                `json:"devices"`
	ScoreHistogram []int                         `json:"scoreHistogram"`
	DeviceMetrics  map[string]map[string]float64 `json:"deviceMetrics"`
	Version        string                        `json:"version"`
	UptimeSec      float64                       `json:"uptimeSec"`
}

// Row is the lightweight session listing entry.
type Row struct {
	ID           string  `json:"id"`
	CreatedAt    string  `json:"createdAt"`
	Mode         string  `json:"mode"`
	InputMethod  string  `json:"inputMethod,omitempty"`
	Score        float64 `json:"score"`
	VerdictClass string  `json:"verdictClass"`
}

// scan streams every parseable record to fn. A missing log file yields zero
// records and no error.
func (a *Aggregator) scan(fn func(rec *session.Record)) error {
	f, err := os.Open(a.logPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, scanBufBytes), scanBufBytes)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec session.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		fn(&rec)
	}
	return sc.Err()
}

// Stats aggregates the whole log.
func (a *Aggregator) Stats() (*Stats, error) {
	now := a.now().UTC()
	today := now.Format(time.DateOnly)
	hourAgo := now.Add(-time.Hour)
	windowStart := now.AddDate(0, 0, -(dailyWindow - 1)).Format(time.DateOnly)

	st := &Stats{
		Verdicts:       map[string]int{},
		Modes:          map[string]int{},
		Devices:        map[string]int{},
		ScoreHistogram: make([]int, 10),
		DeviceMetrics:  map[string]map[string]float64{},
		Version:        version.Version,
		UptimeSec:      now.Sub(a.started.UTC()).Seconds(),
	}

	daily := map[string]int{}
	sums := map[string]map[string]float64{}
	counts := map[string]map[string]int{}

	err := a.scan(func(rec *session.Record) {
		st.TotalSessions++
		st.Verdicts[rec.VerdictClass]++
		st.Modes[rec.Mode]++
		device := rec.InputMethod
		if device == "" {
			device = "unknown"
		}
		st.Devices[device]++

		bucket := int(rec.Score * 10)
		if bucket < 0 {
			bucket = 0
		}
		if bucket > 9 {
			bucket = 9
		}
		st.ScoreHistogram[bucket]++

		for name, m := range rec.Metrics {
			if !m.Valid {
				continue
			}
			if sums[device] == nil {
				sums[device] = map[string]float64{}
				counts[device] = map[string]int{}
			}
			sums[device][name] += m.Score
			counts[device][name]++
		}

		ts, perr := time.Parse(time.RFC3339, rec.CreatedAt)
		if perr != nil {
			return
		}
		ts = ts.UTC()
		day := ts.Format(time.DateOnly)
		if day == today {
			st.Today++
		}
		if ts.After(hourAgo) {
			st.LastHour++
		}
		if day >= windowStart && day <= today {
			daily[day]++
		}
	})
	if err != nil {
		return nil, err
	}

	for d := 0; d < dailyWindow; d++ {
		day := now.AddDate(0, 0, -(dailyWindow - 1 - d)).Format(time.DateOnly)
		st.Daily = append(st.Daily, DailyCount{Date: day, Count: daily[day]})
	}

	for device, metricSums := range sums {
		st.DeviceMetrics[device] = map[string]float64{}
		for name, sum := range metricSums {
			st.DeviceMetrics[device][name] = sum / float64(counts[device][name])
		}
	}
	return st, nil
}

// Sessions lists recent sessions newest-first.
func (a *Aggregator) Sessions(limit, offset int) ([]Row, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}

	var rows []Row
	err := a.scan(func(rec *session.Record) {
		rows = append(rows, Row{
			ID:           rec.ID,
			CreatedAt:    rec.CreatedAt,
			Mode:         rec.Mode,
			InputMethod:  rec.InputMethod,
			Score:        rec.Score,
			VerdictClass: rec.VerdictClass,
		})
	})
	if err != nil {
		return nil, err
	}

	// The log appends oldest-first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	if offset >= len(rows) {
		return []Row{}, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

// Session returns the full record for one id, consulting the archive when
// the log scan misses.
func (a *Aggregator) Session(ctx context.Context, id string) (*session.Record, error) {
	var found *session.Record
	err := a.scan(func(rec *session.Record) {
		if found == nil && rec.ID == id {
			found = rec
		}
	})
	if err != nil {
		return nil, err
	}
	if found != nil {
		return found, nil
	}

	if a.arch != nil {
		rec, aerr := a.arch.Session(ctx, id)
		if aerr == nil {
			return rec, nil
		}
		if !errors.Is(aerr, archive.ErrNotFound) {
			return nil, aerr
		}
	}
	return nil, ErrNotFound
}
