// SPDX-License-Identifier: MIT

// Package store keeps issued challenges in process memory until they are
// consumed or swept. Challenges deliberately do not survive restarts.
package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/pointerlabs/clnp/internal/challenge"
	"github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/metrics"
)

// Verification gate errors, in validation order.
var (
	ErrNotFound  = errors.New("challenge not found")
	ErrWrongMode = errors.New("wrong challenge mode")
	ErrUsed      = errors.New("challenge already used")
	ErrExpired   = errors.New("challenge expired")
)

const (
	// SweepInterval is how often the sweeper wakes.
	SweepInterval = 30 * time.Second

	// unusedGrace keeps expired-but-unconsumed challenges visible for late
	// verify attempts so they can be answered with a 410 instead of a 404.
	unusedGrace = time.Minute

	// usedRetention keeps consumed challenges around so replays keep
	// hitting 409 instead of 404.
	usedRetention = 10 * time.Minute
)

// Store is a mutex-guarded in-memory challenge table.
type Store struct {
	mu    sync.Mutex
	items map[string]*challenge.Challenge
	now   func() time.Time
}

// New returns an empty Store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock returns a Store with an injectable clock for tests.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		items: make(map[string]*challenge.Challenge),
		now:   now,
	}
}

// Put registers a freshly issued challenge.
func (s *Store) Put(ch *challenge.Challenge) {
	s.mu.Lock()
	s.items[ch.ID] = ch
	pending := s.pendingLocked()
	s.mu.Unlock()
	metrics.SetChallengesPending(pending)
}

// Len returns the total number of stored challenges, consumed ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Pending counts unused, unexpired challenges.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

func (s *Store) pendingLocked() int {
	now := s.now()
	n := 0
	for _, ch := range s.items {
		if !ch.Used && !ch.Expired(now) {
			n++
		}
	}
	return n
}

// Begin gates a verify attempt in validation order: existence, mode, use,
// expiry. A mode mismatch leaves the challenge untouched; expiry consumes it
// so the attempt cannot be retried. On success a snapshot copy is returned
// and the challenge stays unused until Commit.
func (s *Store) Begin(id string, mode challenge.Mode) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if ch.Mode != mode {
		return nil, ErrWrongMode
	}
	if ch.Used {
		return nil, ErrUsed
	}
	if ch.Expired(s.now()) {
		ch.Used = true
		ch.UsedAt = s.now()
		return nil, ErrExpired
	}

	snapshot := *ch
	return &snapshot, nil
}

// Commit flips the single-use flag. Exactly one concurrent verify can win;
// the losers get ErrUsed. The flip precedes analysis by construction, so a
// failed analysis still consumes the challenge.
func (s *Store) Commit(id string) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if ch.Used {
		return nil, ErrUsed
	}
	ch.Used = true
	ch.UsedAt = s.now()

	snapshot := *ch
	return &snapshot, nil
}

// Sweep evicts unused challenges one minute past expiry and consumed ones
// ten minutes past use. It returns the eviction counts.
func (s *Store) Sweep() (expired, used int) {
	s.mu.Lock()
	now := s.now()
	for id, ch := range s.items {
		switch {
		case !ch.Used && now.After(ch.ExpiresAt.Add(unusedGrace)):
			delete(s.items, id)
			expired++
		case ch.Used && now.After(ch.UsedAt.Add(usedRetention)):
			delete(s.items, id)
			used++
		}
	}
	pending := s.pendingLocked()
	s.mu.Unlock()

	metrics.SetChallengesPending(pending)
	if expired > 0 {
		metrics.RecordStoreEvictions("expired", expired)
	}
	if used > 0 {
		metrics.RecordStoreEvictions("used", used)
	}
	return expired, used
}

// RunSweeper periodically sweeps until ctx is cancelled.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	logger := log.WithComponent("store")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Debug().Dur("interval", interval).Str("event", "sweeper.start").Msg("challenge sweeper started")
	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("event", "sweeper.stop").Msg("challenge sweeper stopped")
			return
		case <-ticker.C:
			expired, used := s.Sweep()
			if expired > 0 || used > 0 {
				logger.Info().
					Int("expired", expired).
					Int("used", used).
					Str("event", "sweeper.evicted").
					Msg("evicted stale challenges")
			}
		}
	}
}
