// SPDX-License-Identifier: MIT

// Package archive keeps a queryable SQLite copy of completed session records.
// The JSONL log stays the source of truth; the archive serves indexed lookups
// and survives log rotation.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure Go driver

	"github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/metrics"
	"github.com/pointerlabs/clnp/internal/session"
)

// ErrNotFound marks a session id absent from the archive.
var ErrNotFound = errors.New("session not found")

const opTimeout = 2 * time.Second

// Store is the SQLite-backed session archive.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open initializes the archive database. The PRAGMAs ride on the DSN so they
// apply to every pooled connection.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open failed: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping failed: %w", err)
	}

	s := &Store{db: db, log: log.WithComponent("archive")}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		mode TEXT NOT NULL,
		input_method TEXT,
		score REAL NOT NULL,
		verdict_class TEXT NOT NULL,
		sample_rate REAL NOT NULL DEFAULT 0,
		valid_metrics INTEGER NOT NULL DEFAULT 0,
		ip_hash TEXT,
		user_agent TEXT,
		record TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_created ON sessions(created_at);
	CREATE INDEX IF NOT EXISTS idx_sessions_verdict ON sessions(verdict_class);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Insert archives one record. Best-effort: failures are counted and logged,
// never surfaced to the verification path.
func (s *Store) Insert(rec *session.Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordSessionSinkFailure("sqlite")
		s.log.Error().Err(err).Str(log.FieldSessionID, rec.ID).Msg("marshal archive record")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	query := `
	INSERT INTO sessions (id, created_at, mode, input_method, score,
		verdict_class, sample_rate, valid_metrics, ip_hash, user_agent, record)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.CreatedAt, rec.Mode, rec.InputMethod, rec.Score,
		rec.VerdictClass, rec.SampleRate, rec.ValidMetrics, rec.IPHash,
		rec.UserAgent, string(raw))
	if err != nil {
		metrics.RecordSessionSinkFailure("sqlite")
		s.log.Warn().Err(err).Str(log.FieldSessionID, rec.ID).Msg("archive insert failed")
	}
}

// Session loads one archived record by id.
func (s *Store) Session(ctx context.Context, id string) (*session.Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM sessions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("archive query: %w", err)
	}

	var rec session.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("archive record decode: %w", err)
	}
	return &rec, nil
}

// Count reports the number of archived sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("archive count: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
