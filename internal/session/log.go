// SPDX-License-Identifier: MIT

package session

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/metrics"
)

// Logger appends one JSON line per verification to the session log. Appends
// are serialized; failures are counted and swallowed so a full disk never
// breaks verification.
type Logger struct {
	mu   sync.Mutex
	path string
	log  zerolog.Logger
}

// NewLogger returns a Logger writing to path. The file is created on first
// append.
func NewLogger(path string) *Logger {
	return &Logger{
		path: path,
		log:  log.WithComponent("session"),
	}
}

// Path returns the log file location.
func (l *Logger) Path() string {
	return l.path
}

// Append writes one record line.
func (l *Logger) Append(rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordSessionLogFailure()
		l.log.Error().Err(err).Str(log.FieldSessionID, rec.ID).Msg("marshal session record")
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		metrics.RecordSessionLogFailure()
		l.log.Warn().Err(err).Str(log.FieldPath, l.path).Msg("open session log")
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		metrics.RecordSessionLogFailure()
		l.log.Warn().Err(err).Str(log.FieldPath, l.path).Msg("append session record")
	}
}
