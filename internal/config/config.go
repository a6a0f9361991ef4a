// SPDX-License-Identifier: MIT

// Package config loads the service configuration from the environment.
package config

import (
	"crypto/rand"
	"fmt"
	"net"
	"path/filepath"
	"time"
)

// Default values for the service configuration.
const (
	DefaultPort         = "8080"
	DefaultChallengeTTL = 180_000 * time.Millisecond
	DefaultDataDir      = "./data"
	DefaultRedisStream  = "clnp:sessions"

	// SessionLogName is the file name of the append-only session log
	// inside DataDir.
	SessionLogName = "sessions.jsonl"
)

// Config is the resolved runtime configuration of the daemon.
type Config struct {
	// ListenAddr is the HTTP listen address, assembled from HOST and PORT.
	ListenAddr string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// ChallengeTTL is the standalone challenge lifetime. Embed challenges
	// live twice as long.
	ChallengeTTL time.Duration

	// Secret keys challenge tokens, receipts and the IP hash.
	// When CLNP_SECRET is unset a random secret is generated per process
	// and SecretGenerated is set so the caller can warn about it.
	Secret          []byte
	SecretGenerated bool

	// AdminToken guards /api/admin. Empty means the admin API is disabled.
	AdminToken string

	// DataDir holds the append-only session log.
	DataDir string

	// ScoringConfigPath optionally points at a YAML file overriding the
	// compiled scoring defaults. Loaded once at startup.
	ScoringConfigPath string

	// SQLitePath enables the session archive when non-empty.
	SQLitePath string

	// RedisAddr enables the session stream publisher when non-empty.
	RedisAddr   string
	RedisStream string

	LogLevel  string
	LogFormat string

	OTelExporter    string // "none", "stdout", "grpc" or "http"
	OTelEndpoint    string
	OTelSampleRatio float64
}

// FromEnv assembles a Config from the process environment.
func FromEnv() (*Config, error) {
	host := ParseString("HOST", "")
	port := ParseString("PORT", DefaultPort)

	cfg := &Config{
		ListenAddr:      listenAddr(host, port),
		ReadTimeout:     ParseDuration("CLNP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    ParseDuration("CLNP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     ParseDuration("CLNP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: ParseDuration("CLNP_SHUTDOWN_TIMEOUT", 10*time.Second),

		ChallengeTTL: time.Duration(ParseInt("CHALLENGE_TTL_MS", int(DefaultChallengeTTL/time.Millisecond))) * time.Millisecond,

		AdminToken: ParseString("CLNP_ADMIN_TOKEN", ""),
		DataDir:    ParseString("CLNP_DATA_DIR", DefaultDataDir),

		ScoringConfigPath: ParseString("CLNP_SCORING_CONFIG", ""),
		SQLitePath:        ParseString("CLNP_SQLITE_PATH", ""),
		RedisAddr:         ParseString("CLNP_REDIS_ADDR", ""),
		RedisStream:       ParseString("CLNP_REDIS_STREAM", DefaultRedisStream),

		LogLevel:  ParseString("CLNP_LOG_LEVEL", "info"),
		LogFormat: ParseString("CLNP_LOG_FORMAT", "json"),

		OTelExporter:    ParseString("CLNP_OTEL_EXPORTER", "none"),
		OTelEndpoint:    ParseString("CLNP_OTEL_ENDPOINT", "localhost:4317"),
		OTelSampleRatio: ParseFloat("CLNP_OTEL_SAMPLE_RATIO", 1.0),
	}

	if secret := ParseString("CLNP_SECRET", ""); secret != "" {
		cfg.Secret = []byte(secret)
	} else {
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return nil, fmt.Errorf("generate ephemeral secret: %w", err)
		}
		cfg.Secret = buf
		cfg.SecretGenerated = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks invariants that would otherwise surface as late runtime failures.
func (c *Config) Validate() error {
	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge TTL must be positive, got %s", c.ChallengeTTL)
	}
	if len(c.Secret) == 0 {
		return fmt.Errorf("secret must not be empty")
	}
	switch c.OTelExporter {
	case "none", "stdout", "grpc", "http":
	default:
		return fmt.Errorf("unknown otel exporter %q (want none, stdout, grpc or http)", c.OTelExporter)
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("otel sample ratio must be in [0,1], got %g", c.OTelSampleRatio)
	}
	return nil
}

// EmbedChallengeTTL is the challenge lifetime for embed mode.
func (c *Config) EmbedChallengeTTL() time.Duration {
	return 2 * c.ChallengeTTL
}

// SessionLogPath is the absolute location of the JSONL session log.
func (c *Config) SessionLogPath() string {
	return filepath.Join(c.DataDir, SessionLogName)
}

func listenAddr(host, port string) string {
	if host == "" {
		return ":" + port
	}
	return net.JoinHostPort(host, port)
}
