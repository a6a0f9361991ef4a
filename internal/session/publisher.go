// SPDX-License-Identifier: MIT

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pointerlabs/clnp/internal/log"
	"github.com/pointerlabs/clnp/internal/metrics"
)

const (
	publishTimeout = 2 * time.Second
	streamMaxLen   = 10_000
)

// PublisherConfig holds the Redis stream connection settings.
type PublisherConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
}

// Publisher fans completed session records out to a capped Redis stream for
// downstream consumers. Publishing is best-effort.
type Publisher struct {
	client *redis.Client
	stream string
	log    zerolog.Logger
}

// NewPublisher connects to Redis and verifies the connection before use.
func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger := log.WithComponent("session")
	logger.Info().
		Str("addr", cfg.Addr).
		Str("stream", cfg.Stream).
		Msg("connected to redis stream")

	return &Publisher{
		client: client,
		stream: cfg.Stream,
		log:    logger,
	}, nil
}

// Publish appends one record to the stream, trimming it to roughly
// streamMaxLen entries.
func (p *Publisher) Publish(rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		metrics.RecordSessionSinkFailure("redis")
		p.log.Error().Err(err).Str(log.FieldSessionID, rec.ID).Msg("marshal stream record")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"record": data},
	}).Err()
	if err != nil {
		metrics.RecordSessionSinkFailure("redis")
		p.log.Warn().Err(err).Str("stream", p.stream).Msg("xadd failed")
	}
}

// HealthCheck reports whether Redis is reachable.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	return p.client.Close()
}
