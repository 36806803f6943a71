// Package broadcast forwards pipeline events to Redis so processes outside
// this one can follow the published list.
//
// Every published ResultSet is JSON-encoded, PUBLISHed on a channel and
// written to a snapshot key with a TTL. Failures are published on the same
// channel. Redis errors are logged and counted but never reach the pipeline.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	sink := broadcast.NewRedisSink(redisClient, broadcast.DefaultConfig())
//	sub := pipeline.Subscribe(sink.Listener())
//	defer pipeline.Unsubscribe(sub)
//
// # Message Format
//
//	{"kind":"published","generation":3,"results":{...}}
//	{"kind":"failed","generation":4,"error":"list page: ..."}
package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/creature-catalog/pkg/enrichment"
	"github.com/Sternrassler/creature-catalog/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var (
	// MessagesPublished tracks messages sent by kind
	MessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_broadcast_messages_total",
			Help: "Total number of pipeline events published to Redis",
		},
		[]string{"kind"}, // "published", "failed"
	)

	// BroadcastErrors tracks Redis operation errors
	BroadcastErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_broadcast_errors_total",
			Help: "Total number of Redis broadcast errors",
		},
		[]string{"operation"}, // "publish", "set", "marshal"
	)
)

// Config holds sink configuration.
type Config struct {
	// Channel is the Redis pub/sub channel.
	Channel string

	// SnapshotKey holds the latest published ResultSet; empty disables it.
	SnapshotKey string

	// SnapshotTTL bounds how long a snapshot outlives its publisher.
	SnapshotTTL time.Duration

	// Timeout bounds each Redis round trip.
	Timeout time.Duration
}

// DefaultConfig returns the default sink configuration.
func DefaultConfig() Config {
	return Config{
		Channel:     "catalog:events",
		SnapshotKey: "catalog:current",
		SnapshotTTL: 10 * time.Minute,
		Timeout:     2 * time.Second,
	}
}

// Message is the wire format of a broadcast event.
type Message struct {
	Kind       enrichment.EventKind  `json:"kind"`
	Generation uint64                `json:"generation"`
	Results    *enrichment.ResultSet `json:"results,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// RedisSink publishes pipeline events to Redis.
type RedisSink struct {
	redis  *redis.Client
	config Config
	logger zerolog.Logger
}

// NewRedisSink creates a sink over redisClient.
func NewRedisSink(redisClient *redis.Client, cfg Config) *RedisSink {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultConfig().Channel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = DefaultConfig().SnapshotTTL
	}

	return &RedisSink{
		redis:  redisClient,
		config: cfg,
		logger: logging.NewLogger("broadcast"),
	}
}

// Listener returns the enrichment.Listener to subscribe with.
func (s *RedisSink) Listener() enrichment.Listener {
	return func(ev enrichment.Event) {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
		defer cancel()

		if err := s.Send(ctx, ev); err != nil {
			s.logger.Warn().
				Err(err).
				Str("kind", string(ev.Kind)).
				Uint64("generation", ev.Generation).
				Msg("Broadcast failed")
		}
	}
}

// Send publishes ev and, for published sets, refreshes the snapshot key.
func (s *RedisSink) Send(ctx context.Context, ev enrichment.Event) error {
	msg := NewMessage(ev)

	data, err := json.Marshal(msg)
	if err != nil {
		BroadcastErrors.WithLabelValues("marshal").Inc()
		return fmt.Errorf("marshal message: %w", err)
	}

	pipe := s.redis.Pipeline()
	pipe.Publish(ctx, s.config.Channel, data)
	if ev.Kind == enrichment.EventPublished && s.config.SnapshotKey != "" {
		pipe.Set(ctx, s.config.SnapshotKey, data, s.config.SnapshotTTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		BroadcastErrors.WithLabelValues("publish").Inc()
		return fmt.Errorf("redis publish: %w", err)
	}

	MessagesPublished.WithLabelValues(string(ev.Kind)).Inc()
	s.logger.Debug().
		Str("channel", s.config.Channel).
		Str("kind", string(ev.Kind)).
		Uint64("generation", ev.Generation).
		Msg("Broadcast event")

	return nil
}

// Snapshot reads the latest published message from the snapshot key.
// It returns redis.Nil when there is none.
func (s *RedisSink) Snapshot(ctx context.Context) (*Message, error) {
	data, err := s.redis.Get(ctx, s.config.SnapshotKey).Bytes()
	if err != nil {
		return nil, err
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &msg, nil
}

// NewMessage converts an event to its wire format.
func NewMessage(ev enrichment.Event) Message {
	msg := Message{Kind: ev.Kind, Generation: ev.Generation}
	switch ev.Kind {
	case enrichment.EventPublished:
		rs := ev.Results
		msg.Results = &rs
	case enrichment.EventFailed:
		if ev.Err != nil {
			msg.Error = ev.Err.Error()
		}
	}
	return msg
}
