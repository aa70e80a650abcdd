package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisConfig configures the Redis connection used by RedisSink.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	PoolSize int
	TTL      time.Duration
	Channel  string
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

// RedisSink stores the latest totals of each session under
// focus:session:<id> and publishes every record on a channel.
type RedisSink struct {
	client  redis.Cmdable
	ttl     time.Duration
	channel string
	closer  func() error
}

// NewRedisSink wraps an existing client.
func NewRedisSink(client redis.Cmdable, ttl time.Duration, channel string) *RedisSink {
	s := &RedisSink{client: client, ttl: ttl, channel: channel}
	if c, ok := client.(interface{ Close() error }); ok {
		s.closer = c.Close
	}
	return s
}

// SessionKey returns the key holding a session's latest record.
func SessionKey(sessionID string) string {
	return "focus:session:" + sessionID
}

// Name implements Sink.
func (s *RedisSink) Name() string { return "redis" }

// Save implements Sink.
func (s *RedisSink) Save(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &SinkError{Sink: s.Name(), Err: fmt.Errorf("marshal record: %w", err)}
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if rec.SessionID != "" {
			pipe.Set(ctx, SessionKey(rec.SessionID), data, s.ttl)
		}
		if s.channel != "" {
			pipe.Publish(ctx, s.channel, data)
		}
		return nil
	})
	if err != nil {
		return &SinkError{Sink: s.Name(), Err: err}
	}
	return nil
}

// Close closes the underlying client when the sink owns one.
func (s *RedisSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// WithoutClose stops Close from closing the client, for clients shared
// with other components.
func (s *RedisSink) WithoutClose() *RedisSink {
	s.closer = nil
	return s
}
