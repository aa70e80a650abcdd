package persist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "focus:session:abc", SessionKey("abc"))
}

func TestRedisSinkUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	sink := NewRedisSink(client, time.Hour, "focus:records")
	defer sink.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := sink.Save(ctx, Record{SessionID: "s1"})
	var se *SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "redis", se.Sink)
	assert.NotNil(t, se.Err)
}

func TestNewRedisClientFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisClient(ctx, RedisConfig{Address: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestRedisSinkWithoutClose(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})

	sink := NewRedisSink(client, time.Hour, "focus:records").WithoutClose()
	require.NoError(t, sink.Close())

	// The client is still open, so closing it here succeeds.
	assert.NoError(t, client.Close())
}
