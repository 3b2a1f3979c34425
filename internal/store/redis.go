package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eldtechnologies/roomdrop/internal/metrics"
)

// RedisStore keeps room documents in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client}, nil
}

// Client exposes the underlying client for the rate limiter.
func (s *RedisStore) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get returns the raw document stored under key.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	defer observeRedis("get", time.Now())

	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores value under key. Sub-second ttls are sent as PX.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	defer observeRedis("set", time.Now())

	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, key, value, ttl).Err()
}

// Del removes key.
func (s *RedisStore) Del(ctx context.Context, key string) (int64, error) {
	defer observeRedis("del", time.Now())

	return s.client.Del(ctx, key).Result()
}

// TTL returns the remaining lifetime of key with millisecond precision.
func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	defer observeRedis("ttl", time.Now())

	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// PTTL replies -2 for a missing key and -1 for a key without expiry.
	switch ttl {
	case -2:
		return 0, ErrNotFound
	case -1:
		return NoExpiry, nil
	}
	if ttl <= 0 {
		return 0, ErrNotFound
	}
	return ttl, nil
}

func observeRedis(op string, start time.Time) {
	metrics.StoreLatency.WithLabelValues("redis", op).Observe(time.Since(start).Seconds())
}
