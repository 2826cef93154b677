package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "quasar:src:"

// RedisSource reads values from Redis. Shared by several quasar processes it
// acts as the common upstream each local Store resolves from.
type RedisSource struct {
	client *redis.Client
	prefix string
}

// RedisSourceConfig holds connection settings for a RedisSource.
type RedisSourceConfig struct {
	Addr      string // e.g. "localhost:6379"
	Password  string
	DB        int
	KeyPrefix string // default "quasar:src:"
}

// NewRedisSource creates a Redis-backed source with its own client.
func NewRedisSource(cfg RedisSourceConfig) *RedisSource {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisSourceFromClient(client, cfg.KeyPrefix)
}

// NewRedisSourceFromClient creates a source on an existing client. Close
// closes the client.
func NewRedisSourceFromClient(client *redis.Client, prefix string) *RedisSource {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisSource{client: client, prefix: prefix}
}

// Client exposes the underlying client, e.g. to share it with an Invalidator.
func (r *RedisSource) Client() *redis.Client { return r.client }

func (r *RedisSource) key(k string) string {
	return r.prefix + k
}

func (r *RedisSource) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	return val, redisErr(err)
}

func (r *RedisSource) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.key(key), value, ttl).Err()
}

func (r *RedisSource) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSource) Close() error {
	return r.client.Close()
}

func redisErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	return err
}
