package library

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 5 * time.Second

// RedisStore keeps session state in Redis so several terminals on different
// hosts can share one sign-in.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// RedisConfig captures the settings for the Redis session backend.
type RedisConfig struct {
	Addr   string
	DB     int
	Prefix string
}

// NewRedisStore connects to Redis and checks it answers a ping.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, DB: cfg.DB})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisStore(client, cfg.Prefix), nil
}

func newRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "library:session:"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(k string) string { return r.prefix + k }

func (r *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, r.key(key), value, 0).Err()
}

// Clear removes the fixed session keys under the prefix.
func (r *RedisStore) Clear(ctx context.Context) error {
	keys := make([]string, 0, len(sessionKeys))
	for _, k := range sessionKeys {
		keys = append(keys, r.key(k))
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisStore) Close() error { return r.client.Close() }
