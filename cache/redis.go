package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexusgraph/nexus/nexuserr"
)

// RedisOptions configures the distributed cache tier connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration
}

// Redis is the distributed cache tier. Values are stored as JSON so that
// multiple engine instances sharing the tier agree on the encoding.
type Redis struct {
	client *redis.Client
}

// NewRedis creates and verifies a connection to the distributed tier.
func NewRedis(opts RedisOptions) (*Redis, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, nexuserr.Configuration("cache.NewRedis",
			fmt.Errorf("failed to parse Redis URL: %w", err))
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nexuserr.Unavailable("cache.NewRedis",
			fmt.Errorf("failed to connect to Redis: %w", err))
	}

	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client. Used by tests.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// Get unmarshals the value stored under key into dest. Returns false with
// no error on a miss.
func (r *Redis) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, nexuserr.Unavailable("Redis.Get", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		// A corrupt entry behaves like a miss; the caller refills it.
		return false, nil
	}
	return true, nil
}

// Set stores the value under key with the given TTL.
func (r *Redis) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return nexuserr.Internal("Redis.Set",
			fmt.Errorf("failed to marshal cache value: %w", err))
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return nexuserr.Unavailable("Redis.Set", err)
	}
	return nil
}

// Delete removes the given keys. Missing keys are not an error.
func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return nexuserr.Unavailable("Redis.Delete", err)
	}
	return nil
}

// DeletePrefix removes every key with the given prefix using incremental
// SCAN so that large keyspaces are never blocked.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nexuserr.Unavailable("Redis.DeletePrefix", err)
		}
		if len(keys) > 0 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				return nexuserr.Unavailable("Redis.DeletePrefix", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// Health verifies the connection.
func (r *Redis) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return nexuserr.Unavailable("Redis.Health", err)
	}
	return nil
}

// Close closes the connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
