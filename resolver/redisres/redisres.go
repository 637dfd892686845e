// Package redisres provides a cache.Resolver that reads JSON-encoded values
// from Redis.
package redisres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/IvanBrykalov/asynccache/cache"
)

// ErrNotFound is returned by the resolver when the key does not exist in
// Redis. It wraps redis.Nil, so errors.Is(err, redis.Nil) also holds.
var ErrNotFound = fmt.Errorf("redisres: key not found: %w", redis.Nil)

// Config holds the connection settings for the Redis client.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Getter is the subset of the Redis client the resolver needs.
// *redis.Client and *redis.ClusterClient satisfy it.
type Getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// NewClient creates a Redis client and pings the server to ensure
// connectivity before returning it.
func NewClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	logger.Info().Str("redis_address", cfg.Addr).Msg("connected to redis")
	return rdb, nil
}

// New returns a Resolver that loads prefix+key from g and decodes the stored
// JSON into V. Resolver args are ignored.
//
// A missing key resolves to ErrNotFound; transport and decode failures are
// returned wrapped. The cache stores either as the entry's error state.
func New[V any](g Getter, prefix string, logger zerolog.Logger) cache.Resolver[string, V] {
	log := logger.With().Str("component", "redisres").Logger()
	return func(ctx context.Context, key string, _ ...any) (V, error) {
		var zero V
		rk := prefix + key
		raw, err := g.Get(ctx, rk).Bytes()
		if errors.Is(err, redis.Nil) {
			log.Debug().Str("key", rk).Msg("redis miss")
			return zero, ErrNotFound
		}
		if err != nil {
			log.Error().Err(err).Str("key", rk).Msg("redis get failed")
			return zero, fmt.Errorf("redis get %q: %w", rk, err)
		}

		var v V
		if err := json.Unmarshal(raw, &v); err != nil {
			log.Error().Err(err).Str("key", rk).Msg("failed to unmarshal value")
			return zero, fmt.Errorf("decode %q: %w", rk, err)
		}
		log.Debug().Str("key", rk).Msg("redis hit")
		return v, nil
	}
}
