package config

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// InitRedis connects to Redis when configured. A nil client means Redis-backed
// features (job locks, status cache) run in their local fallback mode.
func InitRedis(ctx context.Context, s RedisSettings) (*redis.Client, error) {
	if !s.Enabled() {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     s.Addr,
		Password: s.Password,
		DB:       s.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}
