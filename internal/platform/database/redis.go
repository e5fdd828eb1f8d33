// File: internal/platform/database/redis.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"profile_hub_backend/internal/config"
)

// NewRedis connects to the profile store and verifies the connection.
func NewRedis(cfg *config.Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	opts.PoolSize = 10
	opts.MinIdleConns = 5
	opts.ConnMaxIdleTime = 5 * time.Minute
	opts.ConnMaxLifetime = 30 * time.Minute

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping profile store: %w", err)
	}

	return rdb, nil
}

// CloseRedis closes the store client, ignoring close errors at shutdown.
func CloseRedis(rdb *redis.Client) {
	if rdb != nil {
		_ = rdb.Close()
	}
}
