// Package redisconn opens the Redis connection shared by the job queue and
// the event channel.
package redisconn

import (
	"context"
	"fmt"

	"github.com/phrazzld/goalforge/internal/config"
	"github.com/redis/go-redis/v9"
)

// Open connects to Redis and verifies the connection with a PING bounded by
// the configured dial timeout.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
