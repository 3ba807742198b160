package throttle

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisCounter is the shared counter store for multi-instance
// deployments. Counters expire with the window; no durable state.
type RedisCounter struct {
	cli *redis.Client
}

func NewRedisCounter(cli *redis.Client) *RedisCounter {
	return &RedisCounter{cli: cli}
}

func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// First hit in a window owns setting its expiry.
	if count == 1 {
		if err = c.cli.Expire(ctx, key, window).Err(); err != nil {
			return 0, err
		}
	}

	return count, nil
}

func (c *RedisCounter) Close() error {
	return c.cli.Close()
}
