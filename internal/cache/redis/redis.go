package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"
	"github.com/gomarket-app/backend/internal/config"
	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"
)

type Cache struct {
	cli *redis.Client
}

func New(conf config.RedisConfig) *Cache {
	cli := redis.NewClient(
		&redis.Options{
			Addr:     conf.Addr,
			Password: conf.Password,
		},
	)

	if err := cli.Ping(context.Background()).Err(); err != nil {
		zap.L().Fatal("failed to connect to redis", zap.Error(err))
	}

	return &Cache{cli: cli}
}

func (c *Cache) Close() error {
	return c.cli.Close()
}

func (c *Cache) GetToStruct(ctx context.Context, key string, dest any) error {
	const op = "cache.GetToStruct.redis"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	val, err := c.cli.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}

	return json.Unmarshal(val, dest)
}

func (c *Cache) Set(ctx context.Context, t time.Duration, key string, val any) {
	const op = "cache.Set.redis"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	bytes, err := json.Marshal(val)
	if err != nil {
		zap.L().Error("failed to marshal cache value", zap.String("op", op), zap.Error(err))
		return
	}

	if err = c.cli.Set(ctx, key, bytes, t).Err(); err != nil {
		zap.L().Error("failed to set cache", zap.String("op", op), zap.Error(err))
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	const op = "cache.Delete.redis"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	if err := c.cli.Del(ctx, key).Err(); err != nil {
		zap.L().Error("failed to delete cache", zap.String("op", op), zap.Error(err))
	}
}

func (c *Cache) InvalidateKeysByPattern(ctx context.Context, pattern string) {
	const op = "cache.InvalidateKeysByPattern.redis"

	span, ctx := opentracing.StartSpanFromContext(ctx, op)
	defer span.Finish()

	iter := c.cli.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := c.cli.Del(ctx, iter.Val()).Err(); err != nil {
			zap.L().Error(
				"failed to delete cache key",
				zap.String("op", op),
				zap.String("key", iter.Val()),
				zap.Error(err),
			)
		}
	}

	if err := iter.Err(); err != nil {
		zap.L().Error("failed to scan cache keys", zap.String("op", op), zap.Error(err))
	}
}
