package coordstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CachedKV wraps a durable KV with a Redis read-through cache, adapted
// from the teacher's RedisIdempotencyStore. Reads try Redis first and
// fall back to the durable KV on a miss; writes go to both so a restart
// of the cache never serves stale progress.
type CachedKV struct {
	durable KV
	redis   *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
}

func NewCachedKV(durable KV, host string, port int, password string, db int, ttl time.Duration, logger *zap.Logger) (*CachedKV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &CachedKV{durable: durable, redis: client, ttl: ttl, logger: logger}, nil
}

func (c *CachedKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err == nil {
		return data, nil
	}
	if err != redis.Nil {
		c.logger.Warn("redis read-through cache miss due to error, falling back to durable store", zap.Error(err))
	}

	value, err := c.durable.Get(ctx, key)
	if err != nil || value == nil {
		return value, err
	}
	if setErr := c.redis.Set(ctx, key, value, c.ttl).Err(); setErr != nil {
		c.logger.Warn("failed to warm redis cache", zap.Error(setErr))
	}
	return value, nil
}

func (c *CachedKV) Put(ctx context.Context, key string, value []byte) error {
	if err := c.durable.Put(ctx, key, value); err != nil {
		return err
	}
	if err := c.redis.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to update redis cache after durable write", zap.Error(err))
	}
	return nil
}
