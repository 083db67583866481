package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// ErrMiss возвращается при отсутствии ключа.
var ErrMiss = errors.New("ключ не найден")

// RedisCache реализует domain.Cache через Redis.
type RedisCache struct {
	client *redis.Client
}

var _ domain.Cache = (*RedisCache)(nil)

// NewRedis создаёт кэш.
func NewRedis(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set задаёт значение с TTL в секундах.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	start := time.Now()
	err := c.client.Set(ctx, key, value, time.Duration(ttlSeconds)*time.Second).Err()
	metrics.ObserveNetworkRequest("redis", "set", "cache", start, err)
	return err
}

// Get возвращает значение или ErrMiss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := c.client.Get(ctx, key).Bytes()
	metrics.ObserveNetworkRequest("redis", "get", "cache", start, err)
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return data, err
}
