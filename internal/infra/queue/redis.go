package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// RedisQueue хранит очередь запросов в списке Redis. Переживает рестарт
// процесса: невыполненные запросы дождутся следующего запуска.
type RedisQueue struct {
	client   *redis.Client
	key      string
	capacity int
}

var _ domain.RequestQueue = (*RedisQueue)(nil)

// NewRedis создаёт очередь поверх списка key.
func NewRedis(client *redis.Client, key string, capacity int) *RedisQueue {
	return &RedisQueue{client: client, key: key, capacity: capacity}
}

// Enqueue добавляет запрос в хвост списка либо возвращает ErrQueueFull.
func (q *RedisQueue) Enqueue(ctx context.Context, req domain.Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("сериализация запроса: %w", err)
	}

	start := time.Now()
	depth, err := q.client.LLen(ctx, q.key).Result()
	metrics.ObserveNetworkRequest("redis", "llen", "request_queue", start, err)
	if err != nil {
		return fmt.Errorf("глубина очереди: %w", err)
	}
	if depth >= int64(q.capacity) {
		return domain.ErrQueueFull
	}

	start = time.Now()
	err = q.client.RPush(ctx, q.key, body).Err()
	metrics.ObserveNetworkRequest("redis", "rpush", "request_queue", start, err)
	if err != nil {
		return fmt.Errorf("постановка в очередь: %w", err)
	}
	metrics.RequestQueueDepth.Set(float64(depth + 1))
	return nil
}

// Drain забирает всё накопленное, не блокируясь на пустом списке.
func (q *RedisQueue) Drain(ctx context.Context) ([]domain.Request, error) {
	var batch []domain.Request
	for {
		start := time.Now()
		raw, err := q.client.LPopCount(ctx, q.key, q.capacity).Result()
		if err == redis.Nil {
			metrics.ObserveNetworkRequest("redis", "lpop", "request_queue", start, nil)
			break
		}
		metrics.ObserveNetworkRequest("redis", "lpop", "request_queue", start, err)
		if err != nil {
			return batch, fmt.Errorf("выборка из очереди: %w", err)
		}
		if len(raw) == 0 {
			break
		}
		for _, item := range raw {
			var req domain.Request
			if err := json.Unmarshal([]byte(item), &req); err != nil {
				// Нечитаемый запрос не возвращается в очередь: повтор
				// не сделает его читаемым.
				continue
			}
			batch = append(batch, req)
		}
		if len(raw) < q.capacity {
			break
		}
	}
	metrics.RequestQueueDepth.Set(0)
	return batch, nil
}
