package requests

import (
	"context"
	"sync"

	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// MemoryQueue — процессная очередь запросов с жёсткой ёмкостью.
// Переполнение не блокирует командный слой, а сразу возвращает
// domain.ErrQueueFull, чтобы бот мог ответить пользователю отказом.
type MemoryQueue struct {
	mu       sync.Mutex
	items    []domain.Request
	capacity int
}

var _ domain.RequestQueue = (*MemoryQueue)(nil)

// NewMemoryQueue создаёт очередь на capacity запросов.
func NewMemoryQueue(capacity int) *MemoryQueue {
	return &MemoryQueue{capacity: capacity}
}

// Enqueue добавляет запрос либо возвращает ErrQueueFull.
func (q *MemoryQueue) Enqueue(_ context.Context, req domain.Request) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) >= q.capacity {
		return domain.ErrQueueFull
	}
	q.items = append(q.items, req)
	metrics.RequestQueueDepth.Set(float64(len(q.items)))
	return nil
}

// Drain забирает всё накопленное, не дожидаясь новых запросов.
func (q *MemoryQueue) Drain(_ context.Context) ([]domain.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, nil
	}
	batch := q.items
	q.items = nil
	metrics.RequestQueueDepth.Set(0)
	return batch, nil
}
