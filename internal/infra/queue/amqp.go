package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// AMQPQueue хранит очередь запросов в брокере. Очередь объявляется с
// жёстким пределом длины и политикой reject-publish, поэтому перелив
// виден издателю как неподтверждённая публикация.
type AMQPQueue struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

var _ domain.RequestQueue = (*AMQPQueue)(nil)

// NewAMQP подключается к брокеру и объявляет очередь queue на capacity
// запросов.
func NewAMQP(url, queue string, capacity int) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("подключение к брокеру: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("режим подтверждений: %w", err)
	}
	_, err = ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-max-length": int32(capacity),
		"x-overflow":   "reject-publish",
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("объявление очереди %s: %w", queue, err)
	}
	return &AMQPQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Close закрывает канал и соединение.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		return err
	}
	return q.conn.Close()
}

// Enqueue публикует запрос и ждёт подтверждения брокера.
func (q *AMQPQueue) Enqueue(ctx context.Context, req domain.Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("сериализация запроса: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	start := time.Now()
	conf, err := q.ch.PublishWithDeferredConfirmWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		metrics.ObserveNetworkRequest("amqp", "publish", "request_queue", start, err)
		return fmt.Errorf("публикация запроса: %w", err)
	}
	acked, err := conf.WaitContext(ctx)
	metrics.ObserveNetworkRequest("amqp", "publish", "request_queue", start, err)
	if err != nil {
		return fmt.Errorf("подтверждение публикации: %w", err)
	}
	if !acked {
		// reject-publish: брокер не принял сообщение, очередь полна.
		return domain.ErrQueueFull
	}
	return nil
}

// Drain выбирает всё накопленное через basic.get, не подписываясь на
// очередь: процессору нужна партия на цикл, а не поток.
func (q *AMQPQueue) Drain(ctx context.Context) ([]domain.Request, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var batch []domain.Request
	for {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		start := time.Now()
		msg, ok, err := q.ch.Get(q.queue, true)
		metrics.ObserveNetworkRequest("amqp", "get", "request_queue", start, err)
		if err != nil {
			return batch, fmt.Errorf("выборка из очереди: %w", err)
		}
		if !ok {
			return batch, nil
		}
		var req domain.Request
		if err := json.Unmarshal(msg.Body, &req); err != nil {
			continue
		}
		batch = append(batch, req)
	}
}
