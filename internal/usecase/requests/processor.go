package requests

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/providers"
	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// Processor разбирает очередь запросов от командного слоя. Запросы одной
// партии выполняются параллельно; провалившиеся остаются у процессора и
// повторяются в следующем цикле вместе со свежими.
type Processor struct {
	queue      domain.RequestQueue
	registry   *providers.Registry
	store      domain.SubscriptionStore
	dispatcher domain.Dispatcher
	media      domain.MediaCache
	interval   time.Duration
	batchSize  int
	log        zerolog.Logger

	pending []domain.Request
}

// NewProcessor создаёт процессор запросов.
func NewProcessor(queue domain.RequestQueue, registry *providers.Registry, store domain.SubscriptionStore, dispatcher domain.Dispatcher, media domain.MediaCache, interval time.Duration, batchSize int, log zerolog.Logger) *Processor {
	return &Processor{
		queue:      queue,
		registry:   registry,
		store:      store,
		dispatcher: dispatcher,
		media:      media,
		interval:   interval,
		batchSize:  batchSize,
		log:        log,
	}
}

// Run крутит цикл разбора очереди до отмены контекста.
func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.log.Info().Dur("interval", p.interval).Msg("процессор запросов запущен")
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("процессор запросов остановлен")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

// runOnce забирает партию из очереди и выполняет её вместе с остатком
// прошлых циклов.
func (p *Processor) runOnce(ctx context.Context) {
	fresh, err := p.queue.Drain(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("не смогли забрать запросы из очереди")
	}
	batch := append(p.pending, fresh...)
	if len(batch) == 0 {
		return
	}
	if len(p.pending) > 0 {
		metrics.RequestRetries.Add(float64(len(p.pending)))
	}
	p.pending = nil

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, req := range batch {
		wg.Add(1)
		go func(req domain.Request) {
			defer wg.Done()
			if err := p.handle(ctx, req); err != nil {
				p.log.Warn().Err(err).
					Str("request_id", req.ID).
					Str("op", string(req.Op)).
					Msg("запрос не выполнен, вернётся в очередь")
				metrics.RequestsProcessed.WithLabelValues(string(req.Op), "error").Inc()
				mu.Lock()
				p.pending = append(p.pending, req)
				mu.Unlock()
				return
			}
			metrics.RequestsProcessed.WithLabelValues(string(req.Op), "ok").Inc()
		}(req)
	}
	wg.Wait()
}

func (p *Processor) handle(ctx context.Context, req domain.Request) error {
	provider, ok := p.registry.Get(req.Provider)
	if !ok {
		// Некому обработать: повторять бессмысленно, отвечаем отказом.
		return p.dispatcher.SendText(ctx, req.ChatID, "Источник временно недоступен.")
	}
	switch req.Op {
	case domain.OpLastN:
		return p.handleLastN(ctx, provider, req)
	case domain.OpSubscribe:
		return p.handleSubscribe(ctx, provider, req)
	case domain.OpLink:
		return p.handleLink(ctx, provider, req)
	default:
		p.log.Error().Str("op", string(req.Op)).Msg("неизвестная операция, запрос отброшен")
		return nil
	}
}

// handleLastN отправляет в чат последние N элементов пользователя.
// Дедупликация здесь не применяется: пользователь явно попросил показать.
func (p *Processor) handleLastN(ctx context.Context, provider domain.ContentProvider, req domain.Request) error {
	user, err := provider.GetUserInfo(ctx, req.User)
	if err != nil {
		return fmt.Errorf("профиль %s: %w", req.User, err)
	}
	if user == nil {
		// Ответ "не найдено" — успешный исход запроса, а не ошибка.
		return p.dispatcher.SendText(ctx, req.ChatID, "User "+req.User+" not found.")
	}

	items, err := provider.GetContent(ctx, user.ID, req.Count, req.Kind)
	if err != nil {
		return fmt.Errorf("контент %s: %w", req.User, err)
	}
	if len(items) > req.Count {
		items = items[:req.Count]
	}

	out := domain.Output{Kind: domain.OutBySubscription, SubKind: req.Kind}
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if err := p.media.Fetch(ctx, item.Attachments); err != nil {
			return fmt.Errorf("вложения %s: %w", item.ID, err)
		}
		if err := p.dispatcher.Send(ctx, provider, *user, req.ChatID, item, out); err != nil {
			return fmt.Errorf("отправка %s: %w", item.ID, err)
		}
	}
	return nil
}

// handleSubscribe оформляет подписку чата. Первому подписчику пользователя
// текущий хвост ленты записывается доставленным без отправки, чтобы
// планировщик не вывалил в чат всю историю разом.
func (p *Processor) handleSubscribe(ctx context.Context, provider domain.ContentProvider, req domain.Request) error {
	tag := provider.Tag()
	subscribed, err := p.store.IsSubscribed(ctx, tag, req.User, req.ChatID, req.Kind)
	if err != nil {
		return fmt.Errorf("проверка подписки: %w", err)
	}
	if subscribed {
		return nil
	}

	user, err := provider.GetUserInfo(ctx, req.User)
	if err != nil {
		return fmt.Errorf("профиль %s: %w", req.User, err)
	}
	if user == nil {
		return p.dispatcher.SendText(ctx, req.ChatID, "User "+req.User+" not found.")
	}

	exists, err := p.store.UserExists(ctx, tag, req.User, req.Kind)
	if err != nil {
		return fmt.Errorf("проверка пользователя: %w", err)
	}
	if !exists {
		if err := p.backfill(ctx, provider, user.ID, req.User, req.Kind); err != nil {
			return err
		}
	}

	if err := p.store.Subscribe(ctx, tag, req.User, req.ChatID, req.Kind); err != nil {
		return fmt.Errorf("запись подписки: %w", err)
	}
	return p.dispatcher.SendText(ctx, req.ChatID, "You have subscribed for "+req.User)
}

// backfill записывает текущий хвост ленты доставленным без отправки.
func (p *Processor) backfill(ctx context.Context, provider domain.ContentProvider, providerUserID, userID string, kind domain.SubscriptionKind) error {
	items, err := provider.GetContent(ctx, providerUserID, p.batchSize, kind)
	if err != nil {
		return fmt.Errorf("хвост ленты %s: %w", userID, err)
	}
	for _, item := range items {
		if err := p.store.RecordDelivered(ctx, provider.Tag(), item.ID, userID, kind); err != nil {
			return fmt.Errorf("запись хвоста %s: %w", item.ID, err)
		}
	}
	return nil
}

// handleLink отправляет в чат элемент, который пользователь переслал ссылкой.
func (p *Processor) handleLink(ctx context.Context, provider domain.ContentProvider, req domain.Request) error {
	item, err := provider.GetContentForLink(ctx, req.Link)
	if err != nil {
		return fmt.Errorf("резолв ссылки %s: %w", req.Link, err)
	}
	if item == nil {
		return fmt.Errorf("ссылка %s не распозналась источником", req.Link)
	}
	if err := p.media.Fetch(ctx, item.Attachments); err != nil {
		return fmt.Errorf("вложения %s: %w", item.ID, err)
	}
	out := domain.Output{Kind: domain.OutByLink, SharedBy: req.Requester}
	if err := p.dispatcher.Send(ctx, provider, item.Author, req.ChatID, *item, out); err != nil {
		return fmt.Errorf("отправка %s: %w", item.ID, err)
	}
	return nil
}
