package updater

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// Config задаёт параметры цикла опроса одного источника.
type Config struct {
	// Interval — пауза между полными проходами по подпискам.
	Interval time.Duration
	// UserPace — минимальный интервал между запросами профилей,
	// чтобы не упираться в лимиты апстрима.
	UserPace time.Duration
	// BatchSize — сколько свежих элементов запрашивать на пользователя.
	BatchSize int
	// NotFoundTTLSeconds — на сколько кэшировать отсутствие профиля.
	NotFoundTTLSeconds int
}

// Scheduler опрашивает один источник: обходит подписки, выбирает свежие
// элементы, отсеивает доставленные и рассылает остаток по чатам.
// На каждый источник поднимается свой экземпляр в своей горутине.
type Scheduler struct {
	provider   domain.ContentProvider
	store      domain.SubscriptionStore
	dispatcher domain.Dispatcher
	media      domain.MediaCache
	cache      domain.Cache
	filter     *DedupFilter
	limiter    *rate.Limiter
	cfg        Config
	log        zerolog.Logger
}

// NewScheduler создаёт планировщик для одного источника.
func NewScheduler(provider domain.ContentProvider, store domain.SubscriptionStore, dispatcher domain.Dispatcher, media domain.MediaCache, cache domain.Cache, cfg Config, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		provider:   provider,
		store:      store,
		dispatcher: dispatcher,
		media:      media,
		cache:      cache,
		filter:     NewDedupFilter(store, log),
		limiter:    rate.NewLimiter(rate.Every(cfg.UserPace), 1),
		cfg:        cfg,
		log:        log.With().Str("provider", string(provider.Tag())).Logger(),
	}
}

// Run крутит цикл опроса до отмены контекста.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.cfg.Interval).Msg("планировщик источника запущен")
	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			s.log.Info().Msg("планировщик источника остановлен")
			return
		case <-ticker.C:
		}
	}
}

// runOnce выполняет один полный проход по подпискам источника.
func (s *Scheduler) runOnce(ctx context.Context) {
	tag := s.provider.Tag()
	subs, err := s.store.GetSubscriptions(ctx, tag)
	if err != nil {
		s.log.Error().Err(err).Msg("не смогли получить подписки")
		metrics.UpdaterRuns.WithLabelValues(string(tag), "error").Inc()
		return
	}

	for _, sub := range subs {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
		if err := s.processUser(ctx, sub); err != nil {
			// Ошибка одного пользователя не роняет проход: остальные
			// подписки обрабатываются, пользователь попадёт в следующий цикл.
			s.log.Warn().Err(err).Str("user", sub.UserID).Msg("пользователь пропущен")
			metrics.UpdaterUserErrors.WithLabelValues(string(tag)).Inc()
		}
	}
	metrics.UpdaterRuns.WithLabelValues(string(tag), "ok").Inc()
}

// processUser выбирает и рассылает свежий контент одного пользователя.
func (s *Scheduler) processUser(ctx context.Context, sub domain.UserSubscription) error {
	user, err := s.resolveUser(ctx, sub.UserID)
	if err != nil {
		return err
	}
	if user == nil {
		// Профиль не найден: отметка уже в кэше, подписка остаётся.
		return nil
	}

	for _, kind := range domain.Kinds() {
		chats := sub.ChatsFor(kind)
		if len(chats) == 0 {
			continue
		}
		if err := s.deliverKind(ctx, *user, sub.UserID, kind, chats); err != nil {
			return err
		}
	}
	return nil
}

// resolveUser резолвит профиль с кэшированием отрицательного результата,
// чтобы не дёргать апстрим каждый цикл ради удалённого аккаунта.
func (s *Scheduler) resolveUser(ctx context.Context, userID string) (*domain.UserInfo, error) {
	key := notFoundKey(s.provider.Tag(), userID)
	// Любая ошибка кэша трактуется как промах: кэш здесь только экономия.
	if _, err := s.cache.Get(ctx, key); err == nil {
		return nil, nil
	}

	user, err := s.provider.GetUserInfo(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("профиль %s: %w", userID, err)
	}
	if user == nil {
		if err := s.cache.Set(ctx, key, []byte("1"), s.cfg.NotFoundTTLSeconds); err != nil {
			s.log.Warn().Err(err).Str("user", userID).Msg("не смогли закэшировать отсутствие профиля")
		}
		s.log.Info().Str("user", userID).Msg("профиль не найден, пропускаем до истечения кэша")
		return nil, nil
	}
	return user, nil
}

// deliverKind рассылает свежие элементы одного вида подписки по чатам.
func (s *Scheduler) deliverKind(ctx context.Context, user domain.UserInfo, userID string, kind domain.SubscriptionKind, chats []string) error {
	tag := s.provider.Tag()
	items, err := s.provider.GetContent(ctx, user.ID, s.cfg.BatchSize, kind)
	if err != nil {
		return fmt.Errorf("контент %s/%s: %w", userID, kind, err)
	}

	fresh := s.filter.FilterNew(ctx, tag, userID, kind, items)
	if len(fresh) == 0 {
		return nil
	}

	// Источник отдаёт новые первыми, а в чат элементы должны приходить
	// в хронологическом порядке.
	for i := len(fresh) - 1; i >= 0; i-- {
		item := fresh[i]
		if err := s.media.Fetch(ctx, item.Attachments); err != nil {
			return fmt.Errorf("вложения %s: %w", item.ID, err)
		}

		out := domain.Output{Kind: domain.OutBySubscription, SubKind: kind}
		delivered := false
		for _, chatID := range chats {
			if err := s.dispatcher.Send(ctx, s.provider, user, chatID, item, out); err != nil {
				s.log.Warn().Err(err).
					Str("chat", chatID).
					Str("content_id", item.ID).
					Msg("не смогли отправить элемент в чат")
				continue
			}
			delivered = true
		}
		// Элемент считается доставленным, если его получил хотя бы один
		// чат: недоставившиеся чаты не должны вызывать повторную рассылку
		// в остальные.
		if delivered {
			if err := s.store.RecordDelivered(ctx, tag, item.ID, userID, kind); err != nil {
				return fmt.Errorf("запись доставки %s: %w", item.ID, err)
			}
		}
	}
	return nil
}

func notFoundKey(provider domain.Provider, userID string) string {
	return "notfound:" + string(provider) + ":" + userID
}
