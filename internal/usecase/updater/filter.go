package updater

import (
	"context"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/domain"
)

// DedupFilter отсекает уже доставленные элементы по множеству доставленного
// в хранилище. При ошибке проверки элемент считается доставленным: лучше
// пропустить один элемент, чем заспамить чат дублями.
type DedupFilter struct {
	store domain.SubscriptionStore
	log   zerolog.Logger
}

// NewDedupFilter создаёт фильтр дублей.
func NewDedupFilter(store domain.SubscriptionStore, log zerolog.Logger) *DedupFilter {
	return &DedupFilter{store: store, log: log}
}

// FilterNew возвращает элементы, ещё не доставлявшиеся данному пользователю
// по данному виду подписки, сохраняя исходный порядок.
func (f *DedupFilter) FilterNew(ctx context.Context, provider domain.Provider, userID string, kind domain.SubscriptionKind, items []domain.ContentItem) []domain.ContentItem {
	fresh := make([]domain.ContentItem, 0, len(items))
	for _, item := range items {
		delivered, err := f.store.IsDelivered(ctx, provider, item.ID, userID, kind)
		if err != nil {
			f.log.Warn().Err(err).
				Str("provider", string(provider)).
				Str("content_id", item.ID).
				Msg("проверка доставленности не удалась, пропускаем элемент")
			continue
		}
		if !delivered {
			fresh = append(fresh, item)
		}
	}
	return fresh
}
