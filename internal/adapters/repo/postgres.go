package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// Postgres реализует domain.SubscriptionStore на основе pgxpool.
//
// Схема:
//
//	subscriptions(provider, user_id, kind, chat_id, added_at)      PK(provider, user_id, kind, chat_id)
//	chat_index(provider, chat_id, kind, user_id)                   PK(provider, chat_id, kind, user_id)
//	delivered_content(provider, user_id, kind, content_id, delivered_at)
//	                                                               PK(provider, user_id, kind, content_id)
//
// Все три таблицы ведут себя как множества: вставка идемпотентна
// через ON CONFLICT DO NOTHING.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ domain.SubscriptionStore = (*Postgres)(nil)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) connCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

// GetSubscriptions возвращает все подписки источника, сгруппированные
// по пользователям.
func (p *Postgres) GetSubscriptions(ctx context.Context, provider domain.Provider) ([]domain.UserSubscription, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT user_id, kind, chat_id
FROM subscriptions
WHERE provider = $1
ORDER BY user_id, kind, added_at
`, provider)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_list", "subscriptions", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byUser := make(map[string]*domain.UserSubscription)
	order := make([]string, 0)
	for rows.Next() {
		var userID, kind, chatID string
		if err := rows.Scan(&userID, &kind, &chatID); err != nil {
			return nil, err
		}
		sub, ok := byUser[userID]
		if !ok {
			sub = &domain.UserSubscription{UserID: userID, Chats: make(map[domain.SubscriptionKind][]string)}
			byUser[userID] = sub
			order = append(order, userID)
		}
		k := domain.SubscriptionKind(kind)
		sub.Chats[k] = append(sub.Chats[k], chatID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	subs := make([]domain.UserSubscription, 0, len(order))
	for _, userID := range order {
		subs = append(subs, *byUser[userID])
	}
	return subs, nil
}

// GetChatInfo возвращает обратный индекс чата или nil, если чат ни на
// кого не подписан.
func (p *Postgres) GetChatInfo(ctx context.Context, provider domain.Provider, chatID string) (*domain.ChatInfo, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `
SELECT kind, user_id
FROM chat_index
WHERE provider = $1 AND chat_id = $2
ORDER BY kind, user_id
`, provider, chatID)
	metrics.ObserveNetworkRequest("postgres", "chat_index_get", "chat_index", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	info := domain.ChatInfo{ChatID: chatID, Users: make(map[domain.SubscriptionKind][]string)}
	found := false
	for rows.Next() {
		var kind, userID string
		if err := rows.Scan(&kind, &userID); err != nil {
			return nil, err
		}
		found = true
		k := domain.SubscriptionKind(kind)
		info.Users[k] = append(info.Users[k], userID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &info, nil
}

// Subscribe добавляет чат в подписки пользователя и пользователя в индекс
// чата. Две записи выполняются отдельными запросами без транзакции: обе
// идемпотентны, и сбой между ними лечится повторной подпиской или отпиской.
func (p *Postgres) Subscribe(ctx context.Context, provider domain.Provider, userID, chatID string, kind domain.SubscriptionKind) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO subscriptions (provider, user_id, kind, chat_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (provider, user_id, kind, chat_id) DO NOTHING
`, provider, userID, kind, chatID)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_add", "subscriptions", start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	_, err = p.pool.Exec(ctx, `
INSERT INTO chat_index (provider, chat_id, kind, user_id)
VALUES ($1, $2, $3, $4)
ON CONFLICT (provider, chat_id, kind, user_id) DO NOTHING
`, provider, chatID, kind, userID)
	metrics.ObserveNetworkRequest("postgres", "chat_index_add", "chat_index", start, err)
	return err
}

// Unsubscribe убирает чат из подписок пользователя и пользователя из
// индекса чата. Запись пользователя не удаляется: пустой список чатов
// означает отписку.
func (p *Postgres) Unsubscribe(ctx context.Context, provider domain.Provider, userID, chatID string, kind domain.SubscriptionKind) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
DELETE FROM subscriptions
WHERE provider = $1 AND user_id = $2 AND kind = $3 AND chat_id = $4
`, provider, userID, kind, chatID)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_remove", "subscriptions", start, err)
	if err != nil {
		return err
	}

	start = time.Now()
	_, err = p.pool.Exec(ctx, `
DELETE FROM chat_index
WHERE provider = $1 AND chat_id = $2 AND kind = $3 AND user_id = $4
`, provider, chatID, kind, userID)
	metrics.ObserveNetworkRequest("postgres", "chat_index_remove", "chat_index", start, err)
	return err
}

// RecordDelivered помечает элемент доставленным подписчикам пользователя.
func (p *Postgres) RecordDelivered(ctx context.Context, provider domain.Provider, contentID, userID string, kind domain.SubscriptionKind) error {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `
INSERT INTO delivered_content (provider, user_id, kind, content_id, delivered_at)
VALUES ($1, $2, $3, $4, now())
ON CONFLICT (provider, user_id, kind, content_id) DO NOTHING
`, provider, userID, kind, contentID)
	metrics.ObserveNetworkRequest("postgres", "delivered_content_add", "delivered_content", start, err)
	return err
}

// IsDelivered проверяет, был ли элемент уже доставлен.
func (p *Postgres) IsDelivered(ctx context.Context, provider domain.Provider, contentID, userID string, kind domain.SubscriptionKind) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM delivered_content
    WHERE provider = $1 AND user_id = $2 AND kind = $3 AND content_id = $4
)
`, provider, userID, kind, contentID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "delivered_content_check", "delivered_content", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return exists, err
}

// IsSubscribed проверяет наличие пары (пользователь, чат) в подписках.
func (p *Postgres) IsSubscribed(ctx context.Context, provider domain.Provider, userID, chatID string, kind domain.SubscriptionKind) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM subscriptions
    WHERE provider = $1 AND user_id = $2 AND kind = $3 AND chat_id = $4
)
`, provider, userID, kind, chatID).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_check", "subscriptions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return exists, err
}

// UserExists сообщает, есть ли у пользователя хоть один подписанный чат
// данного вида. Используется при подписке для решения о бэкфилле.
func (p *Postgres) UserExists(ctx context.Context, provider domain.Provider, userID string, kind domain.SubscriptionKind) (bool, error) {
	ctx, cancel := p.connCtx(ctx)
	defer cancel()

	var exists bool
	start := time.Now()
	err := p.pool.QueryRow(ctx, `
SELECT EXISTS (
    SELECT 1 FROM subscriptions
    WHERE provider = $1 AND user_id = $2 AND kind = $3
)
`, provider, userID, kind).Scan(&exists)
	metrics.ObserveNetworkRequest("postgres", "subscriptions_user_exists", "subscriptions", start, err)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	return exists, err
}
