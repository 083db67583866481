package domain

import "context"

// OutputKind определяет подачу подписи к отправляемому контенту.
type OutputKind int

const (
	// OutBySubscription — элемент пришёл из ленты, на которую подписан чат.
	OutBySubscription OutputKind = iota
	// OutByLink — элемент переслал пользователь ссылкой.
	OutByLink
)

// Output описывает контекст отправки для построения подписи.
type Output struct {
	Kind     OutputKind
	SubKind  SubscriptionKind
	SharedBy TelegramUser
}

// ContentProvider — единый интерфейс внешнего источника контента.
// "Не найдено" всегда выражается как nil, nil, а не ошибка.
type ContentProvider interface {
	// Name возвращает человекочитаемое имя источника для логов.
	Name() string
	// Tag возвращает идентификатор источника.
	Tag() Provider
	// GetUserInfo резолвит профиль по хендлу.
	GetUserInfo(ctx context.Context, handle string) (*UserInfo, error)
	// GetContent возвращает не более count свежих элементов, новые первыми.
	GetContent(ctx context.Context, userID string, count int, kind SubscriptionKind) ([]ContentItem, error)
	// GetContentForLink резолвит один элемент по прямой ссылке.
	GetContentForLink(ctx context.Context, link string) (*ContentItem, error)
	// Caption строит подпись к элементу для отправки в чат.
	Caption(user UserInfo, item ContentItem, out Output) string
}

// SubscriptionStore — персистентное хранилище подписок, обратного индекса
// чатов и множеств доставленного контента. Единственный источник истины;
// конфликтующие записи сериализует само хранилище.
type SubscriptionStore interface {
	GetSubscriptions(ctx context.Context, provider Provider) ([]UserSubscription, error)
	GetChatInfo(ctx context.Context, provider Provider, chatID string) (*ChatInfo, error)
	Subscribe(ctx context.Context, provider Provider, userID, chatID string, kind SubscriptionKind) error
	Unsubscribe(ctx context.Context, provider Provider, userID, chatID string, kind SubscriptionKind) error
	RecordDelivered(ctx context.Context, provider Provider, contentID, userID string, kind SubscriptionKind) error
	IsDelivered(ctx context.Context, provider Provider, contentID, userID string, kind SubscriptionKind) (bool, error)
	IsSubscribed(ctx context.Context, provider Provider, userID, chatID string, kind SubscriptionKind) (bool, error)
	UserExists(ctx context.Context, provider Provider, userID string, kind SubscriptionKind) (bool, error)
}

// RequestQueue принимает запросы от командного слоя и отдаёт их процессору.
// Enqueue не блокируется на переполненной очереди, а возвращает ErrQueueFull.
type RequestQueue interface {
	Enqueue(ctx context.Context, req Request) error
	// Drain неблокирующе забирает всё накопленное; новые поступления во
	// время обработки попадут в следующую партию.
	Drain(ctx context.Context) ([]Request, error)
}

// Dispatcher отправляет один элемент контента в один чат. Подпись
// строит адаптер источника. Доставленность в хранилище фиксирует
// вызывающая сторона.
type Dispatcher interface {
	Send(ctx context.Context, provider ContentProvider, user UserInfo, chatID string, item ContentItem, out Output) error
	SendText(ctx context.Context, chatID, text string) error
}

// MediaCache — локальный кэш вложений, адресуемый по имени файла.
type MediaCache interface {
	// Fetch докачивает отсутствующие вложения. Повторная загрузка уже
	// существующего файла — no-op.
	Fetch(ctx context.Context, attachments []Attachment) error
	Path(att Attachment) string
	Has(att Attachment) bool
}

// Cache — простое TTL-хранилище для служебных отметок.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Get(ctx context.Context, key string) ([]byte, error)
}
