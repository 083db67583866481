package domain

import (
	"strconv"

	"github.com/google/uuid"
)

// RequestOp различает операции, которые несёт очередь запросов.
type RequestOp string

const (
	OpLastN     RequestOp = "lastn"
	OpSubscribe RequestOp = "subscribe"
	OpLink      RequestOp = "link"
)

// TelegramUser описывает пользователя Telegram, приславшего запрос.
type TelegramUser struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Link возвращает ссылку на профиль пользователя Telegram.
func (u TelegramUser) Link() string {
	return "tg://user?id=" + strconv.FormatInt(u.ID, 10)
}

// Request — элемент очереди запросов. Живёт только в памяти процесса
// (или в брокере при внешнем бекенде) и при ошибке обработки
// возвращается в очередь без изменений.
type Request struct {
	ID        string           `json:"id"`
	Op        RequestOp        `json:"op"`
	Provider  Provider         `json:"provider"`
	Kind      SubscriptionKind `json:"kind"`
	ChatID    string           `json:"chat_id"`
	User      string           `json:"user,omitempty"`
	Count     int              `json:"count,omitempty"`
	Link      string           `json:"link,omitempty"`
	Requester TelegramUser     `json:"requester"`
}

// NewRequest создаёт запрос с новым идентификатором для трассировки.
func NewRequest(op RequestOp, provider Provider) Request {
	return Request{ID: uuid.NewString(), Op: op, Provider: provider}
}
