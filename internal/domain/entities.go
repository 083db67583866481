package domain

import "time"

// Provider идентифицирует внешний источник контента.
type Provider string

const (
	ProviderTikTok    Provider = "tiktok"
	ProviderTwitter   Provider = "twitter"
	ProviderInstagram Provider = "instagram"
)

// SubscriptionKind определяет категорию контента, на которую подписан чат.
type SubscriptionKind string

const (
	KindLikes SubscriptionKind = "likes"
	KindPosts SubscriptionKind = "posts"
)

// Kinds перечисляет виды подписок в порядке обхода планировщиком.
func Kinds() []SubscriptionKind {
	return []SubscriptionKind{KindPosts, KindLikes}
}

// UserInfo описывает профиль пользователя внешнего источника.
type UserInfo struct {
	ID       string
	Username string
	Nickname string
}

// MediaKind задаёт тип вложения.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Ext возвращает расширение файла для данного типа вложения.
func (m MediaKind) Ext() string {
	if m == MediaVideo {
		return "mp4"
	}
	return "jpg"
}

// Attachment описывает скачиваемое вложение элемента контента.
type Attachment struct {
	URL  string
	Name string
	Kind MediaKind
}

// FileName возвращает стабильное имя файла в локальном кэше.
func (a Attachment) FileName() string {
	return a.Name + "." + a.Kind.Ext()
}

// ContentItem представляет один элемент ленты источника.
// ID стабилен между выборками одного и того же логического элемента.
type ContentItem struct {
	ID          string
	Text        string
	Link        string
	Author      UserInfo
	Attachments []Attachment
}

// HasAttachments сообщает, нужно ли отправлять элемент медиагруппой.
func (c ContentItem) HasAttachments() bool {
	return len(c.Attachments) > 0
}

// UserSubscription хранит подписанные чаты пользователя по видам подписки.
// Запись не удаляется физически: пустой список чатов означает отписку.
type UserSubscription struct {
	UserID string
	Chats  map[SubscriptionKind][]string
}

// ChatsFor возвращает чаты, подписанные на данный вид.
func (u UserSubscription) ChatsFor(kind SubscriptionKind) []string {
	return u.Chats[kind]
}

// ChatInfo — обратный индекс: на каких пользователей подписан чат.
type ChatInfo struct {
	ChatID string
	Users  map[SubscriptionKind][]string
}

// UsersFor возвращает пользователей, на которых чат подписан по данному виду.
func (c ChatInfo) UsersFor(kind SubscriptionKind) []string {
	return c.Users[kind]
}

// DeliveredContent описывает один доставленный элемент.
type DeliveredContent struct {
	ContentID   string
	DeliveredAt time.Time
}
