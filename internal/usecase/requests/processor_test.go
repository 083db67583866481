package requests

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/providers"
	"tg-feedwatch-bot/internal/domain"
)

type stubStore struct {
	subscribed map[string]bool
	users      map[string]bool
	recorded   []string
	subscribes []string
}

func newStubStore() *stubStore {
	return &stubStore{subscribed: map[string]bool{}, users: map[string]bool{}}
}

func subKey(userID, chatID string) string { return userID + "/" + chatID }

func (s *stubStore) GetSubscriptions(_ context.Context, _ domain.Provider) ([]domain.UserSubscription, error) {
	return nil, nil
}

func (s *stubStore) GetChatInfo(_ context.Context, _ domain.Provider, _ string) (*domain.ChatInfo, error) {
	return nil, nil
}

func (s *stubStore) Subscribe(_ context.Context, _ domain.Provider, userID, chatID string, _ domain.SubscriptionKind) error {
	s.subscribed[subKey(userID, chatID)] = true
	s.users[userID] = true
	s.subscribes = append(s.subscribes, subKey(userID, chatID))
	return nil
}

func (s *stubStore) Unsubscribe(_ context.Context, _ domain.Provider, userID, chatID string, _ domain.SubscriptionKind) error {
	delete(s.subscribed, subKey(userID, chatID))
	return nil
}

func (s *stubStore) RecordDelivered(_ context.Context, _ domain.Provider, contentID, _ string, _ domain.SubscriptionKind) error {
	s.recorded = append(s.recorded, contentID)
	return nil
}

func (s *stubStore) IsDelivered(_ context.Context, _ domain.Provider, _, _ string, _ domain.SubscriptionKind) (bool, error) {
	return false, nil
}

func (s *stubStore) IsSubscribed(_ context.Context, _ domain.Provider, userID, chatID string, _ domain.SubscriptionKind) (bool, error) {
	return s.subscribed[subKey(userID, chatID)], nil
}

func (s *stubStore) UserExists(_ context.Context, _ domain.Provider, userID string, _ domain.SubscriptionKind) (bool, error) {
	return s.users[userID], nil
}

type stubProvider struct {
	user       *domain.UserInfo
	items      []domain.ContentItem
	linkItem   *domain.ContentItem
	contentErr error
}

func (p *stubProvider) Name() string         { return "Stub" }
func (p *stubProvider) Tag() domain.Provider { return domain.ProviderTikTok }

func (p *stubProvider) GetUserInfo(_ context.Context, _ string) (*domain.UserInfo, error) {
	return p.user, nil
}

func (p *stubProvider) GetContent(_ context.Context, _ string, count int, _ domain.SubscriptionKind) ([]domain.ContentItem, error) {
	if p.contentErr != nil {
		return nil, p.contentErr
	}
	if count < len(p.items) {
		return p.items[:count], nil
	}
	return p.items, nil
}

func (p *stubProvider) GetContentForLink(_ context.Context, _ string) (*domain.ContentItem, error) {
	return p.linkItem, nil
}

func (p *stubProvider) Caption(_ domain.UserInfo, item domain.ContentItem, _ domain.Output) string {
	return item.ID
}

type sent struct {
	chatID    string
	contentID string
}

type stubDispatcher struct {
	items []sent
	texts []string
}

func (d *stubDispatcher) Send(_ context.Context, _ domain.ContentProvider, _ domain.UserInfo, chatID string, item domain.ContentItem, _ domain.Output) error {
	d.items = append(d.items, sent{chatID: chatID, contentID: item.ID})
	return nil
}

func (d *stubDispatcher) SendText(_ context.Context, _, text string) error {
	d.texts = append(d.texts, text)
	return nil
}

type stubMedia struct{}

func (stubMedia) Fetch(_ context.Context, _ []domain.Attachment) error { return nil }
func (stubMedia) Path(att domain.Attachment) string                    { return att.FileName() }
func (stubMedia) Has(_ domain.Attachment) bool                         { return true }

func newTestProcessor(q domain.RequestQueue, p domain.ContentProvider, store *stubStore, disp *stubDispatcher) *Processor {
	return NewProcessor(q, providers.NewRegistry(p), store, disp, stubMedia{}, time.Second, 5, zerolog.Nop())
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := q.Enqueue(ctx, domain.NewRequest(domain.OpLastN, domain.ProviderTikTok)); err != nil {
			t.Fatalf("очередь не должна быть полной: %v", err)
		}
	}
	if err := q.Enqueue(ctx, domain.NewRequest(domain.OpLastN, domain.ProviderTikTok)); !errors.Is(err, domain.ErrQueueFull) {
		t.Fatalf("ожидали ErrQueueFull, получили %v", err)
	}

	batch, err := q.Drain(ctx)
	if err != nil || len(batch) != 2 {
		t.Fatalf("ожидали забрать 2 запроса, получили %d (%v)", len(batch), err)
	}
	if err := q.Enqueue(ctx, domain.NewRequest(domain.OpLastN, domain.ProviderTikTok)); err != nil {
		t.Fatalf("после Drain очередь должна принимать запросы: %v", err)
	}
}

func TestProcessorSubscribeBackfillsWithoutSending(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{
		user: &domain.UserInfo{ID: "alice", Username: "alice"},
		items: []domain.ContentItem{
			{ID: "v5"}, {ID: "v4"}, {ID: "v3"}, {ID: "v2"}, {ID: "v1"},
		},
	}
	disp := &stubDispatcher{}
	q := NewMemoryQueue(10)

	req := domain.NewRequest(domain.OpSubscribe, domain.ProviderTikTok)
	req.User = "alice"
	req.ChatID = "100"
	req.Kind = domain.KindPosts
	_ = q.Enqueue(context.Background(), req)

	p := newTestProcessor(q, provider, store, disp)
	p.runOnce(context.Background())

	if len(store.recorded) != 5 {
		t.Fatalf("хвост ленты должен быть записан целиком, получили %v", store.recorded)
	}
	if len(disp.items) != 0 {
		t.Fatalf("при подписке контент не отправляется, получили %+v", disp.items)
	}
	if !store.subscribed[subKey("alice", "100")] {
		t.Fatal("подписка должна быть записана")
	}
	if len(disp.texts) != 1 {
		t.Fatalf("ожидали одно подтверждение, получили %v", disp.texts)
	}
}

func TestProcessorSubscribeSecondChatSkipsBackfill(t *testing.T) {
	store := newStubStore()
	store.users["alice"] = true
	provider := &stubProvider{
		user:  &domain.UserInfo{ID: "alice"},
		items: []domain.ContentItem{{ID: "v1"}},
	}
	disp := &stubDispatcher{}
	q := NewMemoryQueue(10)

	req := domain.NewRequest(domain.OpSubscribe, domain.ProviderTikTok)
	req.User = "alice"
	req.ChatID = "200"
	req.Kind = domain.KindPosts
	_ = q.Enqueue(context.Background(), req)

	p := newTestProcessor(q, provider, store, disp)
	p.runOnce(context.Background())

	if len(store.recorded) != 0 {
		t.Fatalf("повторный подписчик не должен вызывать бэкфилл, получили %v", store.recorded)
	}
	if !store.subscribed[subKey("alice", "200")] {
		t.Fatal("подписка второго чата должна быть записана")
	}
}

func TestProcessorSubscribeIdempotent(t *testing.T) {
	store := newStubStore()
	store.users["alice"] = true
	store.subscribed[subKey("alice", "100")] = true
	provider := &stubProvider{user: &domain.UserInfo{ID: "alice"}}
	disp := &stubDispatcher{}
	q := NewMemoryQueue(10)

	req := domain.NewRequest(domain.OpSubscribe, domain.ProviderTikTok)
	req.User = "alice"
	req.ChatID = "100"
	req.Kind = domain.KindPosts
	_ = q.Enqueue(context.Background(), req)

	p := newTestProcessor(q, provider, store, disp)
	p.runOnce(context.Background())

	if len(store.subscribes) != 0 {
		t.Fatalf("повторная подписка — тихий no-op, получили %v", store.subscribes)
	}
	if len(disp.texts) != 0 {
		t.Fatalf("повторная подписка не должна отвечать в чат, получили %v", disp.texts)
	}
}

func TestProcessorLastNUserNotFound(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{user: nil}
	disp := &stubDispatcher{}
	q := NewMemoryQueue(10)

	req := domain.NewRequest(domain.OpLastN, domain.ProviderTikTok)
	req.User = "ghost"
	req.ChatID = "100"
	req.Count = 3
	req.Kind = domain.KindPosts
	_ = q.Enqueue(context.Background(), req)

	p := newTestProcessor(q, provider, store, disp)
	p.runOnce(context.Background())

	if len(disp.texts) != 1 {
		t.Fatalf("ожидали ответ об отсутствии пользователя, получили %v", disp.texts)
	}
	if len(p.pending) != 0 {
		t.Fatalf("ответ 'не найдено' — успех, запрос не должен повторяться: %+v", p.pending)
	}
}

func TestProcessorLastNSendsOldestFirst(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{
		user:  &domain.UserInfo{ID: "alice"},
		items: []domain.ContentItem{{ID: "new"}, {ID: "mid"}, {ID: "old"}},
	}
	disp := &stubDispatcher{}
	q := NewMemoryQueue(10)

	req := domain.NewRequest(domain.OpLastN, domain.ProviderTikTok)
	req.User = "alice"
	req.ChatID = "100"
	req.Count = 2
	req.Kind = domain.KindPosts
	_ = q.Enqueue(context.Background(), req)

	p := newTestProcessor(q, provider, store, disp)
	p.runOnce(context.Background())

	if len(disp.items) != 2 {
		t.Fatalf("ожидали 2 отправки, получили %+v", disp.items)
	}
	if disp.items[0].contentID != "mid" || disp.items[1].contentID != "new" {
		t.Fatalf("ожидали хронологический порядок mid,new, получили %+v", disp.items)
	}
}

func TestProcessorRetriesFailedRequest(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{
		user:       &domain.UserInfo{ID: "alice"},
		contentErr: errors.New("апстрим недоступен"),
	}
	disp := &stubDispatcher{}
	q := NewMemoryQueue(10)

	req := domain.NewRequest(domain.OpLastN, domain.ProviderTikTok)
	req.User = "alice"
	req.ChatID = "100"
	req.Count = 1
	req.Kind = domain.KindPosts
	_ = q.Enqueue(context.Background(), req)

	p := newTestProcessor(q, provider, store, disp)
	p.runOnce(context.Background())

	if len(p.pending) != 1 || p.pending[0].ID != req.ID {
		t.Fatalf("провалившийся запрос должен остаться у процессора, получили %+v", p.pending)
	}

	provider.contentErr = nil
	provider.items = []domain.ContentItem{{ID: "v1"}}
	p.runOnce(context.Background())

	if len(p.pending) != 0 {
		t.Fatalf("после успеха запрос должен исчезнуть, получили %+v", p.pending)
	}
	if len(disp.items) != 1 {
		t.Fatalf("ожидали одну отправку после повтора, получили %+v", disp.items)
	}
}

func TestProcessorLinkDelivery(t *testing.T) {
	store := newStubStore()
	provider := &stubProvider{
		linkItem: &domain.ContentItem{ID: "v7", Author: domain.UserInfo{ID: "bob"}},
	}
	disp := &stubDispatcher{}
	q := NewMemoryQueue(10)

	req := domain.NewRequest(domain.OpLink, domain.ProviderTikTok)
	req.Link = "https://tiktok.com/@bob/video/7"
	req.ChatID = "100"
	req.Requester = domain.TelegramUser{ID: 42, Name: "Carol"}
	_ = q.Enqueue(context.Background(), req)

	p := newTestProcessor(q, provider, store, disp)
	p.runOnce(context.Background())

	if len(disp.items) != 1 || disp.items[0].contentID != "v7" {
		t.Fatalf("ожидали отправку v7, получили %+v", disp.items)
	}
	if len(p.pending) != 0 {
		t.Fatalf("успешный запрос не должен повторяться: %+v", p.pending)
	}
}
