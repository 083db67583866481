package bot

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/providers"
	"tg-feedwatch-bot/internal/domain"
)

type stubQueue struct {
	reqs []domain.Request
	err  error
}

func (q *stubQueue) Enqueue(_ context.Context, req domain.Request) error {
	if q.err != nil {
		return q.err
	}
	q.reqs = append(q.reqs, req)
	return nil
}

func (q *stubQueue) Drain(_ context.Context) ([]domain.Request, error) { return nil, nil }

type stubStore struct {
	subscribed   bool
	chatInfo     *domain.ChatInfo
	unsubscribes []string
}

func (s *stubStore) GetSubscriptions(_ context.Context, _ domain.Provider) ([]domain.UserSubscription, error) {
	return nil, nil
}

func (s *stubStore) GetChatInfo(_ context.Context, _ domain.Provider, _ string) (*domain.ChatInfo, error) {
	return s.chatInfo, nil
}

func (s *stubStore) Subscribe(_ context.Context, _ domain.Provider, _, _ string, _ domain.SubscriptionKind) error {
	return nil
}

func (s *stubStore) Unsubscribe(_ context.Context, _ domain.Provider, userID, chatID string, _ domain.SubscriptionKind) error {
	s.unsubscribes = append(s.unsubscribes, userID+"/"+chatID)
	return nil
}

func (s *stubStore) RecordDelivered(_ context.Context, _ domain.Provider, _, _ string, _ domain.SubscriptionKind) error {
	return nil
}

func (s *stubStore) IsDelivered(_ context.Context, _ domain.Provider, _, _ string, _ domain.SubscriptionKind) (bool, error) {
	return false, nil
}

func (s *stubStore) IsSubscribed(_ context.Context, _ domain.Provider, _, _ string, _ domain.SubscriptionKind) (bool, error) {
	return s.subscribed, nil
}

func (s *stubStore) UserExists(_ context.Context, _ domain.Provider, _ string, _ domain.SubscriptionKind) (bool, error) {
	return false, nil
}

type stubDispatcher struct {
	texts []string
}

func (d *stubDispatcher) Send(_ context.Context, _ domain.ContentProvider, _ domain.UserInfo, _ string, _ domain.ContentItem, _ domain.Output) error {
	return nil
}

func (d *stubDispatcher) SendText(_ context.Context, _, text string) error {
	d.texts = append(d.texts, text)
	return nil
}

type stubProvider struct {
	tag domain.Provider
}

func (p *stubProvider) Name() string         { return string(p.tag) }
func (p *stubProvider) Tag() domain.Provider { return p.tag }
func (p *stubProvider) GetUserInfo(_ context.Context, _ string) (*domain.UserInfo, error) {
	return nil, nil
}
func (p *stubProvider) GetContent(_ context.Context, _ string, _ int, _ domain.SubscriptionKind) ([]domain.ContentItem, error) {
	return nil, nil
}
func (p *stubProvider) GetContentForLink(_ context.Context, _ string) (*domain.ContentItem, error) {
	return nil, nil
}
func (p *stubProvider) Caption(_ domain.UserInfo, _ domain.ContentItem, _ domain.Output) string {
	return ""
}

func newTestHandler(q domain.RequestQueue, store domain.SubscriptionStore, disp domain.Dispatcher) *Handler {
	reg := providers.NewRegistry(&stubProvider{tag: domain.ProviderTikTok}, &stubProvider{tag: domain.ProviderTwitter})
	return NewHandler(q, store, reg, disp, zerolog.Nop())
}

func commandUpdate(text string) tgbotapi.Update {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
		Chat:     &tgbotapi.Chat{ID: 100},
		From:     &tgbotapi.User{ID: 42, FirstName: "Carol"},
	}}
}

func textUpdate(text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Text: text,
		Chat: &tgbotapi.Chat{ID: 100},
		From: &tgbotapi.User{ID: 42, FirstName: "Carol"},
	}}
}

func TestCommandTableCoversAllProviders(t *testing.T) {
	for _, name := range []string{"tiktok", "ltweets", "instas", "sub_twitter_likes", "unsub_insta"} {
		if _, ok := lookupCommand(name); !ok {
			t.Fatalf("команда %q должна быть в таблице", name)
		}
	}
	if _, ok := lookupCommand("nonsense"); ok {
		t.Fatal("неизвестная команда не должна находиться")
	}
}

func TestHandleLastNCommand(t *testing.T) {
	q := &stubQueue{}
	h := newTestHandler(q, &stubStore{}, &stubDispatcher{})

	h.HandleUpdate(context.Background(), commandUpdate("/tiktoks @alice 3"))

	if len(q.reqs) != 1 {
		t.Fatalf("ожидали один запрос в очереди, получили %d", len(q.reqs))
	}
	req := q.reqs[0]
	if req.Op != domain.OpLastN || req.Provider != domain.ProviderTikTok || req.Kind != domain.KindLikes {
		t.Fatalf("неожиданный запрос: %+v", req)
	}
	if req.User != "alice" || req.Count != 3 || req.ChatID != "100" {
		t.Fatalf("аргументы команды разобраны неверно: %+v", req)
	}
	if req.Requester.ID != 42 {
		t.Fatalf("отправитель должен сохраняться в запросе: %+v", req.Requester)
	}
}

func TestHandleQueueFull(t *testing.T) {
	q := &stubQueue{err: domain.ErrQueueFull}
	disp := &stubDispatcher{}
	h := newTestHandler(q, &stubStore{}, disp)

	h.HandleUpdate(context.Background(), commandUpdate("/tweet bob"))

	if len(disp.texts) != 1 {
		t.Fatalf("о переполнении очереди нужно ответить пользователю, получили %v", disp.texts)
	}
}

func TestHandleSubscribeDuplicate(t *testing.T) {
	q := &stubQueue{}
	disp := &stubDispatcher{}
	h := newTestHandler(q, &stubStore{subscribed: true}, disp)

	h.HandleUpdate(context.Background(), commandUpdate("/sub_tiktok alice"))

	if len(q.reqs) != 0 {
		t.Fatalf("повторная подписка не должна попадать в очередь, получили %+v", q.reqs)
	}
	if len(disp.texts) != 1 {
		t.Fatalf("пользователю нужно сообщить о существующей подписке, получили %v", disp.texts)
	}
}

func TestHandleUnsubscribeImmediate(t *testing.T) {
	q := &stubQueue{}
	store := &stubStore{}
	h := newTestHandler(q, store, &stubDispatcher{})

	h.HandleUpdate(context.Background(), commandUpdate("/unsub_tiktok alice"))

	if len(store.unsubscribes) != 1 || store.unsubscribes[0] != "alice/100" {
		t.Fatalf("отписка должна выполняться сразу, получили %v", store.unsubscribes)
	}
	if len(q.reqs) != 0 {
		t.Fatalf("отписка не ходит через очередь, получили %+v", q.reqs)
	}
}

func TestHandleContentLinkMessage(t *testing.T) {
	q := &stubQueue{}
	h := newTestHandler(q, &stubStore{}, &stubDispatcher{})

	h.HandleUpdate(context.Background(), textUpdate("смотри https://twitter.com/bob/status/99"))

	if len(q.reqs) != 1 {
		t.Fatalf("сообщение со ссылкой должно породить запрос, получили %d", len(q.reqs))
	}
	req := q.reqs[0]
	if req.Op != domain.OpLink || req.Provider != domain.ProviderTwitter {
		t.Fatalf("неожиданный запрос: %+v", req)
	}
	if req.Link != "https://twitter.com/bob/status/99" {
		t.Fatalf("ссылка разобрана неверно: %q", req.Link)
	}
}

func TestHandlePlainMessageIgnored(t *testing.T) {
	q := &stubQueue{}
	disp := &stubDispatcher{}
	h := newTestHandler(q, &stubStore{}, disp)

	h.HandleUpdate(context.Background(), textUpdate("просто сообщение без ссылок"))

	if len(q.reqs) != 0 || len(disp.texts) != 0 {
		t.Fatal("обычное сообщение без ссылок не должно вызывать реакции")
	}
}
