package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/providers"
	"tg-feedwatch-bot/internal/domain"
)

// Handler разбирает входящие апдейты Telegram и превращает команды в
// запросы очереди. Отписка и просмотр подписок выполняются сразу, минуя
// очередь: это дешёвые операции над хранилищем.
type Handler struct {
	queue      domain.RequestQueue
	store      domain.SubscriptionStore
	registry   *providers.Registry
	dispatcher domain.Dispatcher
	log        zerolog.Logger
}

// NewHandler создаёт обработчик апдейтов.
func NewHandler(queue domain.RequestQueue, store domain.SubscriptionStore, registry *providers.Registry, dispatcher domain.Dispatcher, log zerolog.Logger) *Handler {
	return &Handler{queue: queue, store: store, registry: registry, dispatcher: dispatcher, log: log}
}

// HandleUpdate обрабатывает один апдейт. Ошибки проглатываются здесь же:
// вебхук всегда отвечает Telegram успехом, иначе апдейт будет прилетать
// снова и снова.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Text == "" {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if msg.IsCommand() {
		h.handleCommand(ctx, msg, chatID)
		return
	}
	h.handleLink(ctx, msg, chatID)
}

func (h *Handler) handleCommand(ctx context.Context, msg *tgbotapi.Message, chatID string) {
	name := msg.Command()
	args := strings.Fields(msg.CommandArguments())

	switch name {
	case "help", "start":
		h.reply(ctx, chatID, helpText)
		return
	case "subscriptions":
		h.listSubscriptions(ctx, chatID)
		return
	}

	spec, ok := lookupCommand(name)
	if !ok {
		return
	}
	if len(args) == 0 {
		h.reply(ctx, chatID, "Usage: /"+name+" &lt;user&gt;")
		return
	}
	user := strings.TrimPrefix(args[0], "@")

	switch spec.action {
	case actLastN:
		count := 1
		if spec.counted {
			if len(args) < 2 {
				h.reply(ctx, chatID, "Usage: /"+name+" &lt;user&gt; &lt;n&gt;")
				return
			}
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				h.reply(ctx, chatID, "The number of items must be a positive integer.")
				return
			}
			count = n
		}
		req := domain.NewRequest(domain.OpLastN, spec.provider)
		req.Kind = spec.kind
		req.ChatID = chatID
		req.User = user
		req.Count = count
		req.Requester = requester(msg)
		h.enqueue(ctx, chatID, req)

	case actSubscribe:
		subscribed, err := h.store.IsSubscribed(ctx, spec.provider, user, chatID, spec.kind)
		if err != nil {
			h.log.Error().Err(err).Msg("не смогли проверить подписку")
			h.reply(ctx, chatID, "Something went wrong, try again later.")
			return
		}
		if subscribed {
			h.reply(ctx, chatID, "You are already subscribed for "+user)
			return
		}
		req := domain.NewRequest(domain.OpSubscribe, spec.provider)
		req.Kind = spec.kind
		req.ChatID = chatID
		req.User = user
		req.Requester = requester(msg)
		h.enqueue(ctx, chatID, req)

	case actUnsubscribe:
		if err := h.store.Unsubscribe(ctx, spec.provider, user, chatID, spec.kind); err != nil {
			h.log.Error().Err(err).Msg("не смогли снять подписку")
			h.reply(ctx, chatID, "Something went wrong, try again later.")
			return
		}
		h.reply(ctx, chatID, "You have unsubscribed from "+user)
	}
}

// handleLink ищет в обычном сообщении ссылку на контент известного
// источника и ставит её в очередь на пересылку.
func (h *Handler) handleLink(ctx context.Context, msg *tgbotapi.Message, chatID string) {
	link, provider, ok := providers.FindContentLink(msg.Text)
	if !ok {
		return
	}
	req := domain.NewRequest(domain.OpLink, provider)
	req.ChatID = chatID
	req.Link = link
	req.Requester = requester(msg)
	h.enqueue(ctx, chatID, req)
}

func (h *Handler) listSubscriptions(ctx context.Context, chatID string) {
	var b strings.Builder
	b.WriteString("<b>Subscriptions of this chat:</b>\n")
	total := 0
	for _, p := range h.registry.All() {
		info, err := h.store.GetChatInfo(ctx, p.Tag(), chatID)
		if err != nil {
			h.log.Error().Err(err).Str("provider", string(p.Tag())).Msg("не смогли получить подписки чата")
			continue
		}
		if info == nil {
			continue
		}
		for _, kind := range domain.Kinds() {
			for _, user := range info.UsersFor(kind) {
				b.WriteString(string(p.Tag()) + " " + string(kind) + ": " + user + "\n")
				total++
			}
		}
	}
	if total == 0 {
		h.reply(ctx, chatID, "This chat has no subscriptions.")
		return
	}
	h.reply(ctx, chatID, b.String())
}

func (h *Handler) enqueue(ctx context.Context, chatID string, req domain.Request) {
	err := h.queue.Enqueue(ctx, req)
	if errors.Is(err, domain.ErrQueueFull) {
		h.reply(ctx, chatID, "Too many requests at the moment, try again later.")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("op", string(req.Op)).Msg("не смогли поставить запрос в очередь")
		h.reply(ctx, chatID, "Something went wrong, try again later.")
	}
}

func (h *Handler) reply(ctx context.Context, chatID, text string) {
	if err := h.dispatcher.SendText(ctx, chatID, text); err != nil {
		h.log.Warn().Err(err).Msg("не смогли ответить в чат")
	}
}

func requester(msg *tgbotapi.Message) domain.TelegramUser {
	if msg.From == nil {
		return domain.TelegramUser{}
	}
	name := strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName)
	if name == "" {
		name = msg.From.UserName
	}
	return domain.TelegramUser{ID: msg.From.ID, Name: name}
}
