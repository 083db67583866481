package dispatch

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/telegram"
	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// Sender — минимальная поверхность Telegram-бота, нужная диспетчеру.
// *tgbotapi.BotAPI удовлетворяет его напрямую.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(cfg tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// Dispatcher отправляет элементы контента в чаты: текстом либо одной
// медиагруппой с подписью на первом элементе. Запись о доставке в
// хранилище остаётся заботой вызывающей стороны.
type Dispatcher struct {
	bot   Sender
	media domain.MediaCache
	log   zerolog.Logger
}

var _ domain.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher создаёт диспетчер.
func NewDispatcher(bot Sender, media domain.MediaCache, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{bot: bot, media: media, log: log}
}

// Send отправляет один элемент в один чат.
func (d *Dispatcher) Send(ctx context.Context, provider domain.ContentProvider, user domain.UserInfo, chatID string, item domain.ContentItem, out domain.Output) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный chat_id %q: %w", chatID, err)
	}
	caption := provider.Caption(user, item, out)

	if !item.HasAttachments() {
		return d.sendText(id, string(provider.Tag()), caption)
	}

	media := make([]interface{}, 0, len(item.Attachments))
	for i, att := range item.Attachments {
		path := d.media.Path(att)
		// Потерянный файл — ошибка отправки, а не паника при аплоаде.
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("вложение %s отсутствует в кэше: %w", path, err)
		}
		itemCaption := ""
		if i == 0 {
			// Telegram показывает подпись только у первого элемента группы.
			itemCaption = caption
		}
		switch att.Kind {
		case domain.MediaVideo:
			video := tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(path))
			video.Caption = itemCaption
			video.ParseMode = tgbotapi.ModeHTML
			media = append(media, video)
		default:
			photo := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(path))
			photo.Caption = itemCaption
			photo.ParseMode = tgbotapi.ModeHTML
			media = append(media, photo)
		}
	}

	group := tgbotapi.NewMediaGroup(id, media)
	start := time.Now()
	_, err = d.bot.SendMediaGroup(group)
	metrics.ObserveNetworkRequest("telegram", "send_media_group", string(provider.Tag()), start, err)
	if err != nil {
		metrics.DispatchErrors.WithLabelValues(string(provider.Tag())).Inc()
		return fmt.Errorf("отправка медиагруппы в чат %s: %w", chatID, err)
	}
	return nil
}

// SendText отправляет служебное сообщение в чат.
func (d *Dispatcher) SendText(ctx context.Context, chatID, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("некорректный chat_id %q: %w", chatID, err)
	}
	return d.sendText(id, "service", text)
}

func (d *Dispatcher) sendText(chatID int64, target, text string) error {
	for _, part := range telegram.SplitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		start := time.Now()
		_, err := d.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram", "send_message", target, start, err)
		if err != nil {
			metrics.DispatchErrors.WithLabelValues(target).Inc()
			return fmt.Errorf("отправка сообщения в чат %d: %w", chatID, err)
		}
	}
	return nil
}
