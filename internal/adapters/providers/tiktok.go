package providers

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/telegram"
	"tg-feedwatch-bot/internal/domain"
)

// TikTok реализует domain.ContentProvider поверх внутреннего API.
type TikTok struct {
	fetcher *Fetcher
	log     zerolog.Logger
}

var _ domain.ContentProvider = (*TikTok)(nil)

// NewTikTok создаёт адаптер TikTok.
func NewTikTok(baseURL, secret string, log zerolog.Logger) *TikTok {
	return &TikTok{
		fetcher: NewFetcher(baseURL, secret, "tiktok", log),
		log:     log,
	}
}

// Name возвращает имя источника для логов.
func (t *TikTok) Name() string { return "TikTok" }

// Tag возвращает идентификатор источника.
func (t *TikTok) Tag() domain.Provider { return domain.ProviderTikTok }

type tiktokAuthor struct {
	UniqueID string `json:"uniqueId"`
	Nickname string `json:"nickname"`
}

type tiktokVideo struct {
	ID              string `json:"id"`
	DownloadAddress string `json:"downloadAddr"`
}

type tiktokItem struct {
	Video       tiktokVideo  `json:"video"`
	Author      tiktokAuthor `json:"author"`
	Description string       `json:"desc"`
}

func (i tiktokItem) toContentItem() domain.ContentItem {
	return domain.ContentItem{
		ID:   i.Video.ID,
		Text: i.Description,
		Link: fmt.Sprintf("https://tiktok.com/@%s/video/%s", i.Author.UniqueID, i.Video.ID),
		Author: domain.UserInfo{
			ID:       i.Author.UniqueID,
			Username: i.Author.UniqueID,
			Nickname: i.Author.Nickname,
		},
		Attachments: []domain.Attachment{{
			URL:  i.Video.DownloadAddress,
			Name: i.Video.ID,
			Kind: domain.MediaVideo,
		}},
	}
}

// GetUserInfo резолвит профиль по хендлу.
func (t *TikTok) GetUserInfo(ctx context.Context, handle string) (*domain.UserInfo, error) {
	var author tiktokAuthor
	found, err := t.fetcher.getJSON(ctx, t.fetcher.userInfoPath(handle), &author)
	if err != nil || !found {
		return nil, err
	}
	return &domain.UserInfo{ID: author.UniqueID, Username: author.UniqueID, Nickname: author.Nickname}, nil
}

// GetContent возвращает свежие видео или лайки пользователя, новые первыми.
func (t *TikTok) GetContent(ctx context.Context, userID string, count int, kind domain.SubscriptionKind) ([]domain.ContentItem, error) {
	ctype := "videos"
	if kind == domain.KindLikes {
		ctype = "likes"
	}
	var raw []tiktokItem
	found, err := t.fetcher.getJSON(ctx, t.fetcher.contentPath(userID, ctype, count), &raw)
	if err != nil || !found {
		return nil, err
	}
	items := make([]domain.ContentItem, 0, len(raw))
	for _, item := range raw {
		items = append(items, item.toContentItem())
	}
	return items, nil
}

// GetContentForLink резолвит видео по полной или укороченной ссылке.
func (t *TikTok) GetContentForLink(ctx context.Context, link string) (*domain.ContentItem, error) {
	if tiktokShortLink.MatchString(link) {
		full, err := ResolveFullLink(ctx, link)
		if err != nil {
			return nil, err
		}
		t.log.Info().Str("short", link).Str("full", full).Msg("tiktok: короткая ссылка развёрнута")
		link = full
	}
	matches := tiktokFullLink.FindStringSubmatch(link)
	if len(matches) < 3 {
		return nil, fmt.Errorf("нераспознанная ссылка tiktok: %s", link)
	}
	var raw tiktokItem
	found, err := t.fetcher.getJSON(ctx, t.fetcher.contentByIDPath(matches[2]), &raw)
	if err != nil || !found {
		return nil, err
	}
	item := raw.toContentItem()
	return &item, nil
}

// Caption строит подпись к видео.
func (t *TikTok) Caption(user domain.UserInfo, item domain.ContentItem, out domain.Output) string {
	userLink := func(username string) string { return "https://tiktok.com/@" + username }
	builder := telegram.NewCaption()
	switch {
	case out.Kind == domain.OutByLink:
		builder.Who(out.SharedBy.Name, out.SharedBy.Link()).
			Action(telegram.ActionShared).
			From(item.Author.Nickname, userLink(item.Author.Username))
	case out.SubKind == domain.KindLikes:
		builder.Who(user.Nickname, userLink(user.Username)).
			Action(telegram.ActionLiked).
			From(item.Author.Nickname, userLink(item.Author.Username))
	default:
		builder.Who(user.Nickname, userLink(user.Username)).
			Action(telegram.ActionPosted)
	}
	return builder.
		Content("video", item.Link).
		Description(html.EscapeString(item.Text)).
		SizeLimit(telegram.CaptionLimit).
		Build()
}
