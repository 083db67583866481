package providers

import (
	"context"
	"fmt"
	"html"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/telegram"
	"tg-feedwatch-bot/internal/domain"
)

// Instagram реализует domain.ContentProvider поверх внутреннего API.
// Вид подписки likes у этого источника означает сторис.
type Instagram struct {
	fetcher *Fetcher
	log     zerolog.Logger
}

var _ domain.ContentProvider = (*Instagram)(nil)

// NewInstagram создаёт адаптер Instagram.
func NewInstagram(baseURL, secret string, log zerolog.Logger) *Instagram {
	return &Instagram{
		fetcher: NewFetcher(baseURL, secret, "instagram", log),
		log:     log,
	}
}

// Name возвращает имя источника для логов.
func (g *Instagram) Name() string { return "Instagram" }

// Tag возвращает идентификатор источника.
func (g *Instagram) Tag() domain.Provider { return domain.ProviderInstagram }

type instagramUser struct {
	ID       string `json:"pk"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
}

func (u instagramUser) nickname() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

type instagramResource struct {
	ID           string `json:"id"`
	VideoURL     string `json:"video_url"`
	ThumbnailURL string `json:"thumbnail_url"`
}

type instagramPost struct {
	ID           string              `json:"id"`
	URLCode      string              `json:"url_code"`
	CaptionText  string              `json:"caption_text"`
	ProductType  string              `json:"product_type"`
	VideoURL     string              `json:"video_url"`
	ThumbnailURL string              `json:"thumbnail_url"`
	Resources    []instagramResource `json:"resources"`
	User         instagramUser       `json:"user"`
}

func resourceAttachment(id, videoURL, thumbnailURL string) domain.Attachment {
	if videoURL != "" {
		return domain.Attachment{URL: videoURL, Name: id, Kind: domain.MediaVideo}
	}
	return domain.Attachment{URL: thumbnailURL, Name: id, Kind: domain.MediaImage}
}

func (p instagramPost) toContentItem() domain.ContentItem {
	var attachments []domain.Attachment
	if len(p.Resources) > 0 {
		for _, r := range p.Resources {
			attachments = append(attachments, resourceAttachment(r.ID, r.VideoURL, r.ThumbnailURL))
		}
	} else {
		attachments = append(attachments, resourceAttachment(p.ID, p.VideoURL, p.ThumbnailURL))
	}

	link := fmt.Sprintf("https://instagram.com/p/%s/", p.URLCode)
	if p.ProductType == "story" {
		link = fmt.Sprintf("https://instagram.com/stories/%s/%s", p.User.Username, p.ID)
	}

	return domain.ContentItem{
		ID:   p.ID,
		Text: p.CaptionText,
		Link: link,
		Author: domain.UserInfo{
			ID:       p.User.ID,
			Username: p.User.Username,
			Nickname: p.User.nickname(),
		},
		Attachments: attachments,
	}
}

// GetUserInfo резолвит профиль по хендлу.
func (g *Instagram) GetUserInfo(ctx context.Context, handle string) (*domain.UserInfo, error) {
	var user instagramUser
	found, err := g.fetcher.getJSON(ctx, g.fetcher.userInfoPath(handle), &user)
	if err != nil || !found {
		return nil, err
	}
	return &domain.UserInfo{ID: user.ID, Username: user.Username, Nickname: user.nickname()}, nil
}

// GetContent возвращает свежие посты или сторис пользователя, новые первыми.
func (g *Instagram) GetContent(ctx context.Context, userID string, count int, kind domain.SubscriptionKind) ([]domain.ContentItem, error) {
	ctype := "posts"
	if kind == domain.KindLikes {
		ctype = "stories"
	}
	var raw []instagramPost
	found, err := g.fetcher.getJSON(ctx, g.fetcher.contentPath(userID, ctype, count), &raw)
	if err != nil || !found {
		return nil, err
	}
	items := make([]domain.ContentItem, 0, len(raw))
	for _, post := range raw {
		items = append(items, post.toContentItem())
	}
	return items, nil
}

// GetContentForLink резолвит пост, рил или сторис по ссылке.
func (g *Instagram) GetContentForLink(ctx context.Context, link string) (*domain.ContentItem, error) {
	matches := instagramLink.FindStringSubmatch(link)
	if len(matches) < 2 {
		return nil, fmt.Errorf("нераспознанная ссылка instagram: %s", link)
	}
	var raw instagramPost
	found, err := g.fetcher.getJSON(ctx, g.fetcher.contentByIDPath(matches[1]), &raw)
	if err != nil || !found {
		return nil, err
	}
	item := raw.toContentItem()
	return &item, nil
}

// Caption строит подпись к посту или сторис.
func (g *Instagram) Caption(user domain.UserInfo, item domain.ContentItem, out domain.Output) string {
	userLink := func(username string) string { return "https://instagram.com/" + username }
	word := "post"
	description := html.EscapeString(item.Text)
	if out.SubKind == domain.KindLikes {
		word = "story"
		description = ""
	}

	builder := telegram.NewCaption()
	if out.Kind == domain.OutByLink {
		builder.Who(out.SharedBy.Name, out.SharedBy.Link()).Action(telegram.ActionShared)
	} else {
		builder.Who(user.Nickname, userLink(user.Username)).Action(telegram.ActionPosted)
	}
	return builder.
		Content(word, item.Link).
		Description(description).
		SizeLimit(telegram.CaptionLimit).
		Build()
}
