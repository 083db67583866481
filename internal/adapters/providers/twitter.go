package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"html"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/telegram"
	"tg-feedwatch-bot/internal/domain"
)

// Twitter реализует domain.ContentProvider поверх внутреннего API (v2).
type Twitter struct {
	fetcher *Fetcher
	log     zerolog.Logger
}

var _ domain.ContentProvider = (*Twitter)(nil)

// NewTwitter создаёт адаптер Twitter.
func NewTwitter(baseURL, secret string, log zerolog.Logger) *Twitter {
	return &Twitter{
		fetcher: NewFetcher(baseURL, secret, "twitter", log),
		log:     log,
	}
}

// Name возвращает имя источника для логов.
func (t *Twitter) Name() string { return "Twitter" }

// Tag возвращает идентификатор источника.
func (t *Twitter) Tag() domain.Provider { return domain.ProviderTwitter }

type twitterUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

type twitterMedia struct {
	MediaKey        string `json:"media_key"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

type twitterAttachments struct {
	MediaKeys []string `json:"media_keys"`
}

type twitterTweet struct {
	ID          string              `json:"id"`
	AuthorID    string              `json:"author_id"`
	Text        string              `json:"text"`
	Attachments *twitterAttachments `json:"attachments"`
}

type twitterIncludes struct {
	Media []twitterMedia `json:"media"`
	Users []twitterUser  `json:"users"`
}

// twitterResult разбирает поле data, которое апстрим отдаёт то массивом,
// то одиночным объектом.
type twitterResult struct {
	Data     json.RawMessage `json:"data"`
	Includes twitterIncludes `json:"includes"`
}

func (r twitterResult) tweets() ([]twitterTweet, error) {
	if len(r.Data) == 0 {
		return nil, nil
	}
	var many []twitterTweet
	if err := json.Unmarshal(r.Data, &many); err == nil {
		return many, nil
	}
	var one twitterTweet
	if err := json.Unmarshal(r.Data, &one); err != nil {
		return nil, fmt.Errorf("разбор данных twitter: %w", err)
	}
	return []twitterTweet{one}, nil
}

func (r twitterResult) toContentItems() ([]domain.ContentItem, error) {
	tweets, err := r.tweets()
	if err != nil {
		return nil, err
	}
	items := make([]domain.ContentItem, 0, len(tweets))
	for _, tweet := range tweets {
		var author *twitterUser
		for i := range r.Includes.Users {
			if r.Includes.Users[i].ID == tweet.AuthorID {
				author = &r.Includes.Users[i]
				break
			}
		}
		if author == nil {
			return nil, fmt.Errorf("twitter не вернул автора твита %s", tweet.ID)
		}

		var attachments []domain.Attachment
		if tweet.Attachments != nil {
			for _, key := range tweet.Attachments.MediaKeys {
				for _, media := range r.Includes.Media {
					if media.MediaKey != key {
						continue
					}
					url := media.URL
					if url == "" {
						url = media.PreviewImageURL
					}
					// API v2 отдаёт URL не для всех типов медиа.
					if url != "" {
						attachments = append(attachments, domain.Attachment{
							URL:  url,
							Name: key,
							Kind: domain.MediaImage,
						})
					}
					break
				}
			}
		}

		items = append(items, domain.ContentItem{
			ID:   tweet.ID,
			Text: tweet.Text,
			Link: fmt.Sprintf("https://twitter.com/%s/status/%s", author.Username, tweet.ID),
			Author: domain.UserInfo{
				ID:       author.ID,
				Username: author.Username,
				Nickname: author.Name,
			},
			Attachments: attachments,
		})
	}
	return items, nil
}

type twitterUserResponse struct {
	Data twitterUser `json:"data"`
}

// GetUserInfo резолвит профиль по хендлу.
func (t *Twitter) GetUserInfo(ctx context.Context, handle string) (*domain.UserInfo, error) {
	var resp twitterUserResponse
	found, err := t.fetcher.getJSON(ctx, t.fetcher.userInfoPath(handle), &resp)
	if err != nil || !found {
		return nil, err
	}
	return &domain.UserInfo{ID: resp.Data.ID, Username: resp.Data.Username, Nickname: resp.Data.Name}, nil
}

// GetContent возвращает свежие твиты или лайки пользователя, новые первыми.
func (t *Twitter) GetContent(ctx context.Context, userID string, count int, kind domain.SubscriptionKind) ([]domain.ContentItem, error) {
	ctype := "posts"
	if kind == domain.KindLikes {
		ctype = "likes"
	}
	// Апстрим принимает от 5 до 100 элементов за запрос.
	if count < 5 {
		count = 5
	}
	if count > 100 {
		count = 100
	}
	var raw twitterResult
	found, err := t.fetcher.getJSON(ctx, t.fetcher.contentPath(userID, ctype, count), &raw)
	if err != nil || !found {
		return nil, err
	}
	return raw.toContentItems()
}

// GetContentForLink резолвит твит по ссылке на статус.
func (t *Twitter) GetContentForLink(ctx context.Context, link string) (*domain.ContentItem, error) {
	matches := twitterLink.FindStringSubmatch(link)
	if len(matches) < 3 {
		return nil, fmt.Errorf("нераспознанная ссылка twitter: %s", link)
	}
	var raw twitterResult
	found, err := t.fetcher.getJSON(ctx, t.fetcher.contentByIDPath(matches[2]), &raw)
	if err != nil || !found {
		return nil, err
	}
	items, err := raw.toContentItems()
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

// Caption строит подпись к твиту.
func (t *Twitter) Caption(user domain.UserInfo, item domain.ContentItem, out domain.Output) string {
	userLink := func(username string) string { return "https://twitter.com/" + username }
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
	limit := telegram.CaptionLimit
	if !item.HasAttachments() {
		limit = 4096
	}
	return builder.
		Content("tweet", item.Link).
		Description(html.EscapeString(item.Text)).
		SizeLimit(limit).
		Build()
}
