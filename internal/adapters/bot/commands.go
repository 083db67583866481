package bot

import (
	"strings"

	"tg-feedwatch-bot/internal/domain"
)

// cmdAction различает, что делает команда.
type cmdAction int

const (
	actLastN cmdAction = iota
	actSubscribe
	actUnsubscribe
)

// cmdSpec описывает одну команду бота. Вся поверхность команд задаётся
// таблицей: один обработчик на все источники и виды подписок.
type cmdSpec struct {
	action   cmdAction
	provider domain.Provider
	kind     domain.SubscriptionKind
	// counted — команда принимает число элементов вторым аргументом.
	counted bool
}

// Содержимое таблицы: голая команда — лайки, префикс l — посты;
// окончание s — вариант с числом элементов.
var commandTable = map[string]cmdSpec{
	"tiktok":   {action: actLastN, provider: domain.ProviderTikTok, kind: domain.KindLikes},
	"tiktoks":  {action: actLastN, provider: domain.ProviderTikTok, kind: domain.KindLikes, counted: true},
	"ltiktok":  {action: actLastN, provider: domain.ProviderTikTok, kind: domain.KindPosts},
	"ltiktoks": {action: actLastN, provider: domain.ProviderTikTok, kind: domain.KindPosts, counted: true},

	"tweet":   {action: actLastN, provider: domain.ProviderTwitter, kind: domain.KindLikes},
	"tweets":  {action: actLastN, provider: domain.ProviderTwitter, kind: domain.KindLikes, counted: true},
	"ltweet":  {action: actLastN, provider: domain.ProviderTwitter, kind: domain.KindPosts},
	"ltweets": {action: actLastN, provider: domain.ProviderTwitter, kind: domain.KindPosts, counted: true},

	"insta":  {action: actLastN, provider: domain.ProviderInstagram, kind: domain.KindPosts},
	"instas": {action: actLastN, provider: domain.ProviderInstagram, kind: domain.KindPosts, counted: true},

	"sub_tiktok":        {action: actSubscribe, provider: domain.ProviderTikTok, kind: domain.KindPosts},
	"sub_tiktok_likes":  {action: actSubscribe, provider: domain.ProviderTikTok, kind: domain.KindLikes},
	"sub_twitter":       {action: actSubscribe, provider: domain.ProviderTwitter, kind: domain.KindPosts},
	"sub_twitter_likes": {action: actSubscribe, provider: domain.ProviderTwitter, kind: domain.KindLikes},
	"sub_insta":         {action: actSubscribe, provider: domain.ProviderInstagram, kind: domain.KindPosts},
	"sub_insta_likes":   {action: actSubscribe, provider: domain.ProviderInstagram, kind: domain.KindLikes},

	"unsub_tiktok":        {action: actUnsubscribe, provider: domain.ProviderTikTok, kind: domain.KindPosts},
	"unsub_tiktok_likes":  {action: actUnsubscribe, provider: domain.ProviderTikTok, kind: domain.KindLikes},
	"unsub_twitter":       {action: actUnsubscribe, provider: domain.ProviderTwitter, kind: domain.KindPosts},
	"unsub_twitter_likes": {action: actUnsubscribe, provider: domain.ProviderTwitter, kind: domain.KindLikes},
	"unsub_insta":         {action: actUnsubscribe, provider: domain.ProviderInstagram, kind: domain.KindPosts},
	"unsub_insta_likes":   {action: actUnsubscribe, provider: domain.ProviderInstagram, kind: domain.KindLikes},
}

// lookupCommand возвращает описание команды по её имени без слэша.
func lookupCommand(name string) (cmdSpec, bool) {
	spec, ok := commandTable[strings.ToLower(name)]
	return spec, ok
}

const helpText = `<b>Available commands:</b>
/tiktok &lt;user&gt; — last liked video
/tiktoks &lt;user&gt; &lt;n&gt; — last n liked videos
/ltiktok &lt;user&gt; — last posted video
/ltiktoks &lt;user&gt; &lt;n&gt; — last n posted videos
/tweet, /tweets, /ltweet, /ltweets — same for Twitter
/insta &lt;user&gt;, /instas &lt;user&gt; &lt;n&gt; — last posts
/sub_tiktok &lt;user&gt; — subscribe to new videos
/sub_tiktok_likes &lt;user&gt; — subscribe to new likes
/sub_twitter, /sub_twitter_likes, /sub_insta, /sub_insta_likes — same
/unsub_* &lt;user&gt; — unsubscribe
/subscriptions — what this chat is subscribed to
Send a link to a video, tweet or post to get it here.`
