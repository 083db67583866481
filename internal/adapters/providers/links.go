package providers

import (
	"regexp"

	"tg-feedwatch-bot/internal/domain"
)

// Шаблоны ссылок собираются один раз при старте процесса и дальше
// используются только на чтение.
var (
	tiktokFullLink  = regexp.MustCompile(`https://www\.tiktok\.com/(@[^/]+)/video/([0-9]+)`)
	tiktokShortLink = regexp.MustCompile(`https://vm\.tiktok\.com/[A-Za-z0-9]+/?`)
	twitterLink     = regexp.MustCompile(`https://(?:twitter|x)\.com/([^/]+)/status/([0-9]+)`)
	instagramLink   = regexp.MustCompile(`(?:https://)?www\.instagram\.com/(?:tv|reel|p|stories/[^/]+)/([^/?]+)`)
)

type linkEntry struct {
	provider domain.Provider
	patterns []*regexp.Regexp
}

var linkRegistry = []linkEntry{
	{provider: domain.ProviderTikTok, patterns: []*regexp.Regexp{tiktokFullLink, tiktokShortLink}},
	{provider: domain.ProviderTwitter, patterns: []*regexp.Regexp{twitterLink}},
	{provider: domain.ProviderInstagram, patterns: []*regexp.Regexp{instagramLink}},
}

// MatchProvider определяет источник по ссылке в сообщении.
func MatchProvider(url string) (domain.Provider, bool) {
	for _, entry := range linkRegistry {
		for _, pattern := range entry.patterns {
			if pattern.MatchString(url) {
				return entry.provider, true
			}
		}
	}
	return "", false
}

// FindContentLink выделяет первую распознанную ссылку на контент из текста.
func FindContentLink(text string) (string, domain.Provider, bool) {
	for _, entry := range linkRegistry {
		for _, pattern := range entry.patterns {
			if loc := pattern.FindString(text); loc != "" {
				return loc, entry.provider, true
			}
		}
	}
	return "", "", false
}
