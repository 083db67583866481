package telegram

import (
	"fmt"
	"html"
	"strings"
)

// ActionType определяет глагол действия в подписи.
type ActionType int

const (
	ActionLiked ActionType = iota
	ActionPosted
	ActionShared
)

const readMoreSuffix = "... [Read more in the source]"

// CaptionBuilder собирает HTML-подпись к элементу контента:
// кто, действие, ссылка на контент, источник и описание.
type CaptionBuilder struct {
	who         *textedLink
	action      *ActionType
	content     *textedLink
	from        *textedLink
	description string
	sizeLimit   int
	sizeNotice  bool
}

type textedLink struct {
	text string
	url  string
}

func (l textedLink) render() string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, l.url, html.EscapeString(l.text))
}

// NewCaption создаёт пустой билдер.
func NewCaption() *CaptionBuilder {
	return &CaptionBuilder{}
}

// Who задаёт автора действия.
func (b *CaptionBuilder) Who(text, url string) *CaptionBuilder {
	b.who = &textedLink{text: text, url: url}
	return b
}

// Action задаёт глагол действия.
func (b *CaptionBuilder) Action(action ActionType) *CaptionBuilder {
	b.action = &action
	return b
}

// Content задаёт ссылку на сам элемент.
func (b *CaptionBuilder) Content(text, url string) *CaptionBuilder {
	b.content = &textedLink{text: text, url: url}
	return b
}

// From задаёт первоисточник (автора контента, если он не совпадает с Who).
func (b *CaptionBuilder) From(text, url string) *CaptionBuilder {
	b.from = &textedLink{text: text, url: url}
	return b
}

// Description задаёт текст элемента. Экранирование — на вызывающей стороне.
func (b *CaptionBuilder) Description(description string) *CaptionBuilder {
	b.description = description
	return b
}

// SizeLimit включает усечение итоговой подписи до limit рун.
func (b *CaptionBuilder) SizeLimit(limit int) *CaptionBuilder {
	b.sizeLimit = limit
	return b
}

// SizeNotice добавляет предупреждение о слишком большом вложении.
func (b *CaptionBuilder) SizeNotice(on bool) *CaptionBuilder {
	b.sizeNotice = on
	return b
}

// Build возвращает готовую подпись.
func (b *CaptionBuilder) Build() string {
	var sb strings.Builder
	sb.WriteString("<i>")
	if b.sizeNotice {
		sb.WriteString("<b>Attached video is too huge for inline display.</b>\n\n")
	}
	if b.who != nil {
		sb.WriteString(b.who.render())
	}
	switch {
	case b.action == nil:
		sb.WriteString(" processed")
	case *b.action == ActionLiked:
		sb.WriteString(" liked")
	case *b.action == ActionPosted:
		sb.WriteString(" posted")
	case *b.action == ActionShared:
		sb.WriteString(" shared")
	}
	if b.content != nil {
		sb.WriteString(" ")
		sb.WriteString(b.content.render())
	}
	if b.from != nil {
		sb.WriteString(" from ")
		sb.WriteString(b.from.render())
	}
	sb.WriteString("</i>")
	if b.description != "" {
		sb.WriteString(":\n\n")
		sb.WriteString(b.description)
	}

	caption := sb.String()
	if b.sizeLimit > 0 {
		runes := []rune(caption)
		if len(runes) > b.sizeLimit {
			cut := b.sizeLimit - len(readMoreSuffix)
			if cut < 0 {
				cut = 0
			}
			caption = string(runes[:cut]) + readMoreSuffix
		}
	}
	return caption
}
