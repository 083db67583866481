package telegram

import (
	"strings"
	"testing"
)

func TestCaptionBuilderSubscription(t *testing.T) {
	caption := NewCaption().
		Who("Кошка <3", "https://tiktok.com/@cat").
		Action(ActionLiked).
		Content("video", "https://tiktok.com/@dog/video/1").
		From("Собака", "https://tiktok.com/@dog").
		Description("смешное видео").
		Build()

	if !strings.HasPrefix(caption, "<i>") {
		t.Fatalf("ожидали курсивную рамку, получили %q", caption)
	}
	if !strings.Contains(caption, `<a href="https://tiktok.com/@cat">Кошка &lt;3</a> liked`) {
		t.Fatalf("ожидали экранированное имя и действие, получили %q", caption)
	}
	if !strings.Contains(caption, ` from <a href="https://tiktok.com/@dog">Собака</a></i>`) {
		t.Fatalf("ожидали ссылку на первоисточник, получили %q", caption)
	}
	if !strings.HasSuffix(caption, ":\n\nсмешное видео") {
		t.Fatalf("ожидали описание после подписи, получили %q", caption)
	}
}

func TestCaptionBuilderDefaultAction(t *testing.T) {
	caption := NewCaption().Who("user", "https://example.com/u").Build()
	if !strings.Contains(caption, " processed") {
		t.Fatalf("без действия ожидали processed, получили %q", caption)
	}
}

func TestCaptionBuilderSizeLimit(t *testing.T) {
	caption := NewCaption().
		Who("user", "https://example.com/u").
		Action(ActionPosted).
		Description(strings.Repeat("ы", 5000)).
		SizeLimit(CaptionLimit).
		Build()

	if got := len([]rune(caption)); got > CaptionLimit {
		t.Fatalf("подпись превышает лимит: %d", got)
	}
	if !strings.HasSuffix(caption, readMoreSuffix) {
		t.Fatalf("ожидали маркер усечения, получили %q", caption[len(caption)-40:])
	}
}

func TestCaptionBuilderSizeNotice(t *testing.T) {
	caption := NewCaption().SizeNotice(true).Action(ActionShared).Build()
	if !strings.Contains(caption, "too huge for inline display") {
		t.Fatalf("ожидали предупреждение о размере, получили %q", caption)
	}
}
