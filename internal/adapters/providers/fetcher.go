package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/infra/metrics"
)

// Fetcher ходит во внутренний API-сервер источников.
// Маршруты: user_info/{handle}, {ctype}/{userID}/{count}, content_by_id/{id}.
type Fetcher struct {
	baseURL string
	secret  string
	api     string
	client  *http.Client
	log     zerolog.Logger
}

// NewFetcher создаёт клиента внутреннего API для одного источника.
func NewFetcher(baseURL, secret, api string, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		api:     api,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log,
	}
}

// getJSON выполняет запрос и декодирует ответ в out.
// Возвращает false без ошибки, если апстрим ответил 404 (не найдено).
func (f *Fetcher) getJSON(ctx context.Context, path string, out any) (bool, error) {
	url := fmt.Sprintf("%s/api/%s/%s", f.baseURL, f.api, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.secret)

	start := time.Now()
	resp, err := f.client.Do(req)
	metrics.ObserveNetworkRequest("internal_api", f.api, path, start, err)
	if err != nil {
		return false, fmt.Errorf("запрос %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode == http.StatusServiceUnavailable:
		return false, fmt.Errorf("прокси недоступен: %s", url)
	case resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("запрос %s: статус %d: %s", url, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return false, fmt.Errorf("декодирование ответа %s: %w", url, err)
	}
	return true, nil
}

func (f *Fetcher) userInfoPath(handle string) string {
	return "user_info/" + handle
}

func (f *Fetcher) contentPath(userID, ctype string, count int) string {
	return fmt.Sprintf("%s/%s/%d", ctype, userID, count)
}

func (f *Fetcher) contentByIDPath(id string) string {
	return "content_by_id/" + id
}

// ResolveFullLink разворачивает укороченную ссылку, следуя редиректам.
func ResolveFullLink(ctx context.Context, shortURL string) (string, error) {
	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 2 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, shortURL, nil)
	if err != nil {
		return "", err
	}
	// Без user-agent апстрим отвечает вечным ожиданием.
	req.Header.Set("User-Agent", "curl/7.22.0 (x86_64-pc-linux-gnu)")

	start := time.Now()
	resp, err := client.Do(req)
	metrics.ObserveNetworkRequest("link_resolver", "head", "short_link", start, err)
	if err != nil {
		return "", fmt.Errorf("разворачивание ссылки %s: %w", shortURL, err)
	}
	defer resp.Body.Close()
	return resp.Request.URL.String(), nil
}
