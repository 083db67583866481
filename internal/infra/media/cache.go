package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/metrics"
)

// DiskCache — локальный кэш вложений, адресуемый по стабильному имени
// файла. Повторная загрузка существующего файла — no-op; запись идёт
// через временный файл, чтобы недокачанный файл никогда не был виден
// под финальным именем.
type DiskCache struct {
	dir    string
	client *http.Client
	log    zerolog.Logger
}

var _ domain.MediaCache = (*DiskCache)(nil)

// NewDiskCache создаёт кэш в указанной директории.
func NewDiskCache(dir string, log zerolog.Logger) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("создание директории кэша: %w", err)
	}
	return &DiskCache{
		dir:    dir,
		client: &http.Client{Timeout: 120 * time.Second},
		log:    log,
	}, nil
}

// Path возвращает путь вложения в кэше.
func (c *DiskCache) Path(att domain.Attachment) string {
	return filepath.Join(c.dir, att.FileName())
}

// Has проверяет наличие файла в кэше.
func (c *DiskCache) Has(att domain.Attachment) bool {
	_, err := os.Stat(c.Path(att))
	return err == nil
}

// Fetch докачивает отсутствующие вложения параллельно. Ошибка любой
// загрузки возвращается после завершения остальных.
func (c *DiskCache) Fetch(ctx context.Context, attachments []domain.Attachment) error {
	if len(attachments) == 0 {
		return nil
	}
	var wg sync.WaitGroup
	errs := make([]error, len(attachments))
	for i, att := range attachments {
		wg.Add(1)
		go func(i int, att domain.Attachment) {
			defer wg.Done()
			errs[i] = c.download(ctx, att)
		}(i, att)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *DiskCache) download(ctx context.Context, att domain.Attachment) error {
	path := c.Path(att)
	if c.Has(att) {
		c.log.Debug().Str("file", path).Msg("media: файл уже в кэше")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, att.URL, nil)
	if err != nil {
		return fmt.Errorf("создание запроса %s: %w", att.URL, err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.ObserveNetworkRequest("media", "download", string(att.Kind), start, err)
	if err != nil {
		return fmt.Errorf("загрузка %s: %w", att.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("загрузка %s: статус %d", att.URL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(c.dir, att.Name+".*")
	if err != nil {
		return fmt.Errorf("создание временного файла: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("запись %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("закрытие временного файла: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("публикация файла %s: %w", path, err)
	}
	c.log.Info().Str("file", path).Msg("media: файл скачан")
	return nil
}
