package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-feedwatch-bot/internal/adapters/bot"
	"tg-feedwatch-bot/internal/adapters/providers"
	"tg-feedwatch-bot/internal/adapters/repo"
	"tg-feedwatch-bot/internal/domain"
	"tg-feedwatch-bot/internal/infra/cache"
	"tg-feedwatch-bot/internal/infra/config"
	"tg-feedwatch-bot/internal/infra/db"
	"tg-feedwatch-bot/internal/infra/log"
	"tg-feedwatch-bot/internal/infra/media"
	"tg-feedwatch-bot/internal/infra/metrics"
	infraqueue "tg-feedwatch-bot/internal/infra/queue"
	"tg-feedwatch-bot/internal/usecase/dispatch"
	"tg-feedwatch-bot/internal/usecase/requests"
	"tg-feedwatch-bot/internal/usecase/updater"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics.MustRegister(prometheus.DefaultRegisterer)
	go metrics.StartServer(ctx, logger, cfg.MetricsAddr)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось подключиться к БД")
	}
	defer pool.Close()
	store := repo.NewPostgres(pool)

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("REDIS_ADDR обязателен")
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	ttlCache := cache.NewRedis(redisClient)

	mediaCache, err := media.NewDiskCache(cfg.MediaDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать кэш вложений")
	}

	registry := providers.NewRegistry(
		providers.NewTikTok(cfg.InternalAPI.URL, cfg.InternalAPI.Secret, logger),
		providers.NewTwitter(cfg.InternalAPI.URL, cfg.InternalAPI.Secret, logger),
		providers.NewInstagram(cfg.InternalAPI.URL, cfg.InternalAPI.Secret, logger),
	)

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}
	if cfg.Telegram.WebhookURL != "" {
		wh, err := tgbotapi.NewWebhook(cfg.Telegram.WebhookURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("некорректный адрес вебхука")
		}
		if _, err := botAPI.Request(wh); err != nil {
			logger.Fatal().Err(err).Msg("не удалось установить вебхук")
		}
	}

	dispatcher := dispatch.NewDispatcher(botAPI, mediaCache, logger)
	queue := newQueue(cfg, redisClient, logger)

	processor := requests.NewProcessor(queue, registry, store, dispatcher, mediaCache,
		time.Duration(cfg.Processor.IntervalSeconds)*time.Second, cfg.Updater.BatchSize, logger)
	go processor.Run(ctx)

	updaterCfg := updater.Config{
		Interval:           time.Duration(cfg.Updater.IntervalSeconds) * time.Second,
		UserPace:           time.Duration(cfg.Updater.UserPaceSeconds) * time.Second,
		BatchSize:          cfg.Updater.BatchSize,
		NotFoundTTLSeconds: cfg.Updater.NotFoundCacheTTL,
	}
	for _, p := range registry.All() {
		s := updater.NewScheduler(p, store, dispatcher, mediaCache, ttlCache, updaterCfg, logger)
		go s.Run(ctx)
	}

	h := bot.NewHandler(queue, store, registry, dispatcher, logger)

	r := chi.NewRouter()
	r.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: r}
	go func() {
		logger.Info().Int("port", cfg.Port).Msg("бот запущен")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	logger.Info().Msg("остановка бота")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}

// newQueue собирает бекенд очереди запросов по конфигу.
func newQueue(cfg config.AppConfig, redisClient *redis.Client, logger zerolog.Logger) domain.RequestQueue {
	switch cfg.Queue.Backend {
	case "redis":
		return infraqueue.NewRedis(redisClient, cfg.Queue.Key, cfg.Queue.Capacity)
	case "amqp":
		q, err := infraqueue.NewAMQP(cfg.Queue.AMQPURL, cfg.Queue.Key, cfg.Queue.Capacity)
		if err != nil {
			logger.Fatal().Err(err).Msg("не удалось подключить очередь AMQP")
		}
		return q
	default:
		return requests.NewMemoryQueue(cfg.Queue.Capacity)
	}
}
