package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	Port   int    `envconfig:"PORT" default:"8080"`

	Telegram struct {
		Token      string `envconfig:"TG_BOT_TOKEN"`
		WebhookURL string `envconfig:"TG_WEBHOOK_URL"`
	} `envconfig:""`

	InternalAPI struct {
		URL    string `envconfig:"INTERNAL_API_URL"`
		Secret string `envconfig:"INTERNAL_API_SECRET"`
	} `envconfig:""`

	PGDSN string `envconfig:"PG_DSN"`

	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		// Backend: memory | redis | amqp.
		Backend  string `envconfig:"REQUEST_QUEUE_BACKEND" default:"memory"`
		Capacity int    `envconfig:"REQUEST_QUEUE_CAPACITY" default:"256"`
		Key      string `envconfig:"REQUEST_QUEUE_KEY" default:"feedwatch_requests"`
		AMQPURL  string `envconfig:"REQUEST_QUEUE_AMQP_URL"`
	} `envconfig:""`

	Updater struct {
		IntervalSeconds  int `envconfig:"UPDATER_INTERVAL_SECONDS" default:"60"`
		UserPaceSeconds  int `envconfig:"UPDATER_USER_PACE_SECONDS" default:"2"`
		BatchSize        int `envconfig:"UPDATER_BATCH_SIZE" default:"5"`
		NotFoundCacheTTL int `envconfig:"UPDATER_NOT_FOUND_TTL_SECONDS" default:"3600"`
	} `envconfig:""`

	Processor struct {
		IntervalSeconds int `envconfig:"PROCESSOR_INTERVAL_SECONDS" default:"10"`
	} `envconfig:""`

	MediaDir string `envconfig:"MEDIA_DIR" default:"content"`

	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
}

// Load загружает конфиг из окружения (.env учитывается в dev-запуске).
func Load() AppConfig {
	_ = godotenv.Load()
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
