package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv string `envconfig:"APP_ENV" default:"dev"`
	TZ     string `envconfig:"TZ" default:"UTC"`
	Port   int    `envconfig:"PORT" default:"8080"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	PGDSN     string `envconfig:"PG_DSN"`

	Queue struct {
		Prefix     string        `envconfig:"QUEUE_PREFIX" default:"content_queue"`
		Retention  time.Duration `envconfig:"QUEUE_RETENTION" default:"24h"`
		MaxRetries int           `envconfig:"QUEUE_MAX_RETRIES" default:"3"`
		RetryDelay time.Duration `envconfig:"QUEUE_RETRY_DELAY" default:"30s"`
	} `envconfig:""`

	Worker struct {
		Interval time.Duration `envconfig:"WORKER_INTERVAL" default:"1m"`
	} `envconfig:""`

	Publish struct {
		Tick       time.Duration `envconfig:"PUBLISH_TICK" default:"1m"`
		Window     time.Duration `envconfig:"PUBLISH_WINDOW" default:"5m"`
		MaxRetries int           `envconfig:"PUBLISH_MAX_RETRIES" default:"3"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string        `envconfig:"OPENAI_API_KEY"`
		BaseURL string        `envconfig:"OPENAI_BASE_URL"`
		Model   string        `envconfig:"OPENAI_MODEL" default:"gpt-4.1-mini"`
		Timeout time.Duration `envconfig:"OPENAI_TIMEOUT" default:"15s"`
	} `envconfig:""`

	Extractor struct {
		Timeout        time.Duration `envconfig:"EXTRACTOR_TIMEOUT" default:"10s"`
		InstagramToken string        `envconfig:"IG_OEMBED_TOKEN"`
	} `envconfig:""`

	Publisher struct {
		AccessToken string        `envconfig:"IG_ACCESS_TOKEN"`
		AccountID   string        `envconfig:"IG_ACCOUNT_ID"`
		Timeout     time.Duration `envconfig:"PUBLISHER_TIMEOUT" default:"30s"`
	} `envconfig:""`

	Alerts struct {
		TelegramToken     string `envconfig:"ALERT_TG_TOKEN"`
		TelegramChatID    int64  `envconfig:"ALERT_TG_CHAT_ID"`
		AMQPURL           string `envconfig:"ALERT_AMQP_URL"`
		AMQPExchange      string `envconfig:"ALERT_AMQP_EXCHANGE" default:"pipeline.alerts"`
		ErrorThreshold    int    `envconfig:"ALERT_ERROR_THRESHOLD" default:"10"`
		CriticalThreshold int    `envconfig:"ALERT_CRITICAL_THRESHOLD" default:"3"`
		MaxPerHour        int    `envconfig:"ALERT_MAX_PER_HOUR" default:"3"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
