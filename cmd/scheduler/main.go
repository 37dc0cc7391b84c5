package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"clip-relay/internal/adapters/notifier"
	"clip-relay/internal/adapters/publisher"
	"clip-relay/internal/adapters/repo"
	"clip-relay/internal/domain"
	"clip-relay/internal/infra/cache"
	"clip-relay/internal/infra/config"
	"clip-relay/internal/infra/db"
	applog "clip-relay/internal/infra/log"
	"clip-relay/internal/infra/metrics"
	queuestore "clip-relay/internal/infra/queue"
	"clip-relay/internal/usecase/errtrack"
	"clip-relay/internal/usecase/publish"
	queueusecase "clip-relay/internal/usecase/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "scheduler")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9091")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	store := queuestore.NewRedisQueueStore(redisClient, cfg.Queue.Prefix)
	queues := queueusecase.NewManager(store, cfg.Queue.Retention, cfg.Queue.MaxRetries, logger.With().Str("component", "queue").Logger())
	slotCache := cache.NewRedis(redisClient)

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("scheduler: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	var notifiers []domain.AlertNotifier
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != 0 {
		tg, err := notifier.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("scheduler: уведомления Telegram недоступны")
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if cfg.Alerts.AMQPURL != "" {
		mq, err := notifier.NewAMQP(cfg.Alerts.AMQPURL, cfg.Alerts.AMQPExchange)
		if err != nil {
			logger.Warn().Err(err).Msg("scheduler: уведомления AMQP недоступны")
		} else {
			notifiers = append(notifiers, mq)
		}
	}
	tracker := errtrack.New(notifiers, cfg.Alerts.ErrorThreshold, cfg.Alerts.CriticalThreshold, cfg.Alerts.MaxPerHour, logger.With().Str("component", "errtrack").Logger())

	if cfg.Publisher.AccessToken == "" || cfg.Publisher.AccountID == "" {
		logger.Fatal().Msg("scheduler: не заданы доступы паблишера (IG_ACCESS_TOKEN, IG_ACCOUNT_ID)")
	}
	igPublisher := publisher.NewInstagram(cfg.Publisher.AccessToken, cfg.Publisher.AccountID, "", cfg.Publisher.Timeout)

	service := publish.NewService(queues, repoAdapter, igPublisher, repoAdapter, slotCache, tracker, cfg.Publish.Window, cfg.Publish.MaxRetries, cfg.Publish.Tick, logger)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("scheduler: цикл завершился с ошибкой")
	}
}
