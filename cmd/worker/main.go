package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"clip-relay/internal/adapters/analyzer"
	"clip-relay/internal/adapters/extractor"
	"clip-relay/internal/adapters/notifier"
	"clip-relay/internal/domain"
	"clip-relay/internal/infra/config"
	applog "clip-relay/internal/infra/log"
	"clip-relay/internal/infra/metrics"
	"clip-relay/internal/infra/openai"
	queuestore "clip-relay/internal/infra/queue"
	"clip-relay/internal/usecase/errtrack"
	"clip-relay/internal/usecase/process"
	queueusecase "clip-relay/internal/usecase/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), ":9090")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	store := queuestore.NewRedisQueueStore(redisClient, cfg.Queue.Prefix)
	queues := queueusecase.NewManager(store, cfg.Queue.Retention, cfg.Queue.MaxRetries, logger.With().Str("component", "queue").Logger())

	var notifiers []domain.AlertNotifier
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != 0 {
		tg, err := notifier.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: уведомления Telegram недоступны")
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if cfg.Alerts.AMQPURL != "" {
		mq, err := notifier.NewAMQP(cfg.Alerts.AMQPURL, cfg.Alerts.AMQPExchange)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: уведомления AMQP недоступны")
		} else {
			notifiers = append(notifiers, mq)
		}
	}
	tracker := errtrack.New(notifiers, cfg.Alerts.ErrorThreshold, cfg.Alerts.CriticalThreshold, cfg.Alerts.MaxPerHour, logger.With().Str("component", "errtrack").Logger())

	extractorAdapter := extractor.New(cfg.Extractor.Timeout, cfg.Extractor.InstagramToken)
	var llm domain.Analyzer
	if cfg.OpenAI.APIKey != "" {
		llm = analyzer.NewOpenAI(openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout), cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	} else {
		logger.Warn().Msg("worker: ключ OpenAI не задан, используется детерминированный анализатор")
		llm = analyzer.NewStub()
	}
	processor := process.NewService(queues, extractorAdapter, llm, analyzer.NewStub(), tracker, cfg.Queue.MaxRetries, cfg.Queue.RetryDelay, logger.With().Str("component", "processor").Logger())

	ticker := time.NewTicker(cfg.Worker.Interval)
	defer ticker.Stop()
	logger.Info().Dur("interval", cfg.Worker.Interval).Msg("worker: цикл обработки запущен")
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("worker: остановка")
			return
		case <-ticker.C:
			results := processor.ProcessInputQueue(ctx)
			for _, res := range results {
				if res.Err != nil {
					logger.Error().Err(res.Err).Str("item", res.ItemID).Bool("retryable", res.Retryable).Msg("worker: элемент не обработан")
				}
			}
			if _, err := queues.Stats(ctx); err != nil {
				logger.Warn().Err(err).Msg("worker: статистика очередей недоступна")
			}
		}
	}
}
