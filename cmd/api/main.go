package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	chi "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"clip-relay/internal/adapters/analyzer"
	"clip-relay/internal/adapters/extractor"
	"clip-relay/internal/adapters/notifier"
	"clip-relay/internal/adapters/publisher"
	"clip-relay/internal/adapters/repo"
	"clip-relay/internal/domain"
	"clip-relay/internal/infra/config"
	"clip-relay/internal/infra/db"
	httpinfra "clip-relay/internal/infra/http"
	applog "clip-relay/internal/infra/log"
	"clip-relay/internal/infra/metrics"
	"clip-relay/internal/infra/openai"
	queuestore "clip-relay/internal/infra/queue"
	"clip-relay/internal/usecase/errtrack"
	"clip-relay/internal/usecase/intake"
	"clip-relay/internal/usecase/process"
	"clip-relay/internal/usecase/publish"
	queueusecase "clip-relay/internal/usecase/queue"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "api")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	store := queuestore.NewRedisQueueStore(redisClient, cfg.Queue.Prefix)
	queues := queueusecase.NewManager(store, cfg.Queue.Retention, cfg.Queue.MaxRetries, logger.With().Str("component", "queue").Logger())

	pool, err := db.Connect(cfg.PGDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: нет подключения к БД")
	}
	defer pool.Close()
	repoAdapter := repo.NewPostgres(pool)

	tracker := errtrack.New(buildNotifiers(cfg), cfg.Alerts.ErrorThreshold, cfg.Alerts.CriticalThreshold, cfg.Alerts.MaxPerHour, logger.With().Str("component", "errtrack").Logger())

	extractorAdapter := extractor.New(cfg.Extractor.Timeout, cfg.Extractor.InstagramToken)
	var llm domain.Analyzer
	if cfg.OpenAI.APIKey != "" {
		llm = analyzer.NewOpenAI(openai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL, cfg.OpenAI.Timeout), cfg.OpenAI.Model, cfg.OpenAI.Timeout)
	} else {
		llm = analyzer.NewStub()
	}
	processor := process.NewService(queues, extractorAdapter, llm, analyzer.NewStub(), tracker, cfg.Queue.MaxRetries, cfg.Queue.RetryDelay, logger.With().Str("component", "processor").Logger())

	igPublisher := publisher.NewInstagram(cfg.Publisher.AccessToken, cfg.Publisher.AccountID, "", cfg.Publisher.Timeout)
	scheduler := publish.NewService(queues, repoAdapter, igPublisher, repoAdapter, nil, tracker, cfg.Publish.Window, cfg.Publish.MaxRetries, cfg.Publish.Tick, logger.With().Str("component", "scheduler").Logger())

	intakeService := intake.NewService(queues, logger.With().Str("component", "intake").Logger())

	server := httpinfra.NewServer(logger)
	server.Router.Route("/api/v1", func(r chi.Router) {
		r.Post("/submissions", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req submissionRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "некорректное тело запроса")
				return
			}
			submittedBy := r.Header.Get("X-Operator-Email")
			item, err := intakeService.Submit(r.Context(), req.URL, domain.Platform(req.Platform), submittedBy)
			if err != nil {
				status := http.StatusBadRequest
				if errors.Is(err, domain.ErrStoreUnavailable) {
					status = http.StatusServiceUnavailable
				}
				writeError(w, status, err.Error())
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, map[string]string{"id": item.ID})
		})

		r.Get("/queue/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := queues.Stats(r.Context())
			if err != nil {
				writeError(w, http.StatusServiceUnavailable, err.Error())
				return
			}
			writeJSON(w, stats)
		})

		r.Post("/queue/process", func(w http.ResponseWriter, r *http.Request) {
			results := processor.ProcessInputQueue(r.Context())
			succeeded := 0
			for _, res := range results {
				if res.Success {
					succeeded++
				}
			}
			writeJSON(w, map[string]int{"processed": len(results), "succeeded": succeeded})
		})

		r.Post("/publications/trigger", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var req triggerRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				writeError(w, http.StatusBadRequest, "некорректное тело запроса")
				return
			}
			var outcome publish.Outcome
			switch req.Mode {
			case "manual":
				outcome = scheduler.ManualPublish(r.Context())
			case "scheduled", "":
				outcome = scheduler.ExecuteScheduled(r.Context())
			default:
				writeError(w, http.StatusBadRequest, "mode должен быть scheduled или manual")
				return
			}
			resp := map[string]any{"published": outcome.Published}
			if outcome.ItemID != "" {
				resp["item_id"] = outcome.ItemID
			}
			if outcome.Permalink != "" {
				resp["permalink"] = outcome.Permalink
			}
			if outcome.Reason != "" {
				resp["reason"] = outcome.Reason
			}
			if outcome.Err != nil {
				resp["error"] = outcome.Err.Error()
			}
			writeJSON(w, resp)
		})

		r.Get("/publications/config", func(w http.ResponseWriter, r *http.Request) {
			pubCfg, err := repoAdapter.GetPublicationConfig(r.Context())
			if err != nil {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			writeJSON(w, pubCfg)
		})

		r.Put("/publications/config", func(w http.ResponseWriter, r *http.Request) {
			defer r.Body.Close()
			var pubCfg domain.PublicationConfig
			if err := json.NewDecoder(r.Body).Decode(&pubCfg); err != nil {
				writeError(w, http.StatusBadRequest, "некорректное тело запроса")
				return
			}
			if err := repoAdapter.UpdatePublicationConfig(r.Context(), pubCfg); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			writeJSON(w, map[string]string{"status": "ok"})
		})
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.Start(":" + strconv.Itoa(cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("api: сервер остановился с ошибкой")
	}
}

type submissionRequest struct {
	URL      string `json:"url"`
	Platform string `json:"platform"`
}

type triggerRequest struct {
	Mode string `json:"mode"`
}

func buildNotifiers(cfg config.AppConfig) []domain.AlertNotifier {
	var notifiers []domain.AlertNotifier
	if cfg.Alerts.TelegramToken != "" && cfg.Alerts.TelegramChatID != 0 {
		tg, err := notifier.NewTelegram(cfg.Alerts.TelegramToken, cfg.Alerts.TelegramChatID)
		if err != nil {
			log.Warn().Err(err).Msg("уведомления Telegram недоступны")
		} else {
			notifiers = append(notifiers, tg)
		}
	}
	if cfg.Alerts.AMQPURL != "" {
		mq, err := notifier.NewAMQP(cfg.Alerts.AMQPURL, cfg.Alerts.AMQPExchange)
		if err != nil {
			log.Warn().Err(err).Msg("уведомления AMQP недоступны")
		} else {
			notifiers = append(notifiers, mq)
		}
	}
	return notifiers
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
