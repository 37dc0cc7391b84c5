package publish

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clip-relay/internal/domain"
	"clip-relay/internal/infra/metrics"
)

// Outcome — итог одного тика публикации.
type Outcome struct {
	Published bool
	ItemID    string
	Permalink string
	Reason    string
	Err       error
}

// Service — планировщик публикаций: решает «публиковать ли сейчас» и ведёт
// переход ready_to_publish → published с ограниченными повторами.
type Service struct {
	queues     domain.QueueManager
	configs    domain.ConfigRepo
	publisher  domain.Publisher
	pubLog     domain.PublicationLogRepo
	cache      domain.Cache
	tracker    domain.ErrorTracker
	window     time.Duration
	maxRetries int
	tick       time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт планировщик. pubLog и cache необязательны.
func NewService(queues domain.QueueManager, configs domain.ConfigRepo, publisher domain.Publisher, pubLog domain.PublicationLogRepo, cache domain.Cache, tracker domain.ErrorTracker, window time.Duration, maxRetries int, tick time.Duration, logger zerolog.Logger) *Service {
	if window <= 0 {
		window = 5 * time.Minute
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if tick <= 0 {
		tick = time.Minute
	}
	return &Service{
		queues:     queues,
		configs:    configs,
		publisher:  publisher,
		pubLog:     pubLog,
		cache:      cache,
		tracker:    tracker,
		window:     window,
		maxRetries: maxRetries,
		tick:       tick,
		log:        logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ExecuteScheduled публикует самый старый готовый элемент, если текущий момент
// попадает в окно расписания. Слот дедуплицируется через кэш: пересекающиеся
// тики не публикуют дважды за одно окно.
func (s *Service) ExecuteScheduled(ctx context.Context) Outcome {
	cfg, err := s.configs.GetPublicationConfig(ctx)
	if err != nil {
		s.track(ctx, err, "scheduler", nil, domain.SeverityCritical)
		return Outcome{Published: false, Err: fmt.Errorf("чтение расписания: %w", err)}
	}

	now := s.now()
	ok, err := ShouldPublishNow(cfg, now, s.window)
	if err != nil {
		s.track(ctx, err, "scheduler", nil, domain.SeverityError)
		return Outcome{Published: false, Err: err}
	}
	if !ok {
		return Outcome{Published: false, Reason: "вне окна публикации"}
	}

	if s.cache != nil {
		next, err := NextPublicationTime(cfg, now)
		if err != nil {
			return Outcome{Published: false, Err: err}
		}
		slotKey := "publish_slot:" + next.UTC().Format(time.RFC3339)
		outcome := Outcome{Published: false, Reason: "слот уже опубликован"}
		if err := s.cache.Once(ctx, slotKey, 2*s.window, func() error {
			outcome = s.publishOldest(ctx)
			if outcome.Err != nil {
				return outcome.Err
			}
			return nil
		}); err != nil && outcome.Err == nil {
			return Outcome{Published: false, Err: err}
		}
		return outcome
	}
	return s.publishOldest(ctx)
}

// ManualPublish — тот же алгоритм по внешнему требованию, без проверки окна.
func (s *Service) ManualPublish(ctx context.Context) Outcome {
	return s.publishOldest(ctx)
}

func (s *Service) publishOldest(ctx context.Context) Outcome {
	messages, err := s.queues.ListMessages(ctx, domain.QueueReadyToPublish)
	if err != nil {
		s.track(ctx, err, "scheduler", nil, domain.SeverityCritical)
		return Outcome{Published: false, Err: fmt.Errorf("просмотр ready_to_publish: %w", err)}
	}
	if len(messages) == 0 {
		return Outcome{Published: false, Reason: "очередь публикации пуста"}
	}

	// «Самый старый» — по моменту постановки элемента, не по позиции в списке:
	// возврат после неудачной попытки не меняет очерёдность.
	oldest := messages[0]
	for _, env := range messages[1:] {
		if env.Data.Timestamp.Before(oldest.Data.Timestamp) {
			oldest = env
		}
	}
	item := oldest.Data

	if item.Content == nil {
		reason := "элемент без контента в ready_to_publish"
		s.track(ctx, fmt.Errorf("%s: %s", reason, item.ID), "scheduler", map[string]string{"item": item.ID}, domain.SeverityCritical)
		item.Status = domain.StatusFailed
		item.Error = reason
		_ = s.queues.SaveItem(ctx, item)
		if err := s.queues.MoveBetweenQueues(ctx, item.ID, domain.QueueReadyToPublish, domain.QueueDeadLetter); err != nil {
			return Outcome{Published: false, ItemID: item.ID, Err: err}
		}
		return Outcome{Published: false, ItemID: item.ID, Reason: reason}
	}

	post := domain.FeedPost{
		VideoURL:     item.URL,
		Caption:      buildCaption(*item.Content),
		ThumbnailURL: item.Content.ThumbnailURL,
	}
	result, err := s.publisher.PublishFeed(ctx, post)
	if err != nil {
		return s.handlePublishFailure(ctx, oldest, err)
	}

	// Сторис — по возможности: её отказ не проваливает публикацию.
	if _, err := s.publisher.PublishStory(ctx, post); err != nil {
		s.log.Warn().Err(err).Str("item", item.ID).Msg("scheduler: сторис не опубликована")
		s.track(ctx, err, "publisher", map[string]string{"item": item.ID, "kind": "story"}, domain.SeverityWarning)
	}

	now := s.now()
	item.Status = domain.StatusCompleted
	item.PublishedAt = &now
	item.Error = ""
	if err := s.queues.SaveItem(ctx, item); err != nil {
		s.log.Warn().Err(err).Str("item", item.ID).Msg("scheduler: не удалось обновить блоб элемента")
	}
	if err := s.queues.RemoveMessage(ctx, item.ID, domain.QueueReadyToPublish); err != nil {
		s.track(ctx, err, "scheduler", map[string]string{"item": item.ID}, domain.SeverityCritical)
		return Outcome{Published: true, ItemID: item.ID, Permalink: result.Permalink, Err: err}
	}

	if s.pubLog != nil {
		rec := domain.PublicationRecord{
			ItemID:      item.ID,
			URL:         item.URL,
			Platform:    item.Platform,
			MediaID:     result.MediaID,
			Permalink:   result.Permalink,
			PublishedAt: now,
		}
		if err := s.pubLog.SavePublication(ctx, rec); err != nil {
			s.log.Warn().Err(err).Str("item", item.ID).Msg("scheduler: журнал публикаций недоступен")
		}
	}

	metrics.ItemsPublishedTotal.WithLabelValues(string(item.Platform), "success").Inc()
	s.log.Info().Str("item", item.ID).Str("permalink", result.Permalink).Msg("scheduler: элемент опубликован")
	return Outcome{Published: true, ItemID: item.ID, Permalink: result.Permalink}
}

// handlePublishFailure ведёт счётчик публикационных попыток — отдельный от
// счётчика процессора. Пока попытки не исчерпаны, элемент остаётся в
// ready_to_publish до следующего тика; немедленных повторов нет.
func (s *Service) handlePublishFailure(ctx context.Context, env domain.QueueMessage, cause error) Outcome {
	item := env.Data
	s.track(ctx, cause, "publisher", map[string]string{"item": item.ID}, domain.SeverityError)

	updated := env
	updated.RetryCount++
	if updated.RetryCount < s.maxRetries {
		if err := s.queues.ReplaceMessage(ctx, domain.QueueReadyToPublish, env, updated); err != nil {
			return Outcome{Published: false, ItemID: item.ID, Err: err}
		}
		metrics.ItemsPublishedTotal.WithLabelValues(string(item.Platform), "retry").Inc()
		s.log.Warn().Err(cause).Str("item", item.ID).Int("attempt", updated.RetryCount).Msg("scheduler: публикация не удалась, повтор на следующем тике")
		return Outcome{Published: false, ItemID: item.ID, Err: cause, Reason: "повтор на следующем тике"}
	}

	item.Status = domain.StatusFailed
	item.Error = cause.Error()
	if err := s.queues.SaveItem(ctx, item); err != nil {
		s.log.Warn().Err(err).Str("item", item.ID).Msg("scheduler: не удалось обновить блоб элемента")
	}
	if err := s.queues.MoveBetweenQueues(ctx, item.ID, domain.QueueReadyToPublish, domain.QueueDeadLetter); err != nil {
		return Outcome{Published: false, ItemID: item.ID, Err: err}
	}
	metrics.ItemsPublishedTotal.WithLabelValues(string(item.Platform), "failed").Inc()
	s.log.Error().Err(cause).Str("item", item.ID).Msg("scheduler: публикационные попытки исчерпаны")
	return Outcome{Published: false, ItemID: item.ID, Err: cause, Reason: "попытки исчерпаны"}
}

// Run крутит тики до отмены контекста. Старт и остановка идемпотентны:
// состояние цикла живёт только в контексте вызова.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	s.log.Info().Dur("tick", s.tick).Msg("scheduler: цикл публикаций запущен")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler: цикл публикаций остановлен")
			return ctx.Err()
		case <-ticker.C:
			outcome := s.ExecuteScheduled(ctx)
			if outcome.Err != nil {
				s.log.Error().Err(outcome.Err).Msg("scheduler: тик завершился ошибкой")
			}
		}
	}
}

func (s *Service) track(ctx context.Context, err error, source string, fields map[string]string, severity domain.AlertSeverity) {
	if s.tracker == nil {
		return
	}
	s.tracker.Track(ctx, err, source, fields, severity)
}

func buildCaption(content domain.ProcessedContent) string {
	parts := make([]string, 0, 3)
	if content.Description != "" {
		parts = append(parts, content.Description)
	}
	if len(content.Tags) > 0 {
		parts = append(parts, strings.Join(content.Tags, " "))
	}
	if content.Citation != "" {
		parts = append(parts, content.Citation)
	}
	return strings.Join(parts, "\n\n")
}
