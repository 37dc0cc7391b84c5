package process

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clip-relay/internal/domain"
	"clip-relay/internal/infra/metrics"
)

// Result — итог обработки одного элемента.
type Result struct {
	ItemID    string
	Success   bool
	Content   *domain.ProcessedContent
	Err       error
	Retryable bool
}

// platformWeights задают базовый приоритет платформ при выборе следующего
// элемента из пачки. Приоритет влияет только на порядок обработки,
// не на порядок в самом списке.
var platformWeights = map[domain.Platform]float64{
	domain.PlatformInstagram: 30,
	domain.PlatformTikTok:    20,
	domain.PlatformYouTube:   10,
}

// Service — процессор контента: экстракция → обогащение → перенос между очередями.
type Service struct {
	queues     domain.QueueManager
	extractor  domain.Extractor
	analyzer   domain.Analyzer
	fallback   domain.Analyzer
	tracker    domain.ErrorTracker
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

// NewService создаёт процессор. fallback — детерминированный анализатор,
// который подставляется при любом отказе основного.
func NewService(queues domain.QueueManager, extractor domain.Extractor, analyzer, fallback domain.Analyzer, tracker domain.ErrorTracker, maxRetries int, retryDelay time.Duration, logger zerolog.Logger) *Service {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = 30 * time.Second
	}
	return &Service{
		queues:     queues,
		extractor:  extractor,
		analyzer:   analyzer,
		fallback:   fallback,
		tracker:    tracker,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ProcessQueueItem проводит один элемент через экстракцию и обогащение.
// Временные сбои возвращаются в input с линейной отсрочкой, окончательные
// уходят в failed, исчерпавшие попытки — в dead_letter.
func (s *Service) ProcessQueueItem(ctx context.Context, item domain.QueueItem) Result {
	item.Status = domain.StatusProcessing
	if err := s.queues.SaveItem(ctx, item); err != nil {
		return s.operationalFailure(ctx, item.ID, fmt.Errorf("пометка processing: %w", err))
	}

	meta, err := s.extractor.Extract(ctx, item.URL, item.Platform)
	if err != nil {
		retryable := domain.IsTransient(err) || matchesTransientSignature(err)
		return s.handleExtractionFailure(ctx, item, err, retryable)
	}

	analysis := s.analyzeWithFallback(ctx, item, meta)

	now := s.now()
	content := domain.ProcessedContent{
		ID:           item.ID,
		OriginalURL:  item.URL,
		Platform:     item.Platform,
		Title:        meta.Title,
		Description:  analysis.Description,
		Tags:         analysis.Hashtags,
		Citation:     analysis.Citation,
		ThumbnailURL: meta.ThumbnailURL,
		ProcessedAt:  now,
	}
	item.Content = &content
	item.Status = domain.StatusCompleted
	item.QueueType = domain.QueueReadyToPublish
	item.ProcessedAt = &now
	item.Error = ""
	if err := s.queues.SaveItem(ctx, item); err != nil {
		return s.operationalFailure(ctx, item.ID, fmt.Errorf("сохранение результата: %w", err))
	}
	if err := s.queues.MoveBetweenQueues(ctx, item.ID, domain.QueueInput, domain.QueueReadyToPublish); err != nil {
		return s.operationalFailure(ctx, item.ID, fmt.Errorf("перенос в ready_to_publish: %w", err))
	}

	metrics.ItemsProcessedTotal.WithLabelValues(string(item.Platform), "success").Inc()
	s.log.Info().Str("item", item.ID).Str("platform", string(item.Platform)).Msg("processor: элемент обогащён")
	return Result{ItemID: item.ID, Success: true, Content: &content}
}

// analyzeWithFallback сводит «обогащено или базовый фолбэк» в один результат:
// отказ анализатора — вопрос качества, не корректности.
func (s *Service) analyzeWithFallback(ctx context.Context, item domain.QueueItem, meta domain.VideoMetadata) domain.Analysis {
	start := s.now()
	analysis, err := s.analyzer.Analyze(ctx, item, meta)
	metrics.AnalysisSeconds.Observe(time.Since(start).Seconds())
	if err == nil {
		return analysis
	}

	metrics.AnalyzerFallbackTotal.Inc()
	s.log.Warn().Err(err).Str("item", item.ID).Msg("processor: анализатор отказал, используется фолбэк")
	s.track(ctx, err, "analyzer", map[string]string{"item": item.ID}, domain.SeverityWarning)

	analysis, err = s.fallback.Analyze(ctx, item, meta)
	if err == nil {
		return analysis
	}
	// Фолбэк детерминированный и не должен падать; на всякий случай — метаданные как есть.
	return domain.Analysis{Description: meta.Title, Citation: item.URL}
}

func (s *Service) handleExtractionFailure(ctx context.Context, item domain.QueueItem, cause error, retryable bool) Result {
	s.track(ctx, cause, "extractor", map[string]string{"item": item.ID, "platform": string(item.Platform)}, domain.SeverityError)

	if retryable && item.RetryCount < s.maxRetries {
		item.RetryCount++
		item.Status = domain.StatusPending
		item.Error = cause.Error()
		if err := s.queues.SaveItem(ctx, item); err != nil {
			return s.operationalFailure(ctx, item.ID, fmt.Errorf("сохранение перед повтором: %w", err))
		}
		if err := s.queues.Requeue(ctx, item.ID, domain.QueueInput); err != nil {
			return s.operationalFailure(ctx, item.ID, fmt.Errorf("возврат в input: %w", err))
		}
		metrics.ItemsProcessedTotal.WithLabelValues(string(item.Platform), "retry").Inc()
		s.log.Warn().Err(cause).Str("item", item.ID).Int("retry", item.RetryCount).Msg("processor: повтор с отсрочкой")
		return Result{ItemID: item.ID, Success: false, Err: cause, Retryable: true}
	}

	// Окончательный сбой: либо ошибка неповторимая, либо попытки исчерпаны.
	destination := domain.QueueFailed
	if retryable {
		destination = domain.QueueDeadLetter
	}
	item.Status = domain.StatusFailed
	item.Error = cause.Error()
	if err := s.queues.SaveItem(ctx, item); err != nil {
		return s.operationalFailure(ctx, item.ID, fmt.Errorf("сохранение отказа: %w", err))
	}
	if err := s.queues.MoveBetweenQueues(ctx, item.ID, domain.QueueInput, destination); err != nil {
		return s.operationalFailure(ctx, item.ID, fmt.Errorf("перенос в %s: %w", destination, err))
	}
	metrics.ItemsProcessedTotal.WithLabelValues(string(item.Platform), "failed").Inc()
	s.log.Error().Err(cause).Str("item", item.ID).Str("queue", destination).Msg("processor: окончательный сбой")
	return Result{ItemID: item.ID, Success: false, Err: cause, Retryable: false}
}

// operationalFailure — сбой самого хранилища очередей: элемент остаётся как
// есть до следующего успешного прогона.
func (s *Service) operationalFailure(ctx context.Context, itemID string, err error) Result {
	s.track(ctx, err, "queue", map[string]string{"item": itemID}, domain.SeverityCritical)
	s.log.Error().Err(err).Str("item", itemID).Msg("processor: сбой хранилища очередей")
	return Result{ItemID: itemID, Success: false, Err: err, Retryable: true}
}

// ProcessInputQueue обрабатывает пачку: берутся только pending-элементы,
// чья отсрочка истекла; порядок — по приоритету платформы и возрасту.
// Элементы в статусе processing не перехватываются.
func (s *Service) ProcessInputQueue(ctx context.Context) []Result {
	messages, err := s.queues.ListMessages(ctx, domain.QueueInput)
	if err != nil {
		return []Result{s.operationalFailure(ctx, "", fmt.Errorf("просмотр input: %w", err))}
	}

	now := s.now()
	due := make([]domain.QueueMessage, 0, len(messages))
	for _, env := range messages {
		if env.Data.Status != domain.StatusPending {
			continue
		}
		if now.Before(env.EnqueuedAt.Add(s.backoff(env.RetryCount))) {
			continue
		}
		due = append(due, env)
	}
	sort.SliceStable(due, func(i, j int) bool {
		return s.priority(due[i], now) > s.priority(due[j], now)
	})

	results := make([]Result, 0, len(due))
	for _, env := range due {
		results = append(results, s.ProcessQueueItem(ctx, env.Data))
	}
	return results
}

// backoff — линейная отсрочка: delay × номер попытки.
func (s *Service) backoff(retryCount int) time.Duration {
	return s.retryDelay * time.Duration(retryCount)
}

func (s *Service) priority(env domain.QueueMessage, now time.Time) float64 {
	return platformWeights[env.Data.Platform] + now.Sub(env.Data.Timestamp).Minutes()
}

func (s *Service) track(ctx context.Context, err error, source string, fields map[string]string, severity domain.AlertSeverity) {
	if s.tracker == nil {
		return
	}
	s.tracker.Track(ctx, err, source, fields, severity)
}

// transientSignatures — фиксированный набор признаков временных сбоев
// для ошибок, не несущих типизированного признака.
var transientSignatures = []string{
	"connection reset",
	"connection refused",
	"no such host",
	"timeout",
	"deadline exceeded",
	"rate limit",
	"статус 429",
	"статус 5",
}

func matchesTransientSignature(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, signature := range transientSignatures {
		if strings.Contains(msg, strings.ToLower(signature)) {
			return true
		}
	}
	return false
}
