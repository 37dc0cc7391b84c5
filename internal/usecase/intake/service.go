package intake

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clip-relay/internal/domain"
)

// Service принимает присланные ссылки и ставит их в input.
// Это единственная синхронная поверхность отказа конвейера.
type Service struct {
	queues domain.QueueManager
	log    zerolog.Logger
}

// NewService создаёт сервис приёма.
func NewService(queues domain.QueueManager, logger zerolog.Logger) *Service {
	return &Service{queues: queues, log: logger}
}

// Submit валидирует заявку и ставит элемент в очередь input.
// submittedBy — непрозрачная строка от вышестоящей аутентификации.
func (s *Service) Submit(ctx context.Context, rawURL string, platform domain.Platform, submittedBy string) (domain.QueueItem, error) {
	if !platform.Valid() {
		return domain.QueueItem{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedPlatform, platform)
	}
	trimmed := strings.TrimSpace(rawURL)
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return domain.QueueItem{}, fmt.Errorf("%w: %q", domain.ErrInvalidURL, rawURL)
	}

	item := domain.QueueItem{
		ID:          uuid.NewString(),
		URL:         trimmed,
		Platform:    platform,
		SubmittedBy: submittedBy,
		Timestamp:   time.Now().UTC(),
		Status:      domain.StatusPending,
		QueueType:   domain.QueueInput,
	}
	position, err := s.queues.Enqueue(ctx, domain.QueueInput, item)
	if err != nil {
		return domain.QueueItem{}, fmt.Errorf("постановка заявки: %w", err)
	}
	s.log.Info().Str("item", item.ID).Str("platform", string(platform)).Int64("position", position).Msg("intake: заявка принята")
	return item, nil
}
