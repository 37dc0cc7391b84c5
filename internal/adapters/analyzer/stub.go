package analyzer

import (
	"context"

	"clip-relay/internal/domain"
)

// Stub имитирует LLM-провайдера: отдаёт детерминированный фолбэк.
// Используется в dev-окружении без ключа OpenAI.
type Stub struct{}

// NewStub создаёт заглушку.
func NewStub() *Stub {
	return &Stub{}
}

var _ domain.Analyzer = (*Stub)(nil)

// Analyze возвращает базовое обогащение из метаданных.
func (s *Stub) Analyze(_ context.Context, item domain.QueueItem, meta domain.VideoMetadata) (domain.Analysis, error) {
	return BasicContent(item, meta), nil
}
