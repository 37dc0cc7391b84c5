package domain

import (
	"context"
	"time"
)

// Extractor получает нормализованные метаданные ролика по ссылке.
type Extractor interface {
	Extract(ctx context.Context, url string, platform Platform) (VideoMetadata, error)
}

// Analysis — результат работы анализатора.
type Analysis struct {
	Description string
	Hashtags    []string
	Citation    string
}

// Analyzer строит подпись, хэштеги и ссылку на автора по метаданным.
// Любая его ошибка восстановима: процессор подставляет детерминированный фолбэк.
type Analyzer interface {
	Analyze(ctx context.Context, item QueueItem, meta VideoMetadata) (Analysis, error)
}

// FeedPost — публикация в ленту.
type FeedPost struct {
	VideoURL     string
	Caption      string
	ThumbnailURL string
}

// PublishResult — ответ платформы на публикацию.
type PublishResult struct {
	MediaID   string
	Permalink string
}

// Publisher публикует обработанный контент на целевой платформе.
type Publisher interface {
	PublishFeed(ctx context.Context, post FeedPost) (PublishResult, error)
	// PublishStory выполняется по возможности: её ошибка не проваливает публикацию.
	PublishStory(ctx context.Context, post FeedPost) (PublishResult, error)
}

// ConfigRepo хранит правило расписания публикаций.
type ConfigRepo interface {
	GetPublicationConfig(ctx context.Context) (PublicationConfig, error)
	UpdatePublicationConfig(ctx context.Context, cfg PublicationConfig) error
}

// PublicationLogRepo ведёт журнал состоявшихся публикаций.
type PublicationLogRepo interface {
	SavePublication(ctx context.Context, rec PublicationRecord) error
}

// AlertSeverity — серьёзность ошибки для трекера.
type AlertSeverity string

const (
	// SeverityWarning — деградация, не требующая вмешательства.
	SeverityWarning AlertSeverity = "warning"
	// SeverityError — ошибка обработки.
	SeverityError AlertSeverity = "error"
	// SeverityCritical — ошибка, требующая немедленного внимания.
	SeverityCritical AlertSeverity = "critical"
)

// Alert — уведомление оператору о всплеске ошибок.
type Alert struct {
	Source     string
	Severity   AlertSeverity
	Message    string
	ErrorCount int
	Window     time.Duration
	OccurredAt time.Time
}

// AlertNotifier доставляет уведомления во внешний канал.
type AlertNotifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// ErrorTracker ведёт скользящий счёт ошибок и шлёт ограниченные по частоте
// уведомления. Работает по возможности: его сбой никогда не проваливает
// отслеживаемую операцию.
type ErrorTracker interface {
	Track(ctx context.Context, err error, source string, fields map[string]string, severity AlertSeverity)
}

// Cache используется для простых TTL-хранилищ и дедупликации.
type Cache interface {
	Once(ctx context.Context, key string, ttl time.Duration, fn func() error) error
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
}
