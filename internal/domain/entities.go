package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Platform обозначает видеоплатформу, с которой пришла ссылка.
type Platform string

const (
	// PlatformInstagram — ссылки на Reels и посты Instagram.
	PlatformInstagram Platform = "instagram"
	// PlatformYouTube — ссылки на ролики и Shorts YouTube.
	PlatformYouTube Platform = "youtube"
	// PlatformTikTok — ссылки на видео TikTok.
	PlatformTikTok Platform = "tiktok"
)

// KnownPlatforms перечисляет поддерживаемые платформы.
var KnownPlatforms = []Platform{PlatformInstagram, PlatformYouTube, PlatformTikTok}

// Valid сообщает, поддерживается ли платформа.
func (p Platform) Valid() bool {
	switch p {
	case PlatformInstagram, PlatformYouTube, PlatformTikTok:
		return true
	}
	return false
}

// ItemStatus описывает стадию обработки элемента очереди.
type ItemStatus string

const (
	// StatusPending — элемент ждёт обработки.
	StatusPending ItemStatus = "pending"
	// StatusProcessing — элемент взят в работу.
	StatusProcessing ItemStatus = "processing"
	// StatusCompleted — элемент успешно обработан; терминальный статус.
	StatusCompleted ItemStatus = "completed"
	// StatusFailed — элемент обработать не удалось.
	StatusFailed ItemStatus = "failed"
)

// Имена очередей конвейера.
const (
	QueueInput          = "input"
	QueueReadyToPublish = "ready_to_publish"
	QueueProcessing     = "processing"
	QueueFailed         = "failed"
	QueueDeadLetter     = "dead_letter"
)

// QueueItem — единица работы конвейера: одна присланная ссылка.
type QueueItem struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Platform    Platform          `json:"platform"`
	SubmittedBy string            `json:"submitted_by"`
	Timestamp   time.Time         `json:"timestamp"`
	Status      ItemStatus        `json:"status"`
	QueueType   string            `json:"queue_type"`
	Content     *ProcessedContent `json:"content,omitempty"`
	ProcessedAt *time.Time        `json:"processed_at,omitempty"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	RetryCount  int               `json:"retry_count"`
	Error       string            `json:"error,omitempty"`
}

// VideoMetadata — нормализованные метаданные ролика, результат экстракции.
type VideoMetadata struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	ThumbnailURL string     `json:"thumbnail_url,omitempty"`
	Author       string     `json:"author,omitempty"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	ViewCount    int64      `json:"view_count,omitempty"`
	Duration     int        `json:"duration,omitempty"`
}

// ProcessedContent — результат обогащения: подпись, хэштеги и ссылка на автора.
// После создания не изменяется.
type ProcessedContent struct {
	ID           string    `json:"id"`
	OriginalURL  string    `json:"original_url"`
	Platform     Platform  `json:"platform"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Tags         []string  `json:"tags"`
	Citation     string    `json:"citation"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// HashtagPattern — допустимый вид хэштега после нормализации.
var HashtagPattern = regexp.MustCompile(`^#[A-Za-z0-9_]+$`)

// QueueStats — длины очередей; только для наблюдения, без транзакционных гарантий.
type QueueStats struct {
	Input          int64 `json:"input"`
	ReadyToPublish int64 `json:"ready_to_publish"`
	Processing     int64 `json:"processing"`
	Failed         int64 `json:"failed"`
	Total          int64 `json:"total"`
}

// Frequency задаёт режим повторения публикаций.
type Frequency string

const (
	// FrequencyDaily — одна публикация в день.
	FrequencyDaily Frequency = "daily"
	// FrequencyMultipleDaily — несколько публикаций в день.
	FrequencyMultipleDaily Frequency = "multiple-daily"
	// FrequencyEveryXDays — публикация раз в N дней.
	FrequencyEveryXDays Frequency = "every-x-days"
)

// PublicationConfig — правило расписания публикаций.
type PublicationConfig struct {
	Frequency Frequency `json:"frequency"`
	Times     []string  `json:"times"`
	Interval  int       `json:"interval,omitempty"`
	Timezone  string    `json:"timezone"`
}

var timeOfDayPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// Validate проверяет инварианты правила расписания.
func (c PublicationConfig) Validate() error {
	switch c.Frequency {
	case FrequencyDaily:
		if len(c.Times) != 1 {
			return fmt.Errorf("%w: daily требует ровно одно время, получено %d", ErrInvalidConfig, len(c.Times))
		}
	case FrequencyMultipleDaily:
		if len(c.Times) < 2 {
			return fmt.Errorf("%w: multiple-daily требует минимум два времени, получено %d", ErrInvalidConfig, len(c.Times))
		}
	case FrequencyEveryXDays:
		if len(c.Times) != 1 {
			return fmt.Errorf("%w: every-x-days требует ровно одно время, получено %d", ErrInvalidConfig, len(c.Times))
		}
		if c.Interval < 1 {
			return fmt.Errorf("%w: интервал должен быть не меньше 1 дня, получено %d", ErrInvalidConfig, c.Interval)
		}
	default:
		return fmt.Errorf("%w: неизвестная частота %q", ErrInvalidConfig, c.Frequency)
	}
	for _, t := range c.Times {
		if !timeOfDayPattern.MatchString(t) {
			return fmt.Errorf("%w: время %q не в формате HH:MM", ErrInvalidConfig, t)
		}
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: часовой пояс %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return nil
}

// Location возвращает часовой пояс правила.
func (c PublicationConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: часовой пояс %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// PublicationRecord — запись журнала о состоявшейся публикации.
type PublicationRecord struct {
	ItemID      string    `json:"item_id"`
	URL         string    `json:"url"`
	Platform    Platform  `json:"platform"`
	MediaID     string    `json:"media_id"`
	Permalink   string    `json:"permalink,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}
