package domain

import (
	"context"
	"time"
)

// MessageType описывает назначение конверта в очереди.
type MessageType string

const (
	// MessageProcess — элемент ждёт экстракции и обогащения.
	MessageProcess MessageType = "process"
	// MessagePublish — элемент готов к публикации.
	MessagePublish MessageType = "publish"
	// MessageRetry — элемент вернулся в очередь на повторную попытку.
	MessageRetry MessageType = "retry"
)

// QueueMessage — конверт, который лежит в списке очереди. Один и тот же элемент
// оборачивается в разные конверты по мере движения между очередями; счётчик
// попыток конверта — авторитетный счётчик для расчёта отсрочки, независимый от
// счётчика, сохранённого на самом элементе.
type QueueMessage struct {
	ID         string      `json:"id"`
	Type       MessageType `json:"type"`
	Data       QueueItem   `json:"data"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	RetryCount int         `json:"retry_count"`
}

// QueueStore — удалённое упорядоченное хранилище именованных списков;
// единственный примитив персистентности конвейера.
type QueueStore interface {
	// Push добавляет полезную нагрузку в хвост списка и возвращает его новую длину.
	Push(ctx context.Context, queue string, payload []byte) (int64, error)
	// MoveOldest атомарно переносит самый старый элемент from в хвост to.
	// Возвращает nil без ошибки, если from пуст.
	MoveOldest(ctx context.Context, from, to string) ([]byte, error)
	// Scan возвращает все полезные нагрузки списка от старых к новым.
	Scan(ctx context.Context, queue string) ([][]byte, error)
	// Remove удаляет первое вхождение полезной нагрузки и возвращает число удалённых.
	Remove(ctx context.Context, queue string, payload []byte) (int64, error)
	// Len возвращает длину списка.
	Len(ctx context.Context, queue string) (int64, error)
	// SetBlob сохраняет блоб элемента по ключу с TTL окна удержания.
	SetBlob(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// GetBlob возвращает блоб по ключу; nil без ошибки, если ключ отсутствует.
	GetBlob(ctx context.Context, key string) ([]byte, error)
}

// QueueManager управляет пятью очередями конвейера.
type QueueManager interface {
	Enqueue(ctx context.Context, queue string, item QueueItem) (int64, error)
	DequeueNext(ctx context.Context, queue string) (*QueueMessage, error)
	MoveBetweenQueues(ctx context.Context, itemID, from, to string) error
	Requeue(ctx context.Context, itemID, queue string) error
	MarkCompleted(ctx context.Context, itemID string) error
	MarkFailed(ctx context.Context, itemID, reason string) error
	ListMessages(ctx context.Context, queue string) ([]QueueMessage, error)
	RemoveMessage(ctx context.Context, itemID, queue string) error
	ReplaceMessage(ctx context.Context, queue string, old, updated QueueMessage) error
	SaveItem(ctx context.Context, item QueueItem) error
	GetItem(ctx context.Context, itemID string) (*QueueItem, error)
	Stats(ctx context.Context) (QueueStats, error)
}
