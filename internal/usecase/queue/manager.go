package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"clip-relay/internal/domain"
	"clip-relay/internal/infra/metrics"
)

// Manager владеет пятью очередями конвейера и реализует перемещения между ними.
// Многошаговые операции над одним элементом сериализуются мьютексом по его id,
// поэтому пересекающиеся тики планировщика и воркера не гонятся за один элемент.
type Manager struct {
	store      domain.QueueStore
	retention  time.Duration
	maxRetries int
	locks      keyedMutex
	log        zerolog.Logger
}

// NewManager создаёт менеджера очередей.
func NewManager(store domain.QueueStore, retention time.Duration, maxRetries int, logger zerolog.Logger) *Manager {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Manager{
		store:      store,
		retention:  retention,
		maxRetries: maxRetries,
		locks:      newKeyedMutex(),
		log:        logger,
	}
}

var _ domain.QueueManager = (*Manager)(nil)

func itemKey(itemID string) string {
	return "content:" + itemID
}

// typeForQueue выбирает назначение конверта для очереди-получателя.
func typeForQueue(queue string) domain.MessageType {
	switch queue {
	case domain.QueueReadyToPublish:
		return domain.MessagePublish
	case domain.QueueFailed:
		return domain.MessageRetry
	default:
		return domain.MessageProcess
	}
}

// Enqueue сохраняет блоб элемента и кладёт конверт в очередь.
// Возвращает позицию — длину очереди после вставки.
func (m *Manager) Enqueue(ctx context.Context, queue string, item domain.QueueItem) (int64, error) {
	if err := m.SaveItem(ctx, item); err != nil {
		return 0, err
	}
	env := domain.QueueMessage{
		ID:         uuid.NewString(),
		Type:       typeForQueue(queue),
		Data:       item,
		EnqueuedAt: time.Now().UTC(),
		RetryCount: item.RetryCount,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return 0, fmt.Errorf("сериализация конверта: %w", err)
	}
	position, err := m.store.Push(ctx, queue, payload)
	if err != nil {
		return 0, fmt.Errorf("постановка в %s: %w", queue, err)
	}
	return position, nil
}

// DequeueNext атомарно переносит самый старый конверт очереди в processing
// и возвращает его. Возвращает nil, nil на пустой очереди.
func (m *Manager) DequeueNext(ctx context.Context, queue string) (*domain.QueueMessage, error) {
	payload, err := m.store.MoveOldest(ctx, queue, domain.QueueProcessing)
	if err != nil {
		return nil, fmt.Errorf("захват из %s: %w", queue, err)
	}
	if payload == nil {
		return nil, nil
	}
	var env domain.QueueMessage
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("распаковка конверта: %w", err)
	}
	return &env, nil
}

// MoveBetweenQueues находит конверт элемента в from, удаляет его и кладёт в to
// с переразмеченным назначением. Линейный просмотр по глубине очереди:
// приемлемо, пока глубины остаются в сотнях.
func (m *Manager) MoveBetweenQueues(ctx context.Context, itemID, from, to string) error {
	unlock := m.locks.lock(itemID)
	defer unlock()

	env, payload, err := m.findMessage(ctx, from, itemID)
	if err != nil {
		return err
	}
	removed, err := m.store.Remove(ctx, from, payload)
	if err != nil {
		return fmt.Errorf("удаление из %s: %w", from, err)
	}
	if removed == 0 {
		// Конкурирующий перенос успел раньше: не дублируем элемент.
		return fmt.Errorf("%w: %s уже перенесён из %s", domain.ErrNotFound, itemID, from)
	}
	// Блоб авторитетен: конверт в очереди-получателе несёт свежее состояние элемента.
	if fresh, err := m.GetItem(ctx, itemID); err == nil && fresh != nil {
		env.Data = *fresh
		env.RetryCount = fresh.RetryCount
	}
	env.Type = typeForQueue(to)
	// Попытки публикации считаются с нуля: счётчик обработки остаётся
	// только на самом элементе.
	if to == domain.QueueReadyToPublish {
		env.RetryCount = 0
	}
	updated, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("сериализация конверта: %w", err)
	}
	if _, err := m.store.Push(ctx, to, updated); err != nil {
		return fmt.Errorf("постановка в %s: %w", to, err)
	}
	return nil
}

// Requeue возвращает элемент в очередь на повторную попытку: конверт получает
// свежее состояние из блоба, тип retry и новый момент постановки, от которого
// отсчитывается линейная отсрочка.
func (m *Manager) Requeue(ctx context.Context, itemID, queue string) error {
	unlock := m.locks.lock(itemID)
	defer unlock()

	env, payload, err := m.findMessage(ctx, queue, itemID)
	if err != nil {
		return err
	}
	removed, err := m.store.Remove(ctx, queue, payload)
	if err != nil {
		return fmt.Errorf("удаление из %s: %w", queue, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s уже отсутствует в %s", domain.ErrNotFound, itemID, queue)
	}
	if fresh, err := m.GetItem(ctx, itemID); err == nil && fresh != nil {
		env.Data = *fresh
	}
	env.Type = domain.MessageRetry
	env.RetryCount = env.Data.RetryCount
	env.EnqueuedAt = time.Now().UTC()
	updated, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("сериализация конверта: %w", err)
	}
	if _, err := m.store.Push(ctx, queue, updated); err != nil {
		return fmt.Errorf("постановка в %s: %w", queue, err)
	}
	return nil
}

// MarkCompleted убирает конверт элемента из processing после терминального успеха.
func (m *Manager) MarkCompleted(ctx context.Context, itemID string) error {
	unlock := m.locks.lock(itemID)
	defer unlock()

	_, payload, err := m.findMessage(ctx, domain.QueueProcessing, itemID)
	if err != nil {
		return err
	}
	removed, err := m.store.Remove(ctx, domain.QueueProcessing, payload)
	if err != nil {
		return fmt.Errorf("удаление из processing: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s не в processing", domain.ErrNotFound, itemID)
	}
	return nil
}

// MarkFailed убирает конверт из processing и направляет его в failed,
// пока попытки конверта не исчерпаны, иначе — в dead_letter на ручной разбор.
func (m *Manager) MarkFailed(ctx context.Context, itemID, reason string) error {
	unlock := m.locks.lock(itemID)
	defer unlock()

	env, payload, err := m.findMessage(ctx, domain.QueueProcessing, itemID)
	if err != nil {
		return err
	}
	removed, err := m.store.Remove(ctx, domain.QueueProcessing, payload)
	if err != nil {
		return fmt.Errorf("удаление из processing: %w", err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s не в processing", domain.ErrNotFound, itemID)
	}

	env.Data.Status = domain.StatusFailed
	env.Data.Error = reason
	destination := domain.QueueFailed
	if env.RetryCount >= m.maxRetries {
		destination = domain.QueueDeadLetter
	} else {
		env.Type = domain.MessageRetry
	}
	if err := m.SaveItem(ctx, env.Data); err != nil {
		m.log.Warn().Err(err).Str("item", itemID).Msg("queue: не удалось обновить блоб элемента")
	}
	updated, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("сериализация конверта: %w", err)
	}
	if _, err := m.store.Push(ctx, destination, updated); err != nil {
		return fmt.Errorf("постановка в %s: %w", destination, err)
	}
	return nil
}

// ListMessages возвращает конверты очереди от старых к новым.
// Нечитаемые конверты пропускаются с предупреждением в лог.
func (m *Manager) ListMessages(ctx context.Context, queue string) ([]domain.QueueMessage, error) {
	payloads, err := m.store.Scan(ctx, queue)
	if err != nil {
		return nil, fmt.Errorf("просмотр %s: %w", queue, err)
	}
	messages := make([]domain.QueueMessage, 0, len(payloads))
	for _, payload := range payloads {
		var env domain.QueueMessage
		if err := json.Unmarshal(payload, &env); err != nil {
			m.log.Warn().Err(err).Str("queue", queue).Msg("queue: пропущен нечитаемый конверт")
			continue
		}
		messages = append(messages, env)
	}
	return messages, nil
}

// RemoveMessage удаляет конверт элемента из очереди. Терминальный успех:
// элемент исчезает из списков, его блоб доживает TTL.
func (m *Manager) RemoveMessage(ctx context.Context, itemID, queue string) error {
	unlock := m.locks.lock(itemID)
	defer unlock()

	_, payload, err := m.findMessage(ctx, queue, itemID)
	if err != nil {
		return err
	}
	removed, err := m.store.Remove(ctx, queue, payload)
	if err != nil {
		return fmt.Errorf("удаление из %s: %w", queue, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s уже отсутствует в %s", domain.ErrNotFound, itemID, queue)
	}
	return nil
}

// ReplaceMessage заменяет конверт элемента в очереди обновлённой версией.
// Используется планировщиком для счётчика публикационных попыток.
func (m *Manager) ReplaceMessage(ctx context.Context, queue string, old, updated domain.QueueMessage) error {
	unlock := m.locks.lock(old.Data.ID)
	defer unlock()

	oldPayload, err := json.Marshal(old)
	if err != nil {
		return fmt.Errorf("сериализация конверта: %w", err)
	}
	removed, err := m.store.Remove(ctx, queue, oldPayload)
	if err != nil {
		return fmt.Errorf("удаление из %s: %w", queue, err)
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s уже отсутствует в %s", domain.ErrNotFound, old.Data.ID, queue)
	}
	newPayload, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("сериализация конверта: %w", err)
	}
	if _, err := m.store.Push(ctx, queue, newPayload); err != nil {
		return fmt.Errorf("постановка в %s: %w", queue, err)
	}
	return nil
}

// SaveItem перезаписывает блоб элемента с TTL окна удержания.
func (m *Manager) SaveItem(ctx context.Context, item domain.QueueItem) error {
	blob, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("сериализация элемента: %w", err)
	}
	if err := m.store.SetBlob(ctx, itemKey(item.ID), blob, m.retention); err != nil {
		return fmt.Errorf("сохранение элемента: %w", err)
	}
	return nil
}

// GetItem возвращает сохранённый блоб элемента; nil, если TTL истёк.
func (m *Manager) GetItem(ctx context.Context, itemID string) (*domain.QueueItem, error) {
	blob, err := m.store.GetBlob(ctx, itemKey(itemID))
	if err != nil {
		return nil, fmt.Errorf("чтение элемента: %w", err)
	}
	if blob == nil {
		return nil, nil
	}
	var item domain.QueueItem
	if err := json.Unmarshal(blob, &item); err != nil {
		return nil, fmt.Errorf("распаковка элемента: %w", err)
	}
	return &item, nil
}

// Stats возвращает длины очередей. Значения совещательные: параллельные
// изменения не согласованы транзакционно.
func (m *Manager) Stats(ctx context.Context) (domain.QueueStats, error) {
	var stats domain.QueueStats
	counts := []struct {
		queue string
		dest  *int64
	}{
		{domain.QueueInput, &stats.Input},
		{domain.QueueReadyToPublish, &stats.ReadyToPublish},
		{domain.QueueProcessing, &stats.Processing},
		{domain.QueueFailed, &stats.Failed},
	}
	for _, c := range counts {
		length, err := m.store.Len(ctx, c.queue)
		if err != nil {
			return domain.QueueStats{}, fmt.Errorf("длина %s: %w", c.queue, err)
		}
		*c.dest = length
		metrics.SetQueueDepth(c.queue, length)
	}
	stats.Total = stats.Input + stats.ReadyToPublish + stats.Processing + stats.Failed
	return stats, nil
}

func (m *Manager) findMessage(ctx context.Context, queue, itemID string) (domain.QueueMessage, []byte, error) {
	payloads, err := m.store.Scan(ctx, queue)
	if err != nil {
		return domain.QueueMessage{}, nil, fmt.Errorf("просмотр %s: %w", queue, err)
	}
	for _, payload := range payloads {
		var env domain.QueueMessage
		if err := json.Unmarshal(payload, &env); err != nil {
			continue
		}
		if env.Data.ID == itemID {
			return env, payload, nil
		}
	}
	return domain.QueueMessage{}, nil, fmt.Errorf("%w: %s в %s", domain.ErrNotFound, itemID, queue)
}

// keyedMutex сериализует операции по ключу элемента.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() keyedMutex {
	return keyedMutex{locks: make(map[string]*lockEntry)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
