package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clip-relay/internal/domain"
	"clip-relay/internal/infra/metrics"
)

// RedisQueueStore реализует domain.QueueStore на базе Redis lists.
// Новые элементы кладутся LPUSH в голову списка, самый старый лежит в хвосте,
// поэтому атомарный перенос старейшего — LMOVE RIGHT LEFT одной командой.
type RedisQueueStore struct {
	client *redis.Client
	prefix string
}

// NewRedisQueueStore создаёт хранилище с указанным префиксом ключей.
func NewRedisQueueStore(client *redis.Client, prefix string) *RedisQueueStore {
	return &RedisQueueStore{client: client, prefix: prefix}
}

var _ domain.QueueStore = (*RedisQueueStore)(nil)

func (s *RedisQueueStore) listKey(queue string) string {
	return s.prefix + ":" + queue
}

func (s *RedisQueueStore) blobKey(key string) string {
	return s.prefix + ":" + key
}

func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// Push добавляет полезную нагрузку в очередь и возвращает её новую длину.
func (s *RedisQueueStore) Push(ctx context.Context, queue string, payload []byte) (int64, error) {
	start := time.Now()
	length, err := s.client.LPush(ctx, s.listKey(queue), payload).Result()
	metrics.ObserveNetworkRequest("redis", "push", queue, start, err)
	if err != nil {
		return 0, wrapStoreErr("push", err)
	}
	return length, nil
}

// MoveOldest атомарно переносит самый старый элемент from в to.
func (s *RedisQueueStore) MoveOldest(ctx context.Context, from, to string) ([]byte, error) {
	start := time.Now()
	payload, err := s.client.LMove(ctx, s.listKey(from), s.listKey(to), "RIGHT", "LEFT").Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "move_oldest", from, start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("redis", "move_oldest", from, start, err)
	if err != nil {
		return nil, wrapStoreErr("move oldest", err)
	}
	return payload, nil
}

// Scan возвращает все полезные нагрузки очереди от старых к новым.
func (s *RedisQueueStore) Scan(ctx context.Context, queue string) ([][]byte, error) {
	start := time.Now()
	values, err := s.client.LRange(ctx, s.listKey(queue), 0, -1).Result()
	metrics.ObserveNetworkRequest("redis", "scan", queue, start, err)
	if err != nil {
		return nil, wrapStoreErr("scan", err)
	}
	// LRANGE идёт от головы к хвосту, то есть от новых к старым.
	payloads := make([][]byte, 0, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		payloads = append(payloads, []byte(values[i]))
	}
	return payloads, nil
}

// Remove удаляет первое вхождение полезной нагрузки.
func (s *RedisQueueStore) Remove(ctx context.Context, queue string, payload []byte) (int64, error) {
	start := time.Now()
	removed, err := s.client.LRem(ctx, s.listKey(queue), 1, payload).Result()
	metrics.ObserveNetworkRequest("redis", "remove", queue, start, err)
	if err != nil {
		return 0, wrapStoreErr("remove", err)
	}
	return removed, nil
}

// Len возвращает длину очереди.
func (s *RedisQueueStore) Len(ctx context.Context, queue string) (int64, error) {
	start := time.Now()
	length, err := s.client.LLen(ctx, s.listKey(queue)).Result()
	metrics.ObserveNetworkRequest("redis", "len", queue, start, err)
	if err != nil {
		return 0, wrapStoreErr("len", err)
	}
	return length, nil
}

// SetBlob сохраняет блоб с TTL окна удержания: брошенные элементы
// хранилище выкидывает само.
func (s *RedisQueueStore) SetBlob(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.client.Set(ctx, s.blobKey(key), value, ttl).Err()
	metrics.ObserveNetworkRequest("redis", "set_blob", key, start, err)
	if err != nil {
		return wrapStoreErr("set blob", err)
	}
	return nil
}

// GetBlob возвращает блоб по ключу; nil, если ключ истёк или отсутствует.
func (s *RedisQueueStore) GetBlob(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.client.Get(ctx, s.blobKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveNetworkRequest("redis", "get_blob", key, start, nil)
		return nil, nil
	}
	metrics.ObserveNetworkRequest("redis", "get_blob", key, start, err)
	if err != nil {
		return nil, wrapStoreErr("get blob", err)
	}
	return value, nil
}
