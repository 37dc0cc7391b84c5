package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"clip-relay/internal/domain"
	queueusecase "clip-relay/internal/usecase/queue"
)

// memStore — хранилище очередей в памяти с семантикой Redis lists,
// чтобы прогнать связку менеджер → планировщик без стабов менеджера.
type memStore struct {
	lists map[string][][]byte
	blobs map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{lists: make(map[string][][]byte), blobs: make(map[string][]byte)}
}

func (s *memStore) Push(_ context.Context, queue string, payload []byte) (int64, error) {
	s.lists[queue] = append(s.lists[queue], payload)
	return int64(len(s.lists[queue])), nil
}

func (s *memStore) MoveOldest(_ context.Context, from, to string) ([]byte, error) {
	list := s.lists[from]
	if len(list) == 0 {
		return nil, nil
	}
	oldest := list[0]
	s.lists[from] = list[1:]
	s.lists[to] = append(s.lists[to], oldest)
	return oldest, nil
}

func (s *memStore) Scan(_ context.Context, queue string) ([][]byte, error) {
	return append([][]byte(nil), s.lists[queue]...), nil
}

func (s *memStore) Remove(_ context.Context, queue string, payload []byte) (int64, error) {
	for i, existing := range s.lists[queue] {
		if string(existing) == string(payload) {
			s.lists[queue] = append(append([][]byte(nil), s.lists[queue][:i]...), s.lists[queue][i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *memStore) Len(_ context.Context, queue string) (int64, error) {
	return int64(len(s.lists[queue])), nil
}

func (s *memStore) SetBlob(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.blobs[key] = value
	return nil
}

func (s *memStore) GetBlob(_ context.Context, key string) ([]byte, error) {
	return s.blobs[key], nil
}

// Элемент, потративший попытки на этапе обработки, получает полный лимит
// публикационных попыток: счётчики этапов независимы.
func TestPublishRetriesIndependentOfProcessingRetries(t *testing.T) {
	store := newMemStore()
	manager := queueusecase.NewManager(store, time.Hour, 3, zerolog.Nop())
	ctx := context.Background()

	item := readyItem("a", time.Hour)
	item.RetryCount = 2
	item.Status = domain.StatusPending
	item.QueueType = domain.QueueInput
	if _, err := manager.Enqueue(ctx, domain.QueueInput, item); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	item.Status = domain.StatusCompleted
	item.QueueType = domain.QueueReadyToPublish
	if err := manager.SaveItem(ctx, item); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := manager.MoveBetweenQueues(ctx, "a", domain.QueueInput, domain.QueueReadyToPublish); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	pub := &fakePublisher{feedErr: errors.New("Graph API: статус 500")}
	svc := newTestPublishService(manager, &fakeConfigs{cfg: dailyConfig("14:00")}, pub, &fakePubLog{}, nil)

	for attempt := 1; attempt <= 2; attempt++ {
		outcome := svc.ManualPublish(ctx)
		if outcome.Published {
			t.Fatalf("попытка %d: публикация не должна была состояться", attempt)
		}
		ready, err := manager.ListMessages(ctx, domain.QueueReadyToPublish)
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if len(ready) != 1 {
			t.Fatalf("попытка %d: элемент должен оставаться в ready_to_publish", attempt)
		}
		if ready[0].RetryCount != attempt {
			t.Fatalf("попытка %d: ожидали счётчик конверта %d, получили %d", attempt, attempt, ready[0].RetryCount)
		}
	}

	outcome := svc.ManualPublish(ctx)
	if outcome.Published {
		t.Fatalf("третья попытка должна исчерпать лимит")
	}
	ready, err := manager.ListMessages(ctx, domain.QueueReadyToPublish)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(ready) != 0 {
		t.Fatalf("после исчерпания попыток ready_to_publish должен опустеть")
	}
	dead, err := manager.ListMessages(ctx, domain.QueueDeadLetter)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(dead) != 1 || dead[0].Data.ID != "a" {
		t.Fatalf("ожидали a в dead_letter: %+v", dead)
	}
	if pub.feedCalls != 3 {
		t.Fatalf("ожидали три публикационные попытки, получили %d", pub.feedCalls)
	}
	saved, err := manager.GetItem(ctx, "a")
	if err != nil || saved == nil {
		t.Fatalf("блоб элемента должен сохраниться: %v", err)
	}
	if saved.Status != domain.StatusFailed {
		t.Fatalf("элемент должен быть помечен failed: %+v", saved)
	}
}

func TestSchedulerErrorsReachTracker(t *testing.T) {
	tr := &fakeTracker{}
	svc := NewService(newFakeManager(), &fakeConfigs{err: domain.ErrInvalidConfig}, &fakePublisher{}, nil, nil, tr, 5*time.Minute, 3, time.Minute, zerolog.Nop())

	outcome := svc.ExecuteScheduled(context.Background())
	if outcome.Published {
		t.Fatalf("публикации при ошибке расписания быть не должно")
	}
	if tr.count != 1 {
		t.Fatalf("ожидали одно событие трекера, получили %d", tr.count)
	}
}

func TestSchedulerWithoutTracker(t *testing.T) {
	svc := NewService(newFakeManager(), &fakeConfigs{err: domain.ErrInvalidConfig}, &fakePublisher{}, nil, nil, nil, 5*time.Minute, 3, time.Minute, zerolog.Nop())

	// Отсутствие трекера не должно ронять тик.
	outcome := svc.ExecuteScheduled(context.Background())
	if outcome.Published || outcome.Err == nil {
		t.Fatalf("ожидали ошибку расписания без публикации: %+v", outcome)
	}
}
