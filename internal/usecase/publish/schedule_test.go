package publish

import (
	"errors"
	"testing"
	"time"

	"clip-relay/internal/domain"
)

func dailyConfig(at string) domain.PublicationConfig {
	return domain.PublicationConfig{Frequency: domain.FrequencyDaily, Times: []string{at}, Timezone: "UTC"}
}

func TestNextPublicationTimeDailyAhead(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	next, err := NextPublicationTime(dailyConfig("14:00"), now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали %s, получили %s", want, next)
	}
}

func TestNextPublicationTimeDailyPassed(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	next, err := NextPublicationTime(dailyConfig("08:00"), now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали %s, получили %s", want, next)
	}
}

func TestNextPublicationTimeDailyExactInstant(t *testing.T) {
	// Ровно в момент слота переноса на завтра быть не должно.
	now := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	next, err := NextPublicationTime(dailyConfig("14:00"), now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !next.Equal(now) {
		t.Fatalf("ожидали сегодняшний слот %s, получили %s", now, next)
	}
}

func TestNextPublicationTimeMultipleDaily(t *testing.T) {
	cfg := domain.PublicationConfig{
		Frequency: domain.FrequencyMultipleDaily,
		Times:     []string{"16:00", "08:00", "12:00"},
		Timezone:  "UTC",
	}
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	next, err := NextPublicationTime(cfg, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали ближайший слот %s, получили %s", want, next)
	}
}

func TestNextPublicationTimeMultipleDailyRollsToTomorrow(t *testing.T) {
	cfg := domain.PublicationConfig{
		Frequency: domain.FrequencyMultipleDaily,
		Times:     []string{"08:00", "12:00", "16:00"},
		Timezone:  "UTC",
	}
	now := time.Date(2025, 6, 1, 17, 0, 0, 0, time.UTC)
	next, err := NextPublicationTime(cfg, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали завтрашний ранний слот %s, получили %s", want, next)
	}
}

func TestNextPublicationTimeEveryXDays(t *testing.T) {
	cfg := domain.PublicationConfig{
		Frequency: domain.FrequencyEveryXDays,
		Times:     []string{"09:00"},
		Interval:  2,
		Timezone:  "UTC",
	}
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	next, err := NextPublicationTime(cfg, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := time.Date(2025, 6, 3, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали слот через интервал %s, получили %s", want, next)
	}
}

func TestNextPublicationTimeRespectsTimezone(t *testing.T) {
	cfg := domain.PublicationConfig{
		Frequency: domain.FrequencyDaily,
		Times:     []string{"10:00"},
		Timezone:  "Europe/Moscow",
	}
	// 06:30 UTC = 09:30 по Москве, слот 10:00 МСК ещё впереди.
	now := time.Date(2025, 6, 1, 6, 30, 0, 0, time.UTC)
	next, err := NextPublicationTime(cfg, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	want := time.Date(2025, 6, 1, 7, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("ожидали %s, получили %s", want.UTC(), next.UTC())
	}
}

func TestNextPublicationTimeIdempotent(t *testing.T) {
	cfg := dailyConfig("14:00")
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	first, err := NextPublicationTime(cfg, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	second, err := NextPublicationTime(cfg, now)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !first.Equal(second) {
		t.Fatalf("повторный вызов дал другой результат: %s и %s", first, second)
	}
}

func TestNextPublicationTimeInvalidConfig(t *testing.T) {
	cases := []domain.PublicationConfig{
		{Frequency: domain.FrequencyDaily, Times: []string{"08:00", "12:00"}, Timezone: "UTC"},
		{Frequency: domain.FrequencyMultipleDaily, Times: []string{"08:00"}, Timezone: "UTC"},
		{Frequency: domain.FrequencyEveryXDays, Times: []string{"09:00"}, Interval: 0, Timezone: "UTC"},
		{Frequency: domain.FrequencyDaily, Times: []string{"25:00"}, Timezone: "UTC"},
		{Frequency: domain.FrequencyDaily, Times: []string{"09:00"}, Timezone: "Луна/Кратер"},
		{Frequency: "weekly", Times: []string{"09:00"}, Timezone: "UTC"},
	}
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, cfg := range cases {
		if _, err := NextPublicationTime(cfg, now); !errors.Is(err, domain.ErrInvalidConfig) {
			t.Fatalf("случай %d: ожидали ErrInvalidConfig, получили %v", i, err)
		}
	}
}

func TestShouldPublishNowWindow(t *testing.T) {
	cfg := dailyConfig("14:00")
	window := 5 * time.Minute

	inside, err := ShouldPublishNow(cfg, time.Date(2025, 6, 1, 13, 56, 0, 0, time.UTC), window)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !inside {
		t.Fatalf("13:56 попадает в окно ±5 минут вокруг 14:00")
	}

	outside, err := ShouldPublishNow(cfg, time.Date(2025, 6, 1, 13, 54, 0, 0, time.UTC), window)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if outside {
		t.Fatalf("13:54 не попадает в окно ±5 минут вокруг 14:00")
	}

	exact, err := ShouldPublishNow(cfg, time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC), window)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !exact {
		t.Fatalf("ровно в момент слота публиковать нужно")
	}
}
