package publish

import (
	"fmt"
	"sort"
	"time"

	"clip-relay/internal/domain"
)

// NextPublicationTime вычисляет ближайший момент публикации по правилу
// расписания. Все времена трактуются в поясе правила: один и тот же момент
// даёт одно и то же решение независимо от пояса процесса. Функция чистая
// и идемпотентная относительно (cfg, now).
func NextPublicationTime(cfg domain.PublicationConfig, now time.Time) (time.Time, error) {
	if err := cfg.Validate(); err != nil {
		return time.Time{}, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return time.Time{}, err
	}
	local := now.In(loc)

	switch cfg.Frequency {
	case domain.FrequencyDaily:
		candidate, err := atTimeOfDay(local, cfg.Times[0], loc)
		if err != nil {
			return time.Time{}, err
		}
		if candidate.Before(local) {
			candidate = candidate.AddDate(0, 0, 1)
		}
		return candidate, nil

	case domain.FrequencyMultipleDaily:
		times := append([]string(nil), cfg.Times...)
		sort.Strings(times)
		for _, t := range times {
			candidate, err := atTimeOfDay(local, t, loc)
			if err != nil {
				return time.Time{}, err
			}
			if candidate.After(local) {
				return candidate, nil
			}
		}
		// Сегодня слотов не осталось: самый ранний слот завтра.
		candidate, err := atTimeOfDay(local, times[0], loc)
		if err != nil {
			return time.Time{}, err
		}
		return candidate.AddDate(0, 0, 1), nil

	case domain.FrequencyEveryXDays:
		candidate, err := atTimeOfDay(local, cfg.Times[0], loc)
		if err != nil {
			return time.Time{}, err
		}
		if candidate.Before(local) {
			candidate = candidate.AddDate(0, 0, cfg.Interval)
		}
		return candidate, nil

	default:
		return time.Time{}, fmt.Errorf("%w: неизвестная частота %q", domain.ErrInvalidConfig, cfg.Frequency)
	}
}

// ShouldPublishNow сообщает, попадает ли now в окно ±window вокруг
// ближайшего момента публикации.
func ShouldPublishNow(cfg domain.PublicationConfig, now time.Time, window time.Duration) (bool, error) {
	next, err := NextPublicationTime(cfg, now)
	if err != nil {
		return false, err
	}
	diff := next.Sub(now)
	if diff < 0 {
		diff = -diff
	}
	return diff <= window, nil
}

// atTimeOfDay возвращает момент дня day с временем HH:MM в поясе loc.
func atTimeOfDay(day time.Time, hhmm string, loc *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: время %q: %v", domain.ErrInvalidConfig, hhmm, err)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), parsed.Hour(), parsed.Minute(), 0, 0, loc), nil
}
