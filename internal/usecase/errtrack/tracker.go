package errtrack

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"clip-relay/internal/domain"
	"clip-relay/internal/infra/metrics"
)

const rollingWindow = time.Hour

// Tracker ведёт скользящий счёт ошибок по источникам и шлёт уведомления
// при превышении порога. Уведомления ограничены по частоте независимо от
// объёма ошибок, чтобы не устраивать шторм. Критичные ошибки проверяются
// по отдельному, более низкому порогу. Трекер работает по возможности:
// его сбой никогда не доходит до отслеживаемой операции.
type Tracker struct {
	mu                sync.Mutex
	notifiers         []domain.AlertNotifier
	errorThreshold    int
	criticalThreshold int
	maxAlertsPerHour  int
	errors            map[string][]time.Time
	criticals         map[string][]time.Time
	alerts            map[string][]time.Time
	log               zerolog.Logger
	now               func() time.Time
}

// New создаёт трекер.
func New(notifiers []domain.AlertNotifier, errorThreshold, criticalThreshold, maxAlertsPerHour int, logger zerolog.Logger) *Tracker {
	if errorThreshold <= 0 {
		errorThreshold = 10
	}
	if criticalThreshold <= 0 {
		criticalThreshold = 3
	}
	if maxAlertsPerHour <= 0 {
		maxAlertsPerHour = 3
	}
	return &Tracker{
		notifiers:         notifiers,
		errorThreshold:    errorThreshold,
		criticalThreshold: criticalThreshold,
		maxAlertsPerHour:  maxAlertsPerHour,
		errors:            make(map[string][]time.Time),
		criticals:         make(map[string][]time.Time),
		alerts:            make(map[string][]time.Time),
		log:               logger,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

var _ domain.ErrorTracker = (*Tracker)(nil)

// Track регистрирует ошибку и при необходимости шлёт уведомление.
func (t *Tracker) Track(ctx context.Context, err error, source string, fields map[string]string, severity domain.AlertSeverity) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error().Interface("panic", r).Msg("errtrack: паника внутри трекера подавлена")
		}
	}()
	if err == nil {
		return
	}
	if source == "" {
		source = "unknown"
	}

	event := t.log.Warn()
	if severity == domain.SeverityCritical {
		event = t.log.Error()
	}
	for k, v := range fields {
		event = event.Str(k, v)
	}
	event.Err(err).Str("source", source).Str("severity", string(severity)).Msg("errtrack: ошибка зарегистрирована")

	now := t.now()
	t.mu.Lock()
	t.errors[source] = appendPruned(t.errors[source], now)
	errorCount := len(t.errors[source])
	criticalCount := 0
	if severity == domain.SeverityCritical {
		t.criticals[source] = appendPruned(t.criticals[source], now)
		criticalCount = len(t.criticals[source])
	}
	t.mu.Unlock()

	if severity == domain.SeverityCritical && criticalCount >= t.criticalThreshold {
		t.emit(ctx, domain.Alert{
			Source:     source,
			Severity:   domain.SeverityCritical,
			Message:    fmt.Sprintf("критичные ошибки в %s: %d за последний час (последняя: %v)", source, criticalCount, err),
			ErrorCount: criticalCount,
			Window:     rollingWindow,
			OccurredAt: now,
		})
		return
	}
	if errorCount >= t.errorThreshold {
		t.emit(ctx, domain.Alert{
			Source:     source,
			Severity:   domain.SeverityError,
			Message:    fmt.Sprintf("ошибки в %s: %d за последний час (последняя: %v)", source, errorCount, err),
			ErrorCount: errorCount,
			Window:     rollingWindow,
			OccurredAt: now,
		})
	}
}

// emit отправляет уведомление, если лимит на источник ещё не выбран.
func (t *Tracker) emit(ctx context.Context, alert domain.Alert) {
	t.mu.Lock()
	t.alerts[alert.Source] = pruneOld(t.alerts[alert.Source], t.now())
	if len(t.alerts[alert.Source]) >= t.maxAlertsPerHour {
		t.mu.Unlock()
		metrics.AlertsSuppressedTotal.WithLabelValues(alert.Source).Inc()
		t.log.Debug().Str("source", alert.Source).Msg("errtrack: уведомление подавлено лимитом")
		return
	}
	t.alerts[alert.Source] = append(t.alerts[alert.Source], t.now())
	t.mu.Unlock()

	metrics.AlertsSentTotal.WithLabelValues(alert.Source, string(alert.Severity)).Inc()
	for _, notifier := range t.notifiers {
		if err := notifier.Notify(ctx, alert); err != nil {
			t.log.Warn().Err(err).Str("source", alert.Source).Msg("errtrack: не удалось доставить уведомление")
		}
	}
}

func appendPruned(events []time.Time, now time.Time) []time.Time {
	return append(pruneOld(events, now), now)
}

func pruneOld(events []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rollingWindow)
	kept := events[:0]
	for _, ts := range events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}
