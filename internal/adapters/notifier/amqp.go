package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"clip-relay/internal/domain"
)

// AMQP раздаёт уведомления в exchange для внешних подписчиков
// (дашборды, дежурные боты).
type AMQP struct {
	channel  *amqp.Channel
	exchange string
}

// NewAMQP подключается к брокеру и объявляет fanout exchange.
func NewAMQP(url, exchange string) (*AMQP, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("подключение к брокеру: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("открытие канала: %w", err)
	}
	if err := channel.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("объявление exchange: %w", err)
	}
	return &AMQP{channel: channel, exchange: exchange}, nil
}

var _ domain.AlertNotifier = (*AMQP)(nil)

type alertEvent struct {
	Source     string    `json:"source"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	ErrorCount int       `json:"error_count"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notify публикует событие уведомления.
func (a *AMQP) Notify(ctx context.Context, alert domain.Alert) error {
	payload, err := json.Marshal(alertEvent{
		Source:     alert.Source,
		Severity:   string(alert.Severity),
		Message:    alert.Message,
		ErrorCount: alert.ErrorCount,
		OccurredAt: alert.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("сериализация события: %w", err)
	}
	err = a.channel.PublishWithContext(ctx, a.exchange, "", false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
		Timestamp:   alert.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("публикация события: %w", err)
	}
	return nil
}
