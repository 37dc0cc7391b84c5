package notifier

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"clip-relay/internal/domain"
)

// Telegram шлёт уведомления оператору в чат через Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram создаёт нотификатор.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("создание бота: %w", err)
	}
	return &Telegram{bot: bot, chatID: chatID}, nil
}

var _ domain.AlertNotifier = (*Telegram)(nil)

// Notify отправляет уведомление в чат.
func (t *Telegram) Notify(_ context.Context, alert domain.Alert) error {
	var b strings.Builder
	if alert.Severity == domain.SeverityCritical {
		b.WriteString("🚨 КРИТИЧНО\n")
	} else {
		b.WriteString("⚠️ Внимание\n")
	}
	b.WriteString(fmt.Sprintf("Источник: %s\n", alert.Source))
	b.WriteString(fmt.Sprintf("Ошибок за %s: %d\n", alert.Window, alert.ErrorCount))
	b.WriteString(alert.Message)

	msg := tgbotapi.NewMessage(t.chatID, b.String())
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("отправка уведомления: %w", err)
	}
	return nil
}
