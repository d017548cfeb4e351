package channel

import (
	"context"

	"example.com/saga-platform/pkg/logger"
)

// EmailChannel — доставка уведомлений по email.
type EmailChannel struct{}

// NewEmailChannel создаёт email-канал.
func NewEmailChannel() *EmailChannel {
	return &EmailChannel{}
}

func (c *EmailChannel) Name() string { return "email" }

// Send в продакшене вызывал бы SES/SendGrid/Mailgun; здесь фиксирует
// факт отправки в лог, как и остальные каналы платформы.
func (c *EmailChannel) Send(ctx context.Context, to, subject, body string) error {
	logger.Ctx(ctx).Info().Str("channel", "email").Str("to", to).Str("subject", subject).Msg("Уведомление отправлено")
	return nil
}
