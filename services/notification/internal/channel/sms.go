package channel

import (
	"context"

	"example.com/saga-platform/pkg/logger"
)

// SMSChannel — доставка уведомлений по SMS.
type SMSChannel struct{}

// NewSMSChannel создаёт sms-канал.
func NewSMSChannel() *SMSChannel {
	return &SMSChannel{}
}

func (c *SMSChannel) Name() string { return "sms" }

// Send в продакшене вызывал бы Twilio/AWS SNS; здесь фиксирует
// факт отправки в лог, обрезая тело до 80 символов как в оригинале.
func (c *SMSChannel) Send(ctx context.Context, to, subject, body string) error {
	preview := body
	if runes := []rune(preview); len(runes) > 80 {
		preview = string(runes[:80])
	}
	logger.Ctx(ctx).Info().Str("channel", "sms").Str("to", to).Str("body", preview).Msg("Уведомление отправлено")
	return nil
}
