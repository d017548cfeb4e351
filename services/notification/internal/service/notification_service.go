// Package service содержит бизнес-логику Notification Service — чисто
// реактивного сервиса без собственного состояния и без участия в саге:
// он только доставляет уведомления по событию notifications.send.
package service

import (
	"context"
	"fmt"
	"hash/fnv"

	"example.com/saga-platform/pkg/logger"
	"example.com/saga-platform/services/notification/internal/channel"
	"example.com/saga-platform/services/notification/internal/template"
)

// SendNotificationRequest — запрос на доставку уведомления, соответствует
// payload'у notifications.send.
type SendNotificationRequest struct {
	CustomerID string
	Channel    string
	TemplateID string
	Variables  map[string]string
}

// NotificationService — интерфейс доставки уведомлений.
type NotificationService interface {
	Send(ctx context.Context, req SendNotificationRequest) error
}

// notificationService — реализация NotificationService со стратегией
// выбора канала доставки.
type notificationService struct {
	channels map[string]channel.Channel
	fallback string
}

// NewNotificationService создаёт сервис уведомлений с заданным набором
// каналов. fallback — канал по умолчанию при неизвестном/пустом channel
// в событии (обычно "email").
func NewNotificationService(channels []channel.Channel, fallback string) NotificationService {
	byName := make(map[string]channel.Channel, len(channels))
	for _, c := range channels {
		byName[c.Name()] = c
	}
	return &notificationService{channels: byName, fallback: fallback}
}

// Send рендерит содержимое по шаблону, резолвит адресата и отправляет
// уведомление через канал, указанный в запросе (с fallback при неизвестном).
func (s *notificationService) Send(ctx context.Context, req SendNotificationRequest) error {
	log := logger.Ctx(ctx)

	content := template.Render(req.TemplateID, req.Variables)

	ch, ok := s.channels[req.Channel]
	if !ok {
		ch, ok = s.channels[s.fallback]
		if !ok {
			return fmt.Errorf("канал доставки %q и fallback %q не зарегистрированы", req.Channel, s.fallback)
		}
	}

	to := resolveContact(req.CustomerID, ch.Name())
	body := content.Body
	if ch.Name() == "sms" {
		body = content.SMS
	}

	if err := ch.Send(ctx, to, content.Subject, body); err != nil {
		return fmt.Errorf("ошибка отправки уведомления через канал %s: %w", ch.Name(), err)
	}

	log.Info().Str("customer_id", req.CustomerID).Str("channel", ch.Name()).Str("template_id", req.TemplateID).
		Msg("Уведомление доставлено")
	return nil
}

// resolveContact подставляет адрес получателя по customerId. В проде это
// было бы обращение к Redis-кешу профиля пользователя либо к user-service;
// здесь, как и в оригинале, используется детерминированная заглушка.
func resolveContact(customerID, channelName string) string {
	if channelName == "sms" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(customerID))
		return fmt.Sprintf("+1555%07d", h.Sum32()%10000000)
	}
	return customerID + "@platform.example.com"
}
