// Package saga содержит Kafka-обвязку Notification Service: перевод
// события notifications.send в вызов NotificationService. В отличие от
// payment и inventory здесь нет исходящего события и нет Outbox —
// сервис не участвует в саге, он терминальный наблюдатель за её исходом.
package saga

import (
	"context"
	"fmt"

	"example.com/saga-platform/pkg/events"
	"example.com/saga-platform/services/notification/internal/service"
)

// Handler переводит события notifications.send в вызовы NotificationService.
type Handler struct {
	service service.NotificationService
}

// NewHandler создаёт обработчик событий notifications.send.
func NewHandler(notificationService service.NotificationService) *Handler {
	return &Handler{service: notificationService}
}

// HandleNotificationSend обрабатывает notifications.send.
func (h *Handler) HandleNotificationSend(ctx context.Context, env *events.Envelope) error {
	var payload events.NotificationSendPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("saga: не удалось разобрать notifications.send: %w", err)
	}

	return h.service.Send(ctx, service.SendNotificationRequest{
		CustomerID: payload.CustomerID,
		Channel:    payload.Channel,
		TemplateID: payload.TemplateID,
		Variables:  payload.Variables,
	})
}
