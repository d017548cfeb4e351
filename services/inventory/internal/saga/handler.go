// Package saga содержит Kafka-обвязку Inventory Service: перевод входящих
// событий саги (inventory.reserve-requested, inventory.released) в вызовы
// InventoryService и публикацию исходящих событий (inventory.reserved,
// inventory.reservation-failed) через Outbox Pattern. Как и у Payment
// Service здесь нет состояния саги — каждый обработчик самодостаточен и
// идемпотентен по orderId.
package saga

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"example.com/saga-platform/pkg/events"
	"example.com/saga-platform/pkg/logger"
	outboxpkg "example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/services/inventory/internal/domain"
	"example.com/saga-platform/services/inventory/internal/service"
)

// Handler переводит события саги в вызовы InventoryService и обратно.
type Handler struct {
	service service.InventoryService
	outbox  outboxpkg.OutboxRepository
}

// NewHandler создаёт обработчик событий саги для Inventory Service.
func NewHandler(inventoryService service.InventoryService, outbox outboxpkg.OutboxRepository) *Handler {
	return &Handler{service: inventoryService, outbox: outbox}
}

// HandleInventoryReserveRequested обрабатывает inventory.reserve-requested:
// резервирует товары (идемпотентно по orderId) и публикует
// inventory.reserved или inventory.reservation-failed в зависимости от результата.
func (h *Handler) HandleInventoryReserveRequested(ctx context.Context, env *events.Envelope) error {
	var payload events.InventoryReserveRequestedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("saga: не удалось разобрать inventory.reserve-requested: %w", err)
	}

	result, err := h.service.ReserveInventory(ctx, service.ReserveInventoryRequest{
		CorrelationID: env.CorrelationID,
		OrderID:       payload.OrderID,
		Items:         toDomainItems(payload.Items),
	})
	if err != nil {
		return err
	}

	if result.Success {
		out := events.InventoryReservedPayload{
			OrderID: payload.OrderID,
			Items:   payload.Items,
		}
		return h.publish(ctx, env, events.TopicInventoryReserved, payload.OrderID, out)
	}

	out := events.InventoryReservationFailedPayload{
		OrderID:                payload.OrderID,
		Reason:                 "Insufficient stock",
		InsufficientProductIDs: result.InsufficientProductIDs,
	}
	return h.publish(ctx, env, events.TopicInventoryReservationFailed, payload.OrderID, out)
}

// HandleInventoryReleased обрабатывает inventory.released, опубликованное
// Order Service при компенсации: освобождает резерв идемпотентно по orderId.
// Ответное событие не публикуется — координатор саги уже считает шаг
// компенсированным в момент публикации команды.
func (h *Handler) HandleInventoryReleased(ctx context.Context, env *events.Envelope) error {
	log := logger.FromContext(ctx)

	var payload events.InventoryReleasedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("saga: не удалось разобрать inventory.released: %w", err)
	}

	err := h.service.ReleaseInventory(ctx, service.ReleaseInventoryRequest{
		OrderID: payload.OrderID,
		Items:   toDomainItems(payload.Items),
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", payload.OrderID).Msg("Не удалось освободить резерв товаров")
		return err
	}

	return nil
}

// publish собирает конверт исходящего события и пишет его в outbox.
func (h *Handler) publish(ctx context.Context, causingEnv *events.Envelope, topic, orderID string, payload any) error {
	env, err := events.New(topic, events.SourceInventoryService, causingEnv.CorrelationID, causingEnv.ID, payload)
	if err != nil {
		return fmt.Errorf("saga: не удалось собрать событие %s: %w", topic, err)
	}

	data, err := env.ToJSON()
	if err != nil {
		return fmt.Errorf("saga: не удалось сериализовать конверт %s: %w", topic, err)
	}

	headers := map[string]string{
		events.HeaderEventID:       env.ID,
		events.HeaderEventType:     env.Type,
		events.HeaderCorrelationID: env.CorrelationID,
		events.HeaderCausationID:   env.CausationID,
	}

	record := &outboxpkg.Outbox{
		ID:            uuid.New().String(),
		AggregateType: "inventory",
		AggregateID:   orderID,
		EventType:     env.Type,
		Topic:         env.Type,
		MessageKey:    env.CorrelationID,
		Payload:       data,
		Headers:       headers,
	}

	return h.outbox.Create(ctx, record)
}

// toDomainItems конвертирует позиции конверта события в доменные позиции заказа.
func toDomainItems(items []events.Item) []domain.Item {
	out := make([]domain.Item, len(items))
	for i, it := range items {
		out[i] = domain.Item{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return out
}
