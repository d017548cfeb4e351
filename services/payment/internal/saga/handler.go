// Package saga содержит Kafka-обвязку Payment Service: перевод входящих
// событий саги (payments.initiated, payments.refunded) в вызовы
// PaymentService и публикацию исходящих событий (payments.completed,
// payments.failed) через Outbox Pattern. В отличие от Order Service здесь
// нет состояния саги — каждый обработчик представляет собой одношаговую
// идемпотентную операцию, не требующую конвейера валидации.
package saga

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"example.com/saga-platform/pkg/events"
	"example.com/saga-platform/pkg/logger"
	outboxpkg "example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/services/payment/internal/service"
)

// Handler переводит события саги в вызовы PaymentService и обратно.
type Handler struct {
	service service.PaymentService
	outbox  outboxpkg.OutboxRepository
}

// NewHandler создаёт обработчик событий саги для Payment Service.
func NewHandler(paymentService service.PaymentService, outbox outboxpkg.OutboxRepository) *Handler {
	return &Handler{service: paymentService, outbox: outbox}
}

// HandlePaymentInitiated обрабатывает payments.initiated: выполняет платёж
// (идемпотентно по orderId) и публикует payments.completed или
// payments.failed в зависимости от результата.
func (h *Handler) HandlePaymentInitiated(ctx context.Context, env *events.Envelope) error {
	var payload events.PaymentInitiatedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("saga: не удалось разобрать payments.initiated: %w", err)
	}

	result, err := h.service.ProcessPayment(ctx, service.ProcessPaymentRequest{
		CorrelationID: env.CorrelationID,
		OrderID:       payload.OrderID,
		UserID:        payload.CustomerID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		PaymentMethod: payload.PaymentMethod,
	})
	if err != nil {
		return err
	}

	if result.Success {
		out := events.PaymentCompletedPayload{
			OrderID:   payload.OrderID,
			PaymentID: result.PaymentID,
			Amount:    payload.Amount,
			Currency:  payload.Currency,
		}
		return h.publish(ctx, env, events.TopicPaymentCompleted, payload.OrderID, out)
	}

	out := events.PaymentFailedPayload{
		OrderID: payload.OrderID,
		Reason:  result.FailureReason,
	}
	return h.publish(ctx, env, events.TopicPaymentFailed, payload.OrderID, out)
}

// HandlePaymentRefundRequested обрабатывает payments.refunded, опубликованное
// Order Service при компенсации: выполняет возврат идемпотентно по paymentId.
// Ответное событие не публикуется — координатор саги уже считает шаг
// компенсированным в момент публикации команды.
func (h *Handler) HandlePaymentRefundRequested(ctx context.Context, env *events.Envelope) error {
	log := logger.FromContext(ctx)

	var payload events.PaymentRefundedPayload
	if err := env.Decode(&payload); err != nil {
		return fmt.Errorf("saga: не удалось разобрать payments.refunded: %w", err)
	}

	err := h.service.RefundPayment(ctx, service.RefundPaymentRequest{
		PaymentID: payload.PaymentID,
		Reason:    "компенсация саги: " + env.CorrelationID,
	})
	if err != nil {
		log.Error().Err(err).Str("payment_id", payload.PaymentID).Str("order_id", payload.OrderID).
			Msg("Не удалось выполнить возврат платежа")
		return err
	}

	return nil
}

// publish собирает конверт исходящего события и пишет его в outbox.
func (h *Handler) publish(ctx context.Context, causingEnv *events.Envelope, topic, orderID string, payload any) error {
	env, err := events.New(topic, events.SourcePaymentService, causingEnv.CorrelationID, causingEnv.ID, payload)
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
		AggregateType: "payment",
		AggregateID:   orderID,
		EventType:     env.Type,
		Topic:         env.Type,
		MessageKey:    env.CorrelationID,
		Payload:       data,
		Headers:       headers,
	}

	return h.outbox.Create(ctx, record)
}
