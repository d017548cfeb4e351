package saga

import (
	"context"
	"fmt"
	"sync"

	"example.com/saga-platform/pkg/events"
	"example.com/saga-platform/pkg/idempotency"
	"example.com/saga-platform/pkg/kafka"
	"example.com/saga-platform/pkg/logger"
)

// =============================================================================
// EventConsumer — обработчик одного входящего топика саги
// =============================================================================

// KafkaConsumer — интерфейс для чтения сообщений из Kafka.
// Позволяет замокать kafka.Consumer в unit-тестах (Dependency Inversion).
type KafkaConsumer interface {
	ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error
	Close() error
}

// handlerFunc — обработчик конкретного типа события, вызывается после
// прохождения Idempotency Guard.
type handlerFunc func(ctx context.Context, env *events.Envelope) error

// EventConsumer слушает один входящий топик (payments.initiated,
// payments.refunded) и проверяет событие через Idempotency Guard перед
// делегированием в Handler.
type EventConsumer struct {
	consumer KafkaConsumer
	guard    *idempotency.Guard
	topic    string
	handle   handlerFunc
}

// newEventConsumer создаёт consumer для одного топика.
func newEventConsumer(consumer KafkaConsumer, guard *idempotency.Guard, topic string, handle handlerFunc) *EventConsumer {
	return &EventConsumer{consumer: consumer, guard: guard, topic: topic, handle: handle}
}

// Run запускает чтение топика. Блокирует до отмены контекста.
func (c *EventConsumer) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	log.Info().Str("topic", c.topic).Msg("Запуск consumer'а Payment Service")

	return c.consumer.ConsumeWithRetry(ctx, c.handleMessage, 3)
}

// handleMessage десериализует конверт, пропускает повторные доставки через
// Idempotency Guard и делегирует обработку Handler'у. В отличие от Order
// Service здесь нет конвейера валидации саги — ошибка Handler'а всегда
// означает "повторить доставку", кроме ошибок парсинга.
func (c *EventConsumer) handleMessage(ctx context.Context, msg *kafka.Message) error {
	log := logger.FromContext(ctx)

	env, err := events.FromJSON(msg.Value)
	if err != nil {
		log.Error().Err(err).Str("topic", msg.Topic).Str("payload", string(msg.Value)).
			Msg("Не удалось разобрать конверт события, сообщение не подлежит повтору")
		return &nonRetryableError{cause: err}
	}

	duplicate, err := c.guard.IsDuplicate(ctx, env.ID, c.topic)
	if err != nil {
		return fmt.Errorf("idempotency guard: %w", err)
	}
	if duplicate {
		log.Info().Str("event_id", env.ID).Str("topic", c.topic).Str("correlation_id", env.CorrelationID).
			Msg("Повторная доставка, событие уже обработано — подтверждаем без побочных эффектов")
		return nil
	}

	if err := c.handle(ctx, env); err != nil {
		return err
	}

	log.Debug().Str("event_id", env.ID).Str("correlation_id", env.CorrelationID).Str("topic", c.topic).
		Msg("Событие обработано")
	return nil
}

// Close закрывает consumer.
func (c *EventConsumer) Close() error {
	return c.consumer.Close()
}

// nonRetryableError оборачивает ошибки парсинга — неретраибельные по своей
// природе (повторная доставка того же битого сообщения даст тот же результат).
type nonRetryableError struct {
	cause error
}

func (e *nonRetryableError) Error() string { return e.cause.Error() }
func (e *nonRetryableError) Unwrap() error { return e.cause }

// =============================================================================
// Consumers — агрегат из EventConsumer'ов, по одному на входящий топик
// =============================================================================

// Consumers запускает и останавливает все входящие топики Payment Service разом.
type Consumers struct {
	items []*EventConsumer
}

// NewConsumers собирает EventConsumer'ы для payments.initiated и
// payments.refunded. newConsumer строит kafka.Consumer для конкретного
// топика (обычно kafka.NewConsumer(cfg, topic, groupID)).
func NewConsumers(
	newConsumer func(topic string) (KafkaConsumer, error),
	guard *idempotency.Guard,
	handler *Handler,
) (*Consumers, error) {
	bindings := []struct {
		topic   string
		handler handlerFunc
	}{
		{events.TopicPaymentInitiated, handler.HandlePaymentInitiated},
		{events.TopicPaymentRefunded, handler.HandlePaymentRefundRequested},
	}

	items := make([]*EventConsumer, 0, len(bindings))
	for _, b := range bindings {
		kc, err := newConsumer(b.topic)
		if err != nil {
			return nil, fmt.Errorf("saga: не удалось создать consumer для топика %s: %w", b.topic, err)
		}
		items = append(items, newEventConsumer(kc, guard, b.topic, b.handler))
	}

	return &Consumers{items: items}, nil
}

// Run запускает все consumer'ы параллельно. Блокирует до отмены контекста
// и остановки последнего из них.
func (c *Consumers) Run(ctx context.Context) {
	log := logger.FromContext(ctx)

	var wg sync.WaitGroup
	for _, ec := range c.items {
		wg.Add(1)
		go func(ec *EventConsumer) {
			defer wg.Done()
			if err := ec.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("Consumer Payment Service завершился с ошибкой")
			}
		}(ec)
	}
	wg.Wait()
}

// Close закрывает все consumer'ы.
func (c *Consumers) Close() error {
	var firstErr error
	for _, ec := range c.items {
		if err := ec.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
