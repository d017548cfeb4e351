// Package saga содержит координатора саги оформления заказа: durable
// проекцию заказа (repository.go) и полиморфный обработчик события
// (currentState, event) -> (nextState, outboundEvents[]), реализующий
// RESERVE_INVENTORY -> PROCESS_PAYMENT -> CONFIRM_ORDER -> SEND_NOTIFICATION
// и компенсацию в обратном порядке выполненных шагов.
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/saga-platform/pkg/events"
	"example.com/saga-platform/pkg/logger"
	"example.com/saga-platform/pkg/metrics"
	outboxpkg "example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/pkg/sagastate"
	"example.com/saga-platform/services/order/internal/domain"
)

// DefaultSagaTimeout — время жизни саги с момента STARTED до принудительного
// TIMED_OUT, наблюдаемое лениво при валидации очередного события.
const DefaultSagaTimeout = 5 * time.Minute

var (
	// ErrOrphanEvent возвращается, когда событие ссылается на correlationId,
	// для которого нет записи в Saga State Store — дубликат после TTL или
	// событие для чужой саги.
	ErrOrphanEvent = errors.New("saga: событие не соответствует ни одной активной саге")

	// ErrTerminalSaga возвращается, когда событие приходит для саги, уже
	// достигшей терминального статуса.
	ErrTerminalSaga = errors.New("saga: сага уже в терминальном статусе")

	// ErrOutOfSequence возвращается, когда статус саги не совпадает с
	// ожидаемым для данного типа события.
	ErrOutOfSequence = errors.New("saga: событие получено не в ожидаемом статусе саги")
)

// Orchestrator — координатор саги оформления заказа. Полностью stateless:
// всё состояние живёт в Saga State Store (Redis) и в таблице orders —
// экземпляр Orchestrator можно поднимать в любом количестве реплик.
type Orchestrator interface {
	// CreateOrderWithSaga атомарно создаёт заказ, стартует сагу в Saga State
	// Store и публикует inventory.reserve-requested через outbox.
	CreateOrderWithSaga(ctx context.Context, order *domain.Order) error

	// IsSagaActive сообщает, идёт ли ещё по заказу незавершённая сага —
	// используется REST-слоем, чтобы запретить отмену заказа "из-под" саги.
	IsSagaActive(ctx context.Context, orderID string) (bool, error)

	// HandleInventoryReserved обрабатывает inventory.reserved.
	HandleInventoryReserved(ctx context.Context, env *events.Envelope) error

	// HandleInventoryReservationFailed обрабатывает inventory.reservation-failed.
	HandleInventoryReservationFailed(ctx context.Context, env *events.Envelope) error

	// HandlePaymentCompleted обрабатывает payments.completed.
	HandlePaymentCompleted(ctx context.Context, env *events.Envelope) error

	// HandlePaymentFailed обрабатывает payments.failed.
	HandlePaymentFailed(ctx context.Context, env *events.Envelope) error

	// HandleOrderConfirmed обрабатывает orders.confirmed.
	HandleOrderConfirmed(ctx context.Context, env *events.Envelope) error

	// CheckAndCompensateTimeout выполняет принудительную проверку таймаута
	// по correlationId — используется активным sweeper'ом (timeout_worker.go)
	// в дополнение к ленивой проверке внутри каждого обработчика событий.
	CheckAndCompensateTimeout(ctx context.Context, correlationID string) error
}

// orchestrator — реализация Orchestrator.
type orchestrator struct {
	repo    SagaRepository
	outbox  outboxpkg.OutboxRepository
	state   *sagastate.Store
	timeout time.Duration
}

// NewOrchestrator создаёт новый координатор саги.
func NewOrchestrator(repo SagaRepository, outbox outboxpkg.OutboxRepository, state *sagastate.Store) Orchestrator {
	return &orchestrator{
		repo:    repo,
		outbox:  outbox,
		state:   state,
		timeout: DefaultSagaTimeout,
	}
}

// =============================================================================
// Запуск саги
// =============================================================================

// CreateOrderWithSaga запускает сагу: заказ и первое исходящее событие
// (inventory.reserve-requested) пишутся атомарно в одной транзакции вместе
// с outbox-записью, после чего состояние саги сохраняется в Redis со
// статусом RESERVING_INVENTORY. Если шаг с Redis проваливается после
// коммита SQL-транзакции, заказ остаётся в PENDING без состояния саги —
// такой orphan-заказ подхватит активный timeout sweeper, сканирующий
// таблицу orders (GetStuckOrders), и переведёт его в FAILED.
func (o *orchestrator) CreateOrderWithSaga(ctx context.Context, order *domain.Order) error {
	log := logger.FromContext(ctx)

	if err := order.Validate(); err != nil {
		return err
	}
	order.CalculateTotal()

	correlationID := uuid.New().String()
	order.CorrelationID = correlationID
	order.Status = domain.OrderStatusPending

	items := make([]events.Item, len(order.Items))
	for i, it := range order.Items {
		items[i] = events.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.Amount,
		}
	}

	payload := events.InventoryReserveRequestedPayload{
		OrderID: order.ID,
		Items:   items,
	}
	env, err := events.New(events.TopicInventoryReserveRequested, events.SourceOrderService, correlationID, "", payload)
	if err != nil {
		return fmt.Errorf("saga: не удалось собрать inventory.reserve-requested: %w", err)
	}

	record, err := outboxRecordFromEnvelope(order.ID, env)
	if err != nil {
		return err
	}

	if err := o.repo.CreateWithOutbox(ctx, order, record); err != nil {
		return err
	}

	now := time.Now()
	st := &sagastate.State{
		CorrelationID: correlationID,
		OrderID:       order.ID,
		CustomerID:    order.UserID,
		OrderSnapshot: sagastate.OrderSnapshot{
			Items:       toStateItems(items),
			TotalAmount: order.TotalAmount.Amount,
			Currency:    order.TotalAmount.Currency,
		},
		Status:         sagastate.StatusReservingInventory,
		CurrentStep:    sagastate.StepReserveInventory,
		CompletedSteps: []sagastate.Step{},
		StartedAt:      now,
		LastUpdatedAt:  now,
		TimeoutAt:      now.Add(o.timeout),
	}
	if err := o.state.Save(ctx, st); err != nil {
		log.Error().Err(err).Str("correlation_id", correlationID).Str("order_id", order.ID).
			Msg("Заказ создан, но состояние саги не сохранено — заказ останется в PENDING, пока sweeper не переведёт его в FAILED")
		return err
	}

	metrics.SagaStarted.WithLabelValues().Inc()
	log.Info().Str("correlation_id", correlationID).Str("order_id", order.ID).Msg("Сага оформления заказа запущена")
	return nil
}

// IsSagaActive возвращает true, если заказ связан с сагой, ещё не достигшей
// терминального статуса.
func (o *orchestrator) IsSagaActive(ctx context.Context, orderID string) (bool, error) {
	order, err := o.repo.GetByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.CorrelationID == "" {
		return false, nil
	}

	st, ok, err := o.state.Load(ctx, order.CorrelationID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return !st.Status.IsTerminal(), nil
}

// =============================================================================
// Конвейер валидации входящих событий (§4.4)
// =============================================================================

// loadAndValidate загружает состояние саги по correlationId и применяет
// 4-этапную проверку:
//  1. отсутствие записи -> orphan event, discard;
//  2. терминальный статус -> discard;
//  3. статус не совпадает с ожидаемым -> out-of-sequence, discard, без мутаций;
//  4. now > timeoutAt -> принудительный TIMED_OUT, persist, компенсация,
//     триггерное событие отбрасывается.
//
// Возвращает (nil, nil), когда сага обработала таймаут сама — вызывающему
// обработчику дальше делать нечего, триггерное событие уже учтено.
func (o *orchestrator) loadAndValidate(ctx context.Context, correlationID string, expected sagastate.Status) (*sagastate.State, error) {
	log := logger.FromContext(ctx)

	st, ok, err := o.state.Load(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("correlation_id", correlationID).Msg("Orphan-событие: сага не найдена, отбрасываем")
		return nil, ErrOrphanEvent
	}

	if st.Status.IsTerminal() {
		log.Warn().Str("correlation_id", correlationID).Str("status", string(st.Status)).
			Msg("Событие для саги в терминальном статусе, отбрасываем")
		return nil, ErrTerminalSaga
	}

	if st.Status != expected {
		log.Warn().
			Str("correlation_id", correlationID).
			Str("status", string(st.Status)).
			Str("expected", string(expected)).
			Msg("Событие получено не в ожидаемом статусе саги (out of sequence), отбрасываем без изменений")
		return nil, ErrOutOfSequence
	}

	if st.IsTimedOut(time.Now()) {
		return nil, o.forceTimeout(ctx, st)
	}

	return st, nil
}

// forceTimeout переводит сагу в TIMED_OUT и запускает компенсацию с
// причиной "Saga timed out".
func (o *orchestrator) forceTimeout(ctx context.Context, st *sagastate.State) error {
	st.Status = sagastate.StatusTimedOut
	st.FailureReason = "Saga timed out"
	now := time.Now()
	st.FailedAt = &now
	st.LastUpdatedAt = now
	if err := o.state.Save(ctx, st); err != nil {
		return err
	}

	return o.startCompensation(ctx, st, "Saga timed out")
}

// CheckAndCompensateTimeout — точка входа для активного sweeper'а: выполняет
// ту же проверку таймаута, что и loadAndValidate, но без привязки к
// конкретному входящему событию.
func (o *orchestrator) CheckAndCompensateTimeout(ctx context.Context, correlationID string) error {
	st, ok, err := o.state.Load(ctx, correlationID)
	if err != nil {
		return err
	}
	if !ok || st.Status.IsTerminal() {
		return nil
	}
	if !st.IsTimedOut(time.Now()) {
		return nil
	}
	return o.forceTimeout(ctx, st)
}

// loadAnyNonTerminal — вариант loadAndValidate для событий об ошибке
// участника: применимы в ЛЮБОМ нетерминальном статусе саги (в отличие от
// успешных ответов, ожидающих конкретный статус), но по-прежнему проходят
// через orphan/terminal/timeout проверки.
func (o *orchestrator) loadAnyNonTerminal(ctx context.Context, correlationID string) (*sagastate.State, error) {
	log := logger.FromContext(ctx)

	st, ok, err := o.state.Load(ctx, correlationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Warn().Str("correlation_id", correlationID).Msg("Orphan-событие: сага не найдена, отбрасываем")
		return nil, ErrOrphanEvent
	}
	if st.Status.IsTerminal() {
		log.Warn().Str("correlation_id", correlationID).Str("status", string(st.Status)).
			Msg("Событие для саги в терминальном статусе, отбрасываем")
		return nil, ErrTerminalSaga
	}

	if st.IsTimedOut(time.Now()) {
		return nil, o.forceTimeout(ctx, st)
	}

	return st, nil
}

// =============================================================================
// Обработчики входящих событий — таблица переходов §4.4
// =============================================================================

// HandleInventoryReserved: RESERVING_INVENTORY -> добавляем RESERVE_INVENTORY
// в completedSteps, публикуем payments.initiated, переводим в
// PROCESSING_PAYMENT.
func (o *orchestrator) HandleInventoryReserved(ctx context.Context, env *events.Envelope) error {
	var payload events.InventoryReservedPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	st, err := o.loadAndValidate(ctx, env.CorrelationID, sagastate.StatusReservingInventory)
	if err != nil || st == nil {
		return err
	}

	st.AppendCompletedStep(sagastate.StepReserveInventory)
	st.Status = sagastate.StatusProcessingPayment
	st.CurrentStep = sagastate.StepProcessPayment
	st.LastUpdatedAt = time.Now()

	outPayload := events.PaymentInitiatedPayload{
		OrderID:    st.OrderID,
		CustomerID: st.CustomerID,
		Amount:     st.OrderSnapshot.TotalAmount,
		Currency:   st.OrderSnapshot.Currency,
	}
	return o.emitAndSave(ctx, st, env.ID, events.TopicPaymentInitiated, outPayload)
}

// HandlePaymentCompleted: PROCESSING_PAYMENT -> сохраняем paymentId,
// добавляем PROCESS_PAYMENT в completedSteps, подтверждаем заказ, публикуем
// orders.confirmed, переводим в CONFIRMING.
func (o *orchestrator) HandlePaymentCompleted(ctx context.Context, env *events.Envelope) error {
	var payload events.PaymentCompletedPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	st, err := o.loadAndValidate(ctx, env.CorrelationID, sagastate.StatusProcessingPayment)
	if err != nil || st == nil {
		return err
	}

	st.PaymentID = payload.PaymentID
	st.AppendCompletedStep(sagastate.StepProcessPayment)
	st.Status = sagastate.StatusConfirming
	st.CurrentStep = sagastate.StepConfirmOrder
	st.LastUpdatedAt = time.Now()

	paymentID := payload.PaymentID
	if err := o.repo.UpdateStatusWithOutbox(ctx, st.OrderID, domain.OrderStatusConfirmed, &paymentID, nil, nil); err != nil {
		return err
	}

	outPayload := events.OrderConfirmedPayload{
		OrderID:    st.OrderID,
		CustomerID: st.CustomerID,
	}
	return o.emitAndSave(ctx, st, env.ID, events.TopicOrderConfirmed, outPayload)
}

// HandleOrderConfirmed: CONFIRMING -> добавляем CONFIRM_ORDER в
// completedSteps, публикуем notifications.send (order-confirmed) и сразу
// завершаем сагу — SEND_NOTIFICATION чисто реактивен, сага не ждёт его
// обработки (§4.4: у этого шага нет промежуточного статуса ожидания).
func (o *orchestrator) HandleOrderConfirmed(ctx context.Context, env *events.Envelope) error {
	st, err := o.loadAndValidate(ctx, env.CorrelationID, sagastate.StatusConfirming)
	if err != nil || st == nil {
		return err
	}

	st.AppendCompletedStep(sagastate.StepConfirmOrder)
	st.CurrentStep = sagastate.StepSendNotification

	notifyPayload := events.NotificationSendPayload{
		CustomerID: st.CustomerID,
		Channel:    "email",
		TemplateID: events.TemplateOrderConfirmed,
		Variables:  map[string]string{"orderId": st.OrderID},
	}
	if err := o.publishEvent(ctx, st, env.ID, events.TopicNotificationSend, notifyPayload); err != nil {
		return err
	}

	st.AppendCompletedStep(sagastate.StepSendNotification)
	st.Status = sagastate.StatusCompleted
	st.CurrentStep = ""
	now := time.Now()
	st.CompletedAt = &now
	st.LastUpdatedAt = now

	if err := o.state.Save(ctx, st); err != nil {
		return err
	}

	metrics.SagaCompleted.WithLabelValues().Inc()
	metrics.SagaDuration.WithLabelValues("completed").Observe(now.Sub(st.StartedAt).Seconds())
	return o.state.ScheduleDelete(ctx, st.CorrelationID, sagastate.DefaultGrace)
}

// HandleInventoryReservationFailed запускает компенсацию без выполненных
// шагов — до этого момента резервирование ещё не прошло.
func (o *orchestrator) HandleInventoryReservationFailed(ctx context.Context, env *events.Envelope) error {
	var payload events.InventoryReservationFailedPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	st, err := o.loadAnyNonTerminal(ctx, env.CorrelationID)
	if err != nil || st == nil {
		return err
	}

	return o.startCompensation(ctx, st, "Inventory reservation failed: "+payload.Reason)
}

// HandlePaymentFailed запускает компенсацию с уже выполненным шагом
// RESERVE_INVENTORY — компенсация освободит зарезервированный инвентарь.
func (o *orchestrator) HandlePaymentFailed(ctx context.Context, env *events.Envelope) error {
	var payload events.PaymentFailedPayload
	if err := env.Decode(&payload); err != nil {
		return err
	}

	st, err := o.loadAnyNonTerminal(ctx, env.CorrelationID)
	if err != nil || st == nil {
		return err
	}

	return o.startCompensation(ctx, st, "Payment failed: "+payload.Reason)
}

// =============================================================================
// Компенсация
// =============================================================================

// startCompensation переводит сагу в COMPENSATING и делегирует выпуск
// компенсирующих событий в compensate.
func (o *orchestrator) startCompensation(ctx context.Context, st *sagastate.State, reason string) error {
	st.Status = sagastate.StatusCompensating
	st.FailureReason = reason
	now := time.Now()
	st.FailedAt = &now
	st.LastUpdatedAt = now
	if err := o.state.Save(ctx, st); err != nil {
		return err
	}

	metrics.SagaCompensating.WithLabelValues(reason).Inc()
	return o.compensate(ctx, st, reason)
}

// compensate обходит completedSteps в обратном порядке и публикует
// компенсирующее событие для каждого шага, умеющего откатываться
// (RESERVE_INVENTORY -> inventory.released, PROCESS_PAYMENT ->
// payments.refunded; CONFIRM_ORDER и SEND_NOTIFICATION — no-op). После
// обхода всегда публикует orders.cancelled и notifications.send
// (order-cancelled), переводит сагу в COMPENSATED и планирует удаление
// состояния через 5 минут.
func (o *orchestrator) compensate(ctx context.Context, st *sagastate.State, reason string) error {
	log := logger.FromContext(ctx)

	items := fromStateItems(st.OrderSnapshot.Items)

	for i := len(st.CompletedSteps) - 1; i >= 0; i-- {
		switch st.CompletedSteps[i] {
		case sagastate.StepReserveInventory:
			payload := events.InventoryReleasedPayload{OrderID: st.OrderID, Items: items}
			if err := o.publishEvent(ctx, st, "", events.TopicInventoryReleased, payload); err != nil {
				return err
			}
		case sagastate.StepProcessPayment:
			payload := events.PaymentRefundedPayload{
				OrderID:   st.OrderID,
				PaymentID: st.PaymentID,
				Amount:    st.OrderSnapshot.TotalAmount,
				Currency:  st.OrderSnapshot.Currency,
			}
			if err := o.publishEvent(ctx, st, "", events.TopicPaymentRefunded, payload); err != nil {
				return err
			}
		case sagastate.StepConfirmOrder, sagastate.StepSendNotification:
			// Подтверждение заказа и уведомление сами по себе не требуют отката.
		}
	}

	cancelledPayload := events.OrderCancelledPayload{
		OrderID:    st.OrderID,
		CustomerID: st.CustomerID,
		Reason:     reason,
	}
	if err := o.publishEvent(ctx, st, "", events.TopicOrderCancelled, cancelledPayload); err != nil {
		return err
	}

	failureReason := reason
	if err := o.repo.UpdateStatusWithOutbox(ctx, st.OrderID, domain.OrderStatusCancelled, nil, &failureReason, nil); err != nil {
		log.Error().Err(err).Str("order_id", st.OrderID).Msg("Не удалось обновить статус заказа при компенсации")
		return err
	}

	notifyPayload := events.NotificationSendPayload{
		CustomerID: st.CustomerID,
		Channel:    "email",
		TemplateID: events.TemplateOrderCancelled,
		Variables: map[string]string{
			"orderId": st.OrderID,
			"reason":  reason,
		},
	}
	if err := o.publishEvent(ctx, st, "", events.TopicNotificationSend, notifyPayload); err != nil {
		return err
	}

	st.Status = sagastate.StatusCompensated
	now := time.Now()
	st.CompletedAt = &now
	st.LastUpdatedAt = now
	if err := o.state.Save(ctx, st); err != nil {
		return err
	}

	metrics.SagaCompensated.WithLabelValues().Inc()
	metrics.SagaDuration.WithLabelValues("compensated").Observe(now.Sub(st.StartedAt).Seconds())

	log.Info().Str("correlation_id", st.CorrelationID).Str("order_id", st.OrderID).Str("reason", reason).
		Msg("Компенсация саги завершена")

	return o.state.ScheduleDelete(ctx, st.CorrelationID, sagastate.DefaultGrace)
}

// =============================================================================
// Вспомогательные функции
// =============================================================================

// emitAndSave публикует одно исходящее событие через outbox и сохраняет
// обновлённое состояние саги — используется обработчиками успешных
// ответов, которым достаточно одного исходящего события на переход.
func (o *orchestrator) emitAndSave(ctx context.Context, st *sagastate.State, causationID, topic string, payload any) error {
	if err := o.publishEvent(ctx, st, causationID, topic, payload); err != nil {
		return err
	}
	return o.state.Save(ctx, st)
}

// publishEvent собирает конверт (source всегда order-service — все эти
// события публикует координатор саги заказа) и пишет его в outbox.
func (o *orchestrator) publishEvent(ctx context.Context, st *sagastate.State, causationID, topic string, payload any) error {
	env, err := events.New(topic, events.SourceOrderService, st.CorrelationID, causationID, payload)
	if err != nil {
		return fmt.Errorf("saga: не удалось собрать событие %s: %w", topic, err)
	}

	record, err := outboxRecordFromEnvelope(st.OrderID, env)
	if err != nil {
		return err
	}
	return o.outbox.Create(ctx, record)
}

func toStateItems(items []events.Item) []sagastate.Item {
	out := make([]sagastate.Item, len(items))
	for i, it := range items {
		out[i] = sagastate.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

func fromStateItems(items []sagastate.Item) []events.Item {
	out := make([]events.Item, len(items))
	for i, it := range items {
		out[i] = events.Item{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
	}
	return out
}

// outboxRecordFromEnvelope строит запись outbox из готового конверта.
// Topic совпадает с типом события (§6: topic name = event type), ключ
// сообщения — correlationId (партиционирующий признак саги: все события
// одной саги попадают в одну партицию, гарантируя единственного консьюмера
// и сохраняя порядок внутри саги).
func outboxRecordFromEnvelope(orderID string, env *events.Envelope) (*outboxpkg.Outbox, error) {
	payload, err := env.ToJSON()
	if err != nil {
		return nil, fmt.Errorf("saga: не удалось сериализовать конверт %s: %w", env.Type, err)
	}

	headers := map[string]string{
		events.HeaderEventID:       env.ID,
		events.HeaderEventType:     env.Type,
		events.HeaderCorrelationID: env.CorrelationID,
	}
	if env.CausationID != "" {
		headers[events.HeaderCausationID] = env.CausationID
	}

	return &outboxpkg.Outbox{
		ID:            uuid.New().String(),
		AggregateType: "order",
		AggregateID:   orderID,
		EventType:     env.Type,
		Topic:         env.Type,
		MessageKey:    env.CorrelationID,
		Payload:       payload,
		Headers:       headers,
	}, nil
}
