// Package saga содержит моки для тестирования saga пакета.
// MockOrderRepository вынесен в testutil для DRY.
package saga

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/saga-platform/pkg/events"
	"example.com/saga-platform/pkg/kafka"
	outboxpkg "example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/services/order/internal/domain"
	"example.com/saga-platform/services/order/internal/testutil"
)

// MockOrderRepository — алиас на общий мок из testutil (DRY)
type MockOrderRepository = testutil.MockOrderRepository

// =============================================================================
// MockSagaRepository — мок SagaRepository
// =============================================================================

// MockSagaRepository — мок SagaRepository.
type MockSagaRepository struct {
	mock.Mock
}

func (m *MockSagaRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockSagaRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error) {
	args := m.Called(ctx, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Order), args.Error(1)
}

func (m *MockSagaRepository) CreateWithOutbox(ctx context.Context, order *domain.Order, outbox *outboxpkg.Outbox) error {
	args := m.Called(ctx, order, outbox)
	return args.Error(0)
}

func (m *MockSagaRepository) UpdateStatusWithOutbox(ctx context.Context, orderID string, status domain.OrderStatus, paymentID, failureReason *string, outbox *outboxpkg.Outbox) error {
	args := m.Called(ctx, orderID, status, paymentID, failureReason, outbox)
	return args.Error(0)
}

func (m *MockSagaRepository) GetStuckOrders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	args := m.Called(ctx, olderThan, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Order), args.Error(1)
}

// =============================================================================
// MockOutboxRepository — мок outboxpkg.OutboxRepository
// =============================================================================

// MockOutboxRepository — мок outboxpkg.OutboxRepository.
type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, record *outboxpkg.Outbox) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*outboxpkg.Outbox, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outboxpkg.Outbox), args.Error(1)
}

func (m *MockOutboxRepository) MarkProcessed(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id string, err error) error {
	args := m.Called(ctx, id, err)
	return args.Error(0)
}

func (m *MockOutboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// =============================================================================
// MockKafkaProducer — мок KafkaProducer
// =============================================================================

// MockKafkaProducer — мок KafkaProducer.
type MockKafkaProducer struct {
	mock.Mock
}

func (m *MockKafkaProducer) SendMessage(ctx context.Context, msg *kafka.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

// =============================================================================
// MockKafkaConsumer — мок KafkaConsumer
// =============================================================================

// MockKafkaConsumer — мок KafkaConsumer.
type MockKafkaConsumer struct {
	mock.Mock
	capturedHandler kafka.MessageHandler // Захватываем handler для вызова в тестах
}

func (m *MockKafkaConsumer) ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error {
	args := m.Called(ctx, handler, maxRetries)
	m.capturedHandler = handler // Сохраняем handler для тестирования
	return args.Error(0)
}

func (m *MockKafkaConsumer) Close() error {
	args := m.Called()
	return args.Error(0)
}

// =============================================================================
// MockOrchestrator — мок Orchestrator
// =============================================================================

// MockOrchestrator — мок Orchestrator.
type MockOrchestrator struct {
	mock.Mock
}

func (m *MockOrchestrator) CreateOrderWithSaga(ctx context.Context, order *domain.Order) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

func (m *MockOrchestrator) IsSagaActive(ctx context.Context, orderID string) (bool, error) {
	args := m.Called(ctx, orderID)
	return args.Bool(0), args.Error(1)
}

func (m *MockOrchestrator) HandleInventoryReserved(ctx context.Context, env *events.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockOrchestrator) HandleInventoryReservationFailed(ctx context.Context, env *events.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockOrchestrator) HandlePaymentCompleted(ctx context.Context, env *events.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockOrchestrator) HandlePaymentFailed(ctx context.Context, env *events.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockOrchestrator) HandleOrderConfirmed(ctx context.Context, env *events.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockOrchestrator) CheckAndCompensateTimeout(ctx context.Context, correlationID string) error {
	args := m.Called(ctx, correlationID)
	return args.Error(0)
}
