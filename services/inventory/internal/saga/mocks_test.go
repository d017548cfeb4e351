package saga

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"example.com/saga-platform/pkg/kafka"
	outboxpkg "example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/services/inventory/internal/service"
)

// =============================================================================
// MockInventoryService — мок service.InventoryService
// =============================================================================

type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) ReserveInventory(ctx context.Context, req service.ReserveInventoryRequest) (*service.ReserveInventoryResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ReserveInventoryResult), args.Error(1)
}

func (m *MockInventoryService) ReleaseInventory(ctx context.Context, req service.ReleaseInventoryRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
}

// =============================================================================
// MockOutboxRepository — мок outboxpkg.OutboxRepository
// =============================================================================

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
// MockKafkaConsumer — мок KafkaConsumer
// =============================================================================

type MockKafkaConsumer struct {
	mock.Mock
	capturedHandler kafka.MessageHandler
}

func (m *MockKafkaConsumer) ConsumeWithRetry(ctx context.Context, handler kafka.MessageHandler, maxRetries int) error {
	args := m.Called(ctx, handler, maxRetries)
	m.capturedHandler = handler
	return args.Error(0)
}

func (m *MockKafkaConsumer) Close() error {
	args := m.Called()
	return args.Error(0)
}
