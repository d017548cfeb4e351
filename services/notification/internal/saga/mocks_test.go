package saga

import (
	"context"

	"github.com/stretchr/testify/mock"

	"example.com/saga-platform/pkg/kafka"
	"example.com/saga-platform/services/notification/internal/service"
)

// =============================================================================
// MockNotificationService — мок service.NotificationService
// =============================================================================

type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Send(ctx context.Context, req service.SendNotificationRequest) error {
	args := m.Called(ctx, req)
	return args.Error(0)
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
