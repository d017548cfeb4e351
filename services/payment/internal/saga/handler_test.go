package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/saga-platform/pkg/events"
	outboxpkg "example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/services/payment/internal/service"
)

func newTestEnvelope(t *testing.T, eventType string, payload any) *events.Envelope {
	t.Helper()
	env, err := events.New(eventType, events.SourceOrderService, "corr-1", "cause-1", payload)
	require.NoError(t, err)
	return env
}

func TestHandler_HandlePaymentInitiated_Success(t *testing.T) {
	svc := new(MockPaymentService)
	outbox := new(MockOutboxRepository)
	h := NewHandler(svc, outbox)

	payload := events.PaymentInitiatedPayload{
		OrderID:       "order-1",
		CustomerID:    "user-1",
		Amount:        1000,
		Currency:      "RUB",
		PaymentMethod: "card",
	}
	env := newTestEnvelope(t, events.TopicPaymentInitiated, payload)

	svc.On("ProcessPayment", mock.Anything, service.ProcessPaymentRequest{
		CorrelationID: env.CorrelationID,
		OrderID:       payload.OrderID,
		UserID:        payload.CustomerID,
		Amount:        payload.Amount,
		Currency:      payload.Currency,
		PaymentMethod: payload.PaymentMethod,
	}).Return(&service.ProcessPaymentResult{PaymentID: "pay-1", Success: true}, nil)

	outbox.On("Create", mock.Anything, mock.MatchedBy(func(o *outboxpkg.Outbox) bool {
		return o.EventType == events.TopicPaymentCompleted && o.AggregateID == payload.OrderID
	})).Return(nil)

	err := h.HandlePaymentInitiated(context.Background(), env)
	require.NoError(t, err)

	svc.AssertExpectations(t)
	outbox.AssertExpectations(t)
}

func TestHandler_HandlePaymentInitiated_Failure(t *testing.T) {
	svc := new(MockPaymentService)
	outbox := new(MockOutboxRepository)
	h := NewHandler(svc, outbox)

	payload := events.PaymentInitiatedPayload{
		OrderID:    "order-2",
		CustomerID: "user-2",
		Amount:     666,
		Currency:   "RUB",
	}
	env := newTestEnvelope(t, events.TopicPaymentInitiated, payload)

	svc.On("ProcessPayment", mock.Anything, mock.Anything).
		Return(&service.ProcessPaymentResult{Success: false, FailureReason: "недостаточно средств"}, nil)

	outbox.On("Create", mock.Anything, mock.MatchedBy(func(o *outboxpkg.Outbox) bool {
		return o.EventType == events.TopicPaymentFailed && o.AggregateID == payload.OrderID
	})).Return(nil)

	err := h.HandlePaymentInitiated(context.Background(), env)
	require.NoError(t, err)

	svc.AssertExpectations(t)
	outbox.AssertExpectations(t)
}

func TestHandler_HandlePaymentInitiated_ServiceError(t *testing.T) {
	svc := new(MockPaymentService)
	outbox := new(MockOutboxRepository)
	h := NewHandler(svc, outbox)

	payload := events.PaymentInitiatedPayload{OrderID: "order-3", CustomerID: "user-3", Amount: 100, Currency: "RUB"}
	env := newTestEnvelope(t, events.TopicPaymentInitiated, payload)

	svc.On("ProcessPayment", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	err := h.HandlePaymentInitiated(context.Background(), env)
	require.Error(t, err)

	outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandler_HandlePaymentRefundRequested_Success(t *testing.T) {
	svc := new(MockPaymentService)
	outbox := new(MockOutboxRepository)
	h := NewHandler(svc, outbox)

	payload := events.PaymentRefundedPayload{OrderID: "order-4", PaymentID: "pay-4", Amount: 500, Currency: "RUB"}
	env := newTestEnvelope(t, events.TopicPaymentRefunded, payload)

	svc.On("RefundPayment", mock.Anything, service.RefundPaymentRequest{
		PaymentID: payload.PaymentID,
		Reason:    "компенсация саги: " + env.CorrelationID,
	}).Return(nil)

	err := h.HandlePaymentRefundRequested(context.Background(), env)
	require.NoError(t, err)

	svc.AssertExpectations(t)
	outbox.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestHandler_HandlePaymentRefundRequested_Error(t *testing.T) {
	svc := new(MockPaymentService)
	outbox := new(MockOutboxRepository)
	h := NewHandler(svc, outbox)

	payload := events.PaymentRefundedPayload{OrderID: "order-5", PaymentID: "pay-5", Amount: 500, Currency: "RUB"}
	env := newTestEnvelope(t, events.TopicPaymentRefunded, payload)

	svc.On("RefundPayment", mock.Anything, mock.Anything).Return(assert.AnError)

	err := h.HandlePaymentRefundRequested(context.Background(), env)
	require.Error(t, err)
}

func TestHandler_HandlePaymentInitiated_DecodeError(t *testing.T) {
	svc := new(MockPaymentService)
	outbox := new(MockOutboxRepository)
	h := NewHandler(svc, outbox)

	env := newTestEnvelope(t, events.TopicPaymentInitiated, events.PaymentInitiatedPayload{OrderID: "order-6"})
	env.Data = []byte(`{"invalid`)

	err := h.HandlePaymentInitiated(context.Background(), env)
	require.Error(t, err)

	svc.AssertNotCalled(t, "ProcessPayment", mock.Anything, mock.Anything)
}
