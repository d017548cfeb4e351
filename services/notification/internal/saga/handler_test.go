package saga

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/saga-platform/pkg/events"
	"example.com/saga-platform/services/notification/internal/service"
)

func newTestEnvelope(t *testing.T, eventType string, payload any) *events.Envelope {
	t.Helper()
	env, err := events.New(eventType, events.SourceOrderService, "corr-1", "cause-1", payload)
	require.NoError(t, err)
	return env
}

func TestHandler_HandleNotificationSend_Success(t *testing.T) {
	svc := new(MockNotificationService)
	h := NewHandler(svc)

	payload := events.NotificationSendPayload{
		CustomerID: "user-1",
		Channel:    "email",
		TemplateID: events.TemplateOrderConfirmed,
		Variables:  map[string]string{"orderId": "order-1"},
	}
	env := newTestEnvelope(t, events.TopicNotificationSend, payload)

	svc.On("Send", mock.Anything, service.SendNotificationRequest{
		CustomerID: payload.CustomerID,
		Channel:    payload.Channel,
		TemplateID: payload.TemplateID,
		Variables:  payload.Variables,
	}).Return(nil)

	err := h.HandleNotificationSend(context.Background(), env)
	require.NoError(t, err)

	svc.AssertExpectations(t)
}

func TestHandler_HandleNotificationSend_ServiceError(t *testing.T) {
	svc := new(MockNotificationService)
	h := NewHandler(svc)

	payload := events.NotificationSendPayload{CustomerID: "user-2", Channel: "sms", TemplateID: events.TemplateOrderCancelled}
	env := newTestEnvelope(t, events.TopicNotificationSend, payload)

	svc.On("Send", mock.Anything, mock.Anything).Return(assert.AnError)

	err := h.HandleNotificationSend(context.Background(), env)
	require.Error(t, err)
}

func TestHandler_HandleNotificationSend_DecodeError(t *testing.T) {
	svc := new(MockNotificationService)
	h := NewHandler(svc)

	env := newTestEnvelope(t, events.TopicNotificationSend, events.NotificationSendPayload{CustomerID: "user-3"})
	env.Data = []byte(`{"invalid`)

	err := h.HandleNotificationSend(context.Background(), env)
	require.Error(t, err)

	svc.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
