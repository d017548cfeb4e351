package template

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"example.com/saga-platform/pkg/events"
)

func TestRender_OrderConfirmed(t *testing.T) {
	content := Render(events.TemplateOrderConfirmed, map[string]string{
		"orderId":     "order-1",
		"totalAmount": "1500",
		"currency":    "RUB",
	})

	assert.Contains(t, content.Subject, "order-1")
	assert.Contains(t, content.Body, "1500")
	assert.Contains(t, content.Body, "RUB")
	assert.Contains(t, content.SMS, "order-1")
}

func TestRender_OrderCancelled(t *testing.T) {
	content := Render(events.TemplateOrderCancelled, map[string]string{
		"orderId": "order-2",
		"reason":  "недостаточно средств",
	})

	assert.Contains(t, content.Subject, "order-2")
	assert.Contains(t, content.Body, "недостаточно средств")
	assert.Contains(t, content.SMS, "order-2")
}

func TestRender_UnknownTemplate(t *testing.T) {
	content := Render("unknown-template", map[string]string{"foo": "bar"})

	assert.NotEmpty(t, content.Subject)
	assert.NotEmpty(t, content.Body)
}
