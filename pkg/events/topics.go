package events

// Имена топиков = имена типов событий (topic name = event type, §6).
const (
	TopicOrderCreated   = "orders.created"
	TopicOrderConfirmed = "orders.confirmed"
	TopicOrderCancelled = "orders.cancelled"

	TopicPaymentInitiated = "payments.initiated"
	TopicPaymentCompleted = "payments.completed"
	TopicPaymentFailed    = "payments.failed"
	TopicPaymentRefunded  = "payments.refunded"

	TopicInventoryReserveRequested  = "inventory.reserve-requested"
	TopicInventoryReserved          = "inventory.reserved"
	TopicInventoryReservationFailed = "inventory.reservation-failed"
	TopicInventoryReleased          = "inventory.released"

	TopicNotificationSend = "notifications.send"
)

// DLQTopic строит имя Dead Letter Queue топика для данного топика-источника.
func DLQTopic(topic string) string {
	return "dlq." + topic
}

// Ключи заголовков сообщений — заполняются при публикации, читаются при
// потреблении для извлечения event-id (используется Idempotency Guard) и
// распространения трассировки.
const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderEventVersion  = "event-version"
	HeaderCorrelationID = "correlation-id"
	HeaderCausationID   = "causation-id"
)

// Шаблоны уведомлений, используемые SEND_NOTIFICATION и компенсацией.
const (
	TemplateOrderConfirmed = "order-confirmed"
	TemplateOrderCancelled = "order-cancelled"
)
