package events

// Item — позиция заказа в событиях (§6: {productId, quantity, unitPrice}).
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"` // минимальные единицы валюты
}

// ShippingAddress — адрес доставки, часть OrderCreatedPayload.
type ShippingAddress struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// OrderCreatedPayload — payload события orders.created.
type OrderCreatedPayload struct {
	OrderID         string          `json:"orderId"`
	CustomerID      string          `json:"customerId"`
	Items           []Item          `json:"items"`
	TotalAmount     int64           `json:"totalAmount"`
	Currency        string          `json:"currency"`
	PaymentMethod   string          `json:"paymentMethod"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
}

// OrderConfirmedPayload — payload события orders.confirmed.
type OrderConfirmedPayload struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
}

// OrderCancelledPayload — payload события orders.cancelled.
type OrderCancelledPayload struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Reason     string `json:"reason"`
}

// PaymentInitiatedPayload — payload события payments.initiated.
type PaymentInitiatedPayload struct {
	OrderID       string `json:"orderId"`
	CustomerID    string `json:"customerId"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	PaymentMethod string `json:"paymentMethod"`
}

// PaymentCompletedPayload — payload события payments.completed.
type PaymentCompletedPayload struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// PaymentFailedPayload — payload события payments.failed.
type PaymentFailedPayload struct {
	OrderID string `json:"orderId"`
	Reason  string `json:"reason"`
}

// PaymentRefundedPayload — payload события payments.refunded.
type PaymentRefundedPayload struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

// InventoryReserveRequestedPayload — payload события inventory.reserve-requested.
type InventoryReserveRequestedPayload struct {
	OrderID string `json:"orderId"`
	Items   []Item `json:"items"`
}

// InventoryReservedPayload — payload события inventory.reserved.
type InventoryReservedPayload struct {
	OrderID string `json:"orderId"`
	Items   []Item `json:"items"`
}

// InventoryReservationFailedPayload — payload события inventory.reservation-failed.
type InventoryReservationFailedPayload struct {
	OrderID                string   `json:"orderId"`
	Reason                 string   `json:"reason"`
	InsufficientProductIDs []string `json:"insufficientProductIds"`
}

// InventoryReleasedPayload — payload события inventory.released.
type InventoryReleasedPayload struct {
	OrderID string `json:"orderId"`
	Items   []Item `json:"items"`
}

// NotificationSendPayload — payload события notifications.send.
type NotificationSendPayload struct {
	CustomerID string            `json:"customerId"`
	Channel    string            `json:"channel"`
	TemplateID string            `json:"templateId"`
	Variables  map[string]string `json:"variables"`
}
