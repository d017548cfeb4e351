// Package events содержит канонический конверт события (CloudEvents-подобный)
// и типизированные payload для всех событий платформы саги.
// Единый источник правды для имён топиков и форматов payload — используется
// Order, Payment, Inventory и Notification сервисами.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Версия схемы событий по умолчанию.
const DefaultVersion = 1

// Константы CloudEvents, записываемые в каждый конверт на проводе.
const (
	SpecVersion     = "1.0"
	DataContentType = "application/json"
)

// Логические источники событий — используются для поля Source.
// Открытый вопрос из спецификации: источник события ДОЛЖЕН совпадать с
// сервисом, который его реально публикует, а не с сервисом, чьё действие
// вызвало публикацию.
const (
	SourceOrderService        = "/services/order-service"
	SourcePaymentService      = "/services/payment-service"
	SourceInventoryService    = "/services/inventory-service"
	SourceNotificationService = "/services/notification-service"
)

// Envelope — конверт события на проводе. Payload хранится как raw JSON до
// типизированной десериализации конкретным консьюмером.
type Envelope struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Source          string          `json:"source"`
	Time            time.Time       `json:"time"`
	CorrelationID   string          `json:"correlationId"`
	CausationID     string          `json:"causationId,omitempty"`
	Version         int             `json:"version"`
	SpecVersion     string          `json:"specversion"`
	DataContentType string          `json:"datacontenttype"`
	Data            json.RawMessage `json:"data"`
}

// New создаёт новый конверт с заполненными служебными полями.
// payload сериализуется в Data; causationID может быть пустым (начало саги).
func New(eventType, source, correlationID, causationID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &SerializationError{EventType: eventType, Cause: err}
	}

	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	return &Envelope{
		ID:              uuid.New().String(),
		Type:            eventType,
		Source:          source,
		Time:            time.Now().UTC(),
		CorrelationID:   correlationID,
		CausationID:     causationID,
		Version:         DefaultVersion,
		SpecVersion:     SpecVersion,
		DataContentType: DataContentType,
		Data:            data,
	}, nil
}

// Decode десериализует Data конверта в типизированную структуру payload.
func (e *Envelope) Decode(target any) error {
	return json.Unmarshal(e.Data, target)
}

// ToJSON сериализует конверт целиком.
func (e *Envelope) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON десериализует конверт из JSON.
func FromJSON(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// SerializationError — ошибка сериализации payload события.
// Согласно контракту outbox'а это ошибка программиста: она должна провалить
// охватывающую транзакцию, а не ретраиться.
type SerializationError struct {
	EventType string
	Cause     error
}

func (e *SerializationError) Error() string {
	return "cannot serialize event payload for type " + e.EventType + ": " + e.Cause.Error()
}

func (e *SerializationError) Unwrap() error {
	return e.Cause
}
