// Package sagastate реализует внешнее хранилище состояния саги — каждая
// незавершённая сага держит своё состояние в Redis под ключом
// saga:order:{correlationId}, а не в памяти оркестратора. Это делает
// оркестратор полностью stateless: горизонтальное масштабирование его
// инстансов тривиально, вся корректность опирается на single-partition
// consumption на шине.
package sagastate

import (
	"time"
)

// Status — состояние саги (sum type из девяти вариантов).
type Status string

const (
	StatusStarted            Status = "STARTED"
	StatusReservingInventory Status = "RESERVING_INVENTORY"
	StatusProcessingPayment  Status = "PROCESSING_PAYMENT"
	StatusConfirming         Status = "CONFIRMING"
	StatusCompleted          Status = "COMPLETED"
	StatusCompensating       Status = "COMPENSATING"
	StatusCompensated        Status = "COMPENSATED"
	StatusFailed             Status = "FAILED"
	StatusTimedOut           Status = "TIMED_OUT"
)

// IsTerminal возвращает true для финальных статусов саги.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCompensated, StatusFailed, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Step — шаг саги из закрытого множества выполняемых шагов.
type Step string

const (
	StepReserveInventory Step = "RESERVE_INVENTORY"
	StepProcessPayment   Step = "PROCESS_PAYMENT"
	StepConfirmOrder     Step = "CONFIRM_ORDER"
	StepSendNotification Step = "SEND_NOTIFICATION"
)

// OrderSnapshot — снимок данных заказа, достаточный для компенсации без
// повторного обращения к долговременному хранилищу.
type OrderSnapshot struct {
	Items       []Item `json:"items"`
	TotalAmount int64  `json:"totalAmount"`
	Currency    string `json:"currency"`
}

// Item — позиция заказа внутри снимка (повторяет форму events.Item —
// пакеты нарочно не зависят друг от друга, чтобы sagastate оставался
// независимым от формата шины).
type Item struct {
	ProductID string `json:"productId"`
	Quantity  int32  `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

// State — состояние саги, сериализуемое в Redis целиком как JSON.
type State struct {
	CorrelationID  string        `json:"correlationId"`
	OrderID        string        `json:"orderId"`
	CustomerID     string        `json:"customerId"`
	OrderSnapshot  OrderSnapshot `json:"orderSnapshot"`
	Status         Status        `json:"status"`
	CurrentStep    Step          `json:"currentStep,omitempty"`
	CompletedSteps []Step        `json:"completedSteps"`
	PaymentID      string        `json:"paymentId,omitempty"`
	FailureReason  string        `json:"failureReason,omitempty"`
	StartedAt      time.Time     `json:"startedAt"`
	LastUpdatedAt  time.Time     `json:"lastUpdatedAt"`
	CompletedAt    *time.Time    `json:"completedAt,omitempty"`
	FailedAt       *time.Time    `json:"failedAt,omitempty"`
	TimeoutAt      time.Time     `json:"timeoutAt"`
}

// HasCompletedStep возвращает true если шаг уже присутствует в completedSteps.
func (s *State) HasCompletedStep(step Step) bool {
	for _, s := range s.CompletedSteps {
		if s == step {
			return true
		}
	}
	return false
}

// AppendCompletedStep добавляет шаг в конец completedSteps (append-only,
// в порядке выполнения).
func (s *State) AppendCompletedStep(step Step) {
	s.CompletedSteps = append(s.CompletedSteps, step)
}

// IsTimedOut возвращает true если текущий момент превысил timeoutAt, а
// статус ещё не терминальный.
func (s *State) IsTimedOut(now time.Time) bool {
	return !s.Status.IsTerminal() && now.After(s.TimeoutAt)
}
