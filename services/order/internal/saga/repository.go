package saga

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	outboxpkg "example.com/saga-platform/pkg/outbox"
	"example.com/saga-platform/services/order/internal/domain"
)

// =============================================================================
// Ошибки репозитория
// =============================================================================

var (
	// ErrSagaConcurrentUpdate возвращается когда запись заказа была изменена
	// параллельно (reply consumer и timeout worker могут пересечься).
	ErrSagaConcurrentUpdate = errors.New("заказ обновлён параллельно, повторите операцию")
)

// =============================================================================
// GORM модель заказа
// =============================================================================

// OrderModel — GORM модель для таблицы orders. Хранит только поля, которые
// нужны координатору саги: сама by-item информация принадлежит REST-слою
// Order Service и здесь не дублируется.
type OrderModel struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	UserID         string    `gorm:"column:user_id;type:varchar(36);not null;index"`
	CorrelationID  string    `gorm:"column:correlation_id;type:varchar(36);not null;uniqueIndex"`
	Status         string    `gorm:"column:status;type:varchar(20);not null;index"`
	TotalAmount    int64     `gorm:"column:total_amount;not null"`
	Currency       string    `gorm:"column:currency;type:varchar(3);not null"`
	PaymentID      *string   `gorm:"column:payment_id;type:varchar(36)"`
	FailureReason  *string   `gorm:"column:failure_reason;type:text"`
	IdempotencyKey *string   `gorm:"column:idempotency_key;type:varchar(64);uniqueIndex"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderModel) TableName() string {
	return "orders"
}

func (m *OrderModel) toDomain() *domain.Order {
	o := &domain.Order{
		ID:            m.ID,
		UserID:        m.UserID,
		CorrelationID: m.CorrelationID,
		Status:        domain.OrderStatus(m.Status),
		TotalAmount:   domain.Money{Currency: m.Currency, Amount: m.TotalAmount},
		PaymentID:     m.PaymentID,
		FailureReason: m.FailureReason,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
	if m.IdempotencyKey != nil {
		o.IdempotencyKey = *m.IdempotencyKey
	}
	return o
}

func orderModelFromDomain(o *domain.Order) *OrderModel {
	m := &OrderModel{
		ID:             o.ID,
		UserID:         o.UserID,
		CorrelationID:  o.CorrelationID,
		Status:         string(o.Status),
		TotalAmount:    o.TotalAmount.Amount,
		Currency:       o.TotalAmount.Currency,
		PaymentID:      o.PaymentID,
		FailureReason:  o.FailureReason,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
	if o.IdempotencyKey != "" {
		m.IdempotencyKey = &o.IdempotencyKey
	}
	return m
}

// =============================================================================
// SagaRepository — управляет заказом и его outbox-записями от лица оркестратора
// =============================================================================

// SagaRepository определяет методы работы с заказом со стороны координатора
// саги. Само состояние саги (статус STARTED/RESERVING_INVENTORY/…) живёт в
// Redis через pkg/sagastate — этот репозиторий отвечает только за durable
// проекцию (таблица orders) и атомарную запись outbox-событий вместе с ней.
type SagaRepository interface {
	// GetByID возвращает заказ по ID.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// GetByCorrelationID возвращает заказ по ID саги.
	GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error)

	// CreateWithOutbox атомарно создаёт заказ и запись outbox с первым
	// событием саги (inventory.reserve-requested) — решает проблему dual
	// write в самом начале саги.
	CreateWithOutbox(ctx context.Context, order *domain.Order, outbox *outboxpkg.Outbox) error

	// UpdateStatusWithOutbox атомарно переводит заказ в новый статус и,
	// если outbox не nil, публикует сопутствующее событие в той же
	// транзакции (orders.confirmed / orders.cancelled).
	UpdateStatusWithOutbox(ctx context.Context, orderID string, status domain.OrderStatus, paymentID, failureReason *string, outbox *outboxpkg.Outbox) error

	// GetStuckOrders возвращает заказы, зависшие в PENDING дольше threshold —
	// источник для активного sweeper'а таймаутов саги (используется в
	// дополнение к ленивой проверке при получении события).
	GetStuckOrders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error)
}

// sagaRepository — GORM реализация SagaRepository.
type sagaRepository struct {
	db *gorm.DB
}

// NewSagaRepository создаёт новый репозиторий заказов для координатора саги.
func NewSagaRepository(db *gorm.DB) SagaRepository {
	return &sagaRepository{db: db}
}

func (r *sagaRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

func (r *sagaRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*domain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Where("correlation_id = ?", correlationID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// CreateWithOutbox — атомарное создание заказа, его позиций и записи outbox.
// Позиции пишутся напрямую в order_items через raw map (а не через GORM
// ассоциацию) — saga.OrderModel сознательно не содержит Items, чтобы не
// дублировать полную модель заказа из repository.OrderModel.
func (r *sagaRepository) CreateWithOutbox(ctx context.Context, order *domain.Order, outbox *outboxpkg.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderModel := orderModelFromDomain(order)
		if err := tx.Create(orderModel).Error; err != nil {
			return err
		}
		order.CreatedAt = orderModel.CreatedAt
		order.UpdatedAt = orderModel.UpdatedAt

		for i := range order.Items {
			item := &order.Items[i]
			itemData := map[string]any{
				"id":           item.ID,
				"order_id":     order.ID,
				"product_id":   item.ProductID,
				"product_name": item.ProductName,
				"quantity":     item.Quantity,
				"unit_price":   item.UnitPrice.Amount,
				"currency":     item.UnitPrice.Currency,
				"created_at":   order.CreatedAt,
				"updated_at":   order.UpdatedAt,
			}
			if err := tx.Table("order_items").Create(itemData).Error; err != nil {
				return err
			}
		}

		outboxModel := outboxpkg.ModelFromDomain(outbox)
		if err := tx.Create(outboxModel).Error; err != nil {
			return err
		}
		outbox.CreatedAt = outboxModel.CreatedAt

		return nil
	})
}

// UpdateStatusWithOutbox — атомарное обновление статуса заказа и, опционально,
// публикация события. Optimistic Locking не нужен на уровне SQL: единственный
// писатель в заказ — оркестратор, а конкурентность между reply consumer'ом и
// timeout worker'ом разрешается на уровне Saga State Store (см. orchestrator.go).
func (r *sagaRepository) UpdateStatusWithOutbox(ctx context.Context, orderID string, status domain.OrderStatus, paymentID, failureReason *string, outbox *outboxpkg.Outbox) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		result := tx.Model(&OrderModel{}).
			Where("id = ?", orderID).
			Updates(map[string]any{
				"status":         string(status),
				"payment_id":     paymentID,
				"failure_reason": failureReason,
				"updated_at":     now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return domain.ErrOrderNotFound
		}

		if outbox != nil {
			outboxModel := outboxpkg.ModelFromDomain(outbox)
			if err := tx.Create(outboxModel).Error; err != nil {
				return err
			}
			outbox.CreatedAt = outboxModel.CreatedAt
		}

		return nil
	})
}

func (r *sagaRepository) GetStuckOrders(ctx context.Context, olderThan time.Time, limit int) ([]*domain.Order, error) {
	var models []OrderModel
	if err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(domain.OrderStatusPending), olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*domain.Order, len(models))
	for i := range models {
		result[i] = models[i].toDomain()
	}
	return result, nil
}
