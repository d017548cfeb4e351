package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"example.com/saga-platform/services/inventory/internal/domain"
)

// ReservationRepository определяет интерфейс доступа к резервам товаров по заказу.
type ReservationRepository interface {
	// GetByOrderID возвращает резерв по ID заказа.
	GetByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error)

	// Create создаёт новый резерв. Возвращает ErrDuplicateReservation при повторном orderId.
	Create(ctx context.Context, reservation *domain.Reservation) error

	// MarkReleased переводит резерв в RELEASED.
	MarkReleased(ctx context.Context, reservationID string) error
}

// ReservationModel — GORM модель для таблицы inventory_reservations.
type ReservationModel struct {
	ID        string    `gorm:"column:id;type:varchar(36);primaryKey"`
	OrderID   string    `gorm:"column:order_id;type:varchar(36);not null;uniqueIndex"`
	ItemsJSON []byte    `gorm:"column:items;type:json;not null"`
	Status    string    `gorm:"column:status;type:varchar(20);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ReservationModel) TableName() string {
	return "inventory_reservations"
}

func (m *ReservationModel) toDomain() (*domain.Reservation, error) {
	var items []domain.Item
	if err := json.Unmarshal(m.ItemsJSON, &items); err != nil {
		return nil, err
	}
	return &domain.Reservation{
		ID:        m.ID,
		OrderID:   m.OrderID,
		Items:     items,
		Status:    domain.ReservationStatus(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}

func reservationModelFromDomain(r *domain.Reservation) (*ReservationModel, error) {
	itemsJSON, err := json.Marshal(r.Items)
	if err != nil {
		return nil, err
	}
	return &ReservationModel{
		ID:        r.ID,
		OrderID:   r.OrderID,
		ItemsJSON: itemsJSON,
		Status:    string(r.Status),
	}, nil
}

// reservationRepository — GORM реализация ReservationRepository.
type reservationRepository struct {
	db *gorm.DB
}

// NewReservationRepository создаёт новый репозиторий резервов.
func NewReservationRepository(db *gorm.DB) ReservationRepository {
	return &reservationRepository{db: db}
}

// GetByOrderID возвращает резерв по ID заказа.
func (r *reservationRepository) GetByOrderID(ctx context.Context, orderID string) (*domain.Reservation, error) {
	var model ReservationModel
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}
		return nil, err
	}
	return model.toDomain()
}

// Create создаёт новый резерв.
func (r *reservationRepository) Create(ctx context.Context, reservation *domain.Reservation) error {
	if reservation.ID == "" {
		reservation.ID = uuid.New().String()
	}

	model, err := reservationModelFromDomain(reservation)
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isDuplicateKeyError(err) {
			return domain.ErrDuplicateReservation
		}
		return err
	}

	reservation.CreatedAt = model.CreatedAt
	reservation.UpdatedAt = model.UpdatedAt
	return nil
}

// MarkReleased переводит резерв в RELEASED.
func (r *reservationRepository) MarkReleased(ctx context.Context, reservationID string) error {
	result := r.db.WithContext(ctx).
		Model(&ReservationModel{}).
		Where("id = ?", reservationID).
		Updates(map[string]interface{}{
			"status":     string(domain.ReservationStatusReleased),
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrReservationNotFound
	}
	return nil
}

// isDuplicateKeyError проверяет, является ли ошибка дубликатом ключа.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	errMsg := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errMsg, "Duplicate entry") ||
		strings.Contains(errMsg, "1062")
}
