// Package repository содержит реализацию доступа к данным для Inventory Service.
package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"example.com/saga-platform/services/inventory/internal/domain"
)

// InventoryRepository определяет интерфейс доступа к остаткам товаров.
type InventoryRepository interface {
	// GetByProductID возвращает товар по ID.
	GetByProductID(ctx context.Context, productID string) (*domain.InventoryItem, error)

	// CompareAndSwap сохраняет изменённый товар только если текущая версия в БД
	// совпадает с expectedVersion (UPDATE ... WHERE version = expectedVersion) —
	// оптимистическая блокировка §4: "per-product version". RowsAffected == 0
	// означает конфликт версии — возвращает ErrOptimisticLock, вызывающий код
	// должен перечитать строку и повторить попытку.
	CompareAndSwap(ctx context.Context, item *domain.InventoryItem, expectedVersion int32) error
}

// InventoryItemModel — GORM модель для таблицы inventory.
type InventoryItemModel struct {
	ProductID         string    `gorm:"column:product_id;type:varchar(100);primaryKey"`
	SKU               string    `gorm:"column:sku;type:varchar(100);not null"`
	AvailableQuantity int32     `gorm:"column:available_quantity;not null"`
	ReservedQuantity  int32     `gorm:"column:reserved_quantity;not null"`
	ReorderPoint      int32     `gorm:"column:reorder_point;not null"`
	Version           int32     `gorm:"column:version;not null"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (InventoryItemModel) TableName() string {
	return "inventory"
}

func (m *InventoryItemModel) toDomain() *domain.InventoryItem {
	return &domain.InventoryItem{
		ProductID:         m.ProductID,
		SKU:               m.SKU,
		AvailableQuantity: m.AvailableQuantity,
		ReservedQuantity:  m.ReservedQuantity,
		ReorderPoint:      m.ReorderPoint,
		Version:           m.Version,
		UpdatedAt:         m.UpdatedAt,
	}
}

// inventoryRepository — GORM реализация InventoryRepository.
type inventoryRepository struct {
	db *gorm.DB
}

// NewInventoryRepository создаёт новый репозиторий остатков.
func NewInventoryRepository(db *gorm.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

// GetByProductID возвращает товар по ID.
func (r *inventoryRepository) GetByProductID(ctx context.Context, productID string) (*domain.InventoryItem, error) {
	var model InventoryItemModel
	if err := r.db.WithContext(ctx).Where("product_id = ?", productID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrItemNotFound
		}
		return nil, err
	}
	return model.toDomain(), nil
}

// CompareAndSwap — см. комментарий интерфейса.
func (r *inventoryRepository) CompareAndSwap(ctx context.Context, item *domain.InventoryItem, expectedVersion int32) error {
	nextVersion := expectedVersion + 1

	result := r.db.WithContext(ctx).
		Model(&InventoryItemModel{}).
		Where("product_id = ? AND version = ?", item.ProductID, expectedVersion).
		Updates(map[string]interface{}{
			"available_quantity": item.AvailableQuantity,
			"reserved_quantity":  item.ReservedQuantity,
			"version":            nextVersion,
			"updated_at":         time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOptimisticLock
	}

	item.Version = nextVersion
	return nil
}
