// Package domain содержит бизнес-сущности Inventory Service.
package domain

import "time"

// Item — позиция заказа, подлежащая резервированию/освобождению.
type Item struct {
	ProductID string
	Quantity  int32
}

// InventoryItem — остаток по одному товару. Version — столбец оптимистической
// блокировки: UPDATE всегда идёт с условием WHERE version = $current, конфликт
// параллельного изменения даёт ErrOptimisticLock вместо потерянного обновления.
type InventoryItem struct {
	ProductID         string
	SKU               string
	AvailableQuantity int32
	ReservedQuantity  int32
	ReorderPoint      int32
	Version           int32
	UpdatedAt         time.Time
}

// HasAvailable сообщает, достаточно ли свободного остатка для резервирования quantity.
func (i *InventoryItem) HasAvailable(quantity int32) bool {
	return i.AvailableQuantity >= quantity
}

// Reserve уменьшает доступный остаток и увеличивает зарезервированный.
func (i *InventoryItem) Reserve(quantity int32) error {
	if !i.HasAvailable(quantity) {
		return ErrInsufficientStock
	}
	i.AvailableQuantity -= quantity
	i.ReservedQuantity += quantity
	return nil
}

// Release возвращает quantity в доступный остаток; зарезервированный
// остаток не уходит в отрицательные значения.
func (i *InventoryItem) Release(quantity int32) {
	i.AvailableQuantity += quantity
	i.ReservedQuantity -= quantity
	if i.ReservedQuantity < 0 {
		i.ReservedQuantity = 0
	}
}

// ReservationStatus — статус резерва товаров по заказу.
type ReservationStatus string

const (
	ReservationStatusReserved ReservationStatus = "RESERVED"
	ReservationStatusReleased ReservationStatus = "RELEASED"
	ReservationStatusConsumed ReservationStatus = "CONSUMED"
)

// Reservation — резерв товаров по заказу, ключ идемпотентности ReserveInventory/ReleaseInventory.
type Reservation struct {
	ID        string
	OrderID   string
	Items     []Item
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsReleased сообщает, что резерв уже освобождён — ReleaseInventory идемпотентен по этому флагу.
func (r *Reservation) IsReleased() bool {
	return r.Status == ReservationStatusReleased
}
