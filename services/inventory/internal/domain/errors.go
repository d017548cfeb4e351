package domain

import "errors"

var (
	// ErrItemNotFound — товар не найден в складском учёте.
	ErrItemNotFound = errors.New("товар не найден")

	// ErrInsufficientStock — доступного остатка недостаточно для резервирования.
	ErrInsufficientStock = errors.New("недостаточно товара на складе")

	// ErrReservationNotFound — резерв по заказу не найден.
	ErrReservationNotFound = errors.New("резерв не найден")

	// ErrDuplicateReservation — резерв по этому заказу уже существует.
	ErrDuplicateReservation = errors.New("резерв для этого заказа уже существует")

	// ErrOptimisticLock — строка товара была изменена параллельно (конфликт версии).
	ErrOptimisticLock = errors.New("конфликт версии при обновлении остатка")
)
