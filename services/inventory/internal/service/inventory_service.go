// Package service содержит бизнес-логику Inventory Service.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"example.com/saga-platform/pkg/logger"
	"example.com/saga-platform/services/inventory/internal/domain"
	"example.com/saga-platform/services/inventory/internal/repository"
)

// maxOptimisticRetries — число попыток резервирования/освобождения одной
// позиции при конфликте версии, прежде чем считать товар недоступным (§4:
// "on conflict retry up to 3 times with backoff 10/20/30 ms").
const maxOptimisticRetries = 3

// optimisticRetryBackoff возвращает задержку перед попыткой attempt (с нуля):
// 10ms, 20ms, 30ms.
func optimisticRetryBackoff(attempt int) time.Duration {
	return time.Duration(attempt+1) * 10 * time.Millisecond
}

// ReserveInventoryRequest — запрос на резервирование товаров по заказу.
type ReserveInventoryRequest struct {
	CorrelationID string
	OrderID       string
	Items         []domain.Item
}

// ReserveInventoryResult — результат резервирования.
type ReserveInventoryResult struct {
	Success                bool
	InsufficientProductIDs []string
	AlreadyExists          bool
}

// ReleaseInventoryRequest — запрос на освобождение резерва (компенсация саги).
type ReleaseInventoryRequest struct {
	OrderID string
	Items   []domain.Item
}

// InventoryService — интерфейс бизнес-логики остатков.
type InventoryService interface {
	// ReserveInventory резервирует товары по заказу, идемпотентно по OrderID.
	ReserveInventory(ctx context.Context, req ReserveInventoryRequest) (*ReserveInventoryResult, error)

	// ReleaseInventory освобождает резерв (компенсация саги), идемпотентно по OrderID.
	ReleaseInventory(ctx context.Context, req ReleaseInventoryRequest) error
}

// inventoryService — реализация InventoryService.
type inventoryService struct {
	inventoryRepo   repository.InventoryRepository
	reservationRepo repository.ReservationRepository
}

// NewInventoryService создаёт новый сервис остатков.
func NewInventoryService(inventoryRepo repository.InventoryRepository, reservationRepo repository.ReservationRepository) InventoryService {
	return &inventoryService{inventoryRepo: inventoryRepo, reservationRepo: reservationRepo}
}

// ReserveInventory резервирует товары заказа по одному, с retry при конфликте
// версии. При нехватке хотя бы одной позиции откатывает все резервы,
// выполненные в рамках этой попытки, и возвращает список дефицитных товаров —
// ни одно изменение не переживает частично успешную сагу.
func (s *inventoryService) ReserveInventory(ctx context.Context, req ReserveInventoryRequest) (*ReserveInventoryResult, error) {
	log := logger.Ctx(ctx)

	// Идемпотентность: резерв для этого заказа уже существует.
	if existing, err := s.reservationRepo.GetByOrderID(ctx, req.OrderID); err == nil {
		log.Info().Str("order_id", req.OrderID).Str("reservation_id", existing.ID).
			Msg("Резерв уже существует (идемпотентность), повторная обработка не требуется")
		return &ReserveInventoryResult{Success: existing.Status != domain.ReservationStatusReleased, AlreadyExists: true}, nil
	} else if !errors.Is(err, domain.ErrReservationNotFound) {
		return nil, fmt.Errorf("ошибка проверки существующего резерва: %w", err)
	}

	var insufficient []string
	var reserved []domain.Item

	for _, item := range req.Items {
		ok, err := s.reserveOne(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("ошибка резервирования товара %s: %w", item.ProductID, err)
		}
		if !ok {
			insufficient = append(insufficient, item.ProductID)
			continue
		}
		reserved = append(reserved, item)
	}

	if len(insufficient) > 0 {
		s.rollback(ctx, reserved)
		log.Warn().Str("order_id", req.OrderID).Strs("insufficient_product_ids", insufficient).
			Msg("Резервирование товаров не удалось — недостаточно остатка")
		return &ReserveInventoryResult{Success: false, InsufficientProductIDs: insufficient}, nil
	}

	reservation := &domain.Reservation{
		OrderID: req.OrderID,
		Items:   req.Items,
		Status:  domain.ReservationStatusReserved,
	}
	if err := s.reservationRepo.Create(ctx, reservation); err != nil {
		if errors.Is(err, domain.ErrDuplicateReservation) {
			log.Info().Str("order_id", req.OrderID).Msg("Резерв создан параллельно, считаем дубликатом")
			return &ReserveInventoryResult{Success: true, AlreadyExists: true}, nil
		}
		s.rollback(ctx, reserved)
		return nil, fmt.Errorf("ошибка сохранения резерва: %w", err)
	}

	log.Info().Str("order_id", req.OrderID).Int("items", len(req.Items)).Msg("Товары зарезервированы")
	return &ReserveInventoryResult{Success: true}, nil
}

// reserveOne резервирует одну позицию с retry при конфликте версии.
// Возвращает (false, nil), если остатка недостаточно — это не ошибка,
// а законтрактованный исход резервирования.
func (s *inventoryService) reserveOne(ctx context.Context, item domain.Item) (bool, error) {
	log := logger.Ctx(ctx)

	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		inv, err := s.inventoryRepo.GetByProductID(ctx, item.ProductID)
		if err != nil {
			return false, err
		}

		if err := inv.Reserve(item.Quantity); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return false, nil
			}
			return false, err
		}

		if err := s.inventoryRepo.CompareAndSwap(ctx, inv, inv.Version); err != nil {
			if errors.Is(err, domain.ErrOptimisticLock) {
				log.Debug().Str("product_id", item.ProductID).Int("attempt", attempt+1).
					Msg("Конфликт версии при резервировании, повтор")
				if attempt == maxOptimisticRetries-1 {
					return false, nil
				}
				time.Sleep(optimisticRetryBackoff(attempt))
				continue
			}
			return false, err
		}

		return true, nil
	}

	return false, nil
}

// rollback освобождает позиции, успешно зарезервированные в рамках
// прерванной попытки ReserveInventory.
func (s *inventoryService) rollback(ctx context.Context, items []domain.Item) {
	log := logger.Ctx(ctx)
	for _, item := range items {
		if err := s.releaseOne(ctx, item); err != nil {
			log.Error().Err(err).Str("product_id", item.ProductID).
				Msg("Не удалось откатить частичный резерв")
		}
	}
}

// ReleaseInventory освобождает резерв (компенсация саги), идемпотентно по
// OrderID: повторная доставка inventory.released после уже выполненного
// освобождения — не ошибка.
func (s *inventoryService) ReleaseInventory(ctx context.Context, req ReleaseInventoryRequest) error {
	log := logger.Ctx(ctx)

	reservation, err := s.reservationRepo.GetByOrderID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, domain.ErrReservationNotFound) {
			log.Warn().Str("order_id", req.OrderID).
				Msg("Резерв не найден при освобождении — считаем не требующим действий")
			return nil
		}
		return fmt.Errorf("ошибка поиска резерва: %w", err)
	}

	if reservation.IsReleased() {
		log.Info().Str("order_id", req.OrderID).Msg("Резерв уже освобождён (идемпотентность)")
		return nil
	}

	for _, item := range req.Items {
		if err := s.releaseOne(ctx, item); err != nil {
			log.Error().Err(err).Str("order_id", req.OrderID).Str("product_id", item.ProductID).
				Msg("Ошибка освобождения позиции резерва")
		}
	}

	if err := s.reservationRepo.MarkReleased(ctx, reservation.ID); err != nil {
		return fmt.Errorf("ошибка обновления статуса резерва: %w", err)
	}

	log.Info().Str("order_id", req.OrderID).Msg("Резерв освобождён")
	return nil
}

// releaseOne освобождает одну позицию с retry при конфликте версии.
func (s *inventoryService) releaseOne(ctx context.Context, item domain.Item) error {
	for attempt := 0; attempt < maxOptimisticRetries; attempt++ {
		inv, err := s.inventoryRepo.GetByProductID(ctx, item.ProductID)
		if err != nil {
			return err
		}

		inv.Release(item.Quantity)

		if err := s.inventoryRepo.CompareAndSwap(ctx, inv, inv.Version); err != nil {
			if errors.Is(err, domain.ErrOptimisticLock) {
				if attempt == maxOptimisticRetries-1 {
					return err
				}
				time.Sleep(optimisticRetryBackoff(attempt))
				continue
			}
			return err
		}

		return nil
	}

	return domain.ErrOptimisticLock
}
