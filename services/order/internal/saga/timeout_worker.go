package saga

import (
	"context"
	"time"

	"example.com/saga-platform/pkg/logger"
	"example.com/saga-platform/pkg/sagastate"
	"example.com/saga-platform/services/order/internal/domain"
)

// orphanOrderAge — если заказ остаётся PENDING дольше этого порога и при
// этом у него нет записи в Saga State Store, значит шаг "сохранить
// состояние саги" после коммита SQL-транзакции в CreateOrderWithSaga так и
// не выполнился (см. комментарий там) — заказ помечается FAILED напрямую.
const orphanOrderAge = 10 * time.Minute

// =============================================================================
// SagaTimeoutWorker — активный sweeper поверх ленивой проверки таймаута
// =============================================================================

// Мандатная проверка таймаута саги выполняется лениво, на очередном входящем
// событии (см. orchestrator.loadAndValidate, шаг 4 конвейера валидации). Если
// участник молча перестаёт отвечать, сага так и останется в нетерминальном
// статусе до истечения TTL своей записи в Redis. SagaTimeoutWorker — опциональное
// дополнение поверх этой ленивой проверки: он периодически обходит все
// активные записи Saga State Store через SCAN и форсирует компенсацию тех,
// что уже просрочены, не дожидаясь следующего события.

// TimeoutWorkerConfig — настройки Timeout Worker.
type TimeoutWorkerConfig struct {
	// PollInterval — интервал между обходами Saga State Store.
	PollInterval time.Duration

	// BatchSize — размер одной порции SCAN за итерацию курсора.
	BatchSize int64
}

// DefaultTimeoutWorkerConfig возвращает конфигурацию по умолчанию.
func DefaultTimeoutWorkerConfig() TimeoutWorkerConfig {
	return TimeoutWorkerConfig{
		PollInterval: 30 * time.Second,
		BatchSize:    100,
	}
}

// SagaTimeoutWorker периодически обходит ключи saga:order:* в Redis и
// форсирует компенсацию для саг, чей timeoutAt уже прошёл.
type SagaTimeoutWorker struct {
	repo         SagaRepository
	state        *sagastate.Store
	orchestrator Orchestrator
	cfg          TimeoutWorkerConfig
}

// NewSagaTimeoutWorker создаёт новый Timeout Worker.
func NewSagaTimeoutWorker(repo SagaRepository, state *sagastate.Store, orchestrator Orchestrator, cfg TimeoutWorkerConfig) *SagaTimeoutWorker {
	return &SagaTimeoutWorker{
		repo:         repo,
		state:        state,
		orchestrator: orchestrator,
		cfg:          cfg,
	}
}

// Run запускает Worker. Блокирует выполнение до отмены контекста.
func (w *SagaTimeoutWorker) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info().
		Dur("poll_interval", w.cfg.PollInterval).
		Int64("batch_size", w.cfg.BatchSize).
		Msg("Запуск Saga Timeout Worker")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Остановка Saga Timeout Worker")
			return
		case <-ticker.C:
			w.sweep(ctx)
			w.sweepOrphanedOrders(ctx)
		}
	}
}

// sweepOrphanedOrders ищет заказы, застрявшие в PENDING без соответствующей
// записи в Saga State Store (orphan на уровне самой записи сохранения
// состояния, а не просроченный таймаут саги) и переводит их в FAILED.
func (w *SagaTimeoutWorker) sweepOrphanedOrders(ctx context.Context) {
	log := logger.FromContext(ctx)

	orders, err := w.repo.GetStuckOrders(ctx, time.Now().Add(-orphanOrderAge), int(w.cfg.BatchSize))
	if err != nil {
		log.Error().Err(err).Msg("Ошибка поиска заказов без состояния саги")
		return
	}

	for _, order := range orders {
		if order.CorrelationID != "" {
			if _, ok, err := w.state.Load(ctx, order.CorrelationID); err == nil && ok {
				continue // сага активна, это не orphan — его догонит sweep()
			}
		}

		reason := "Сага не была создана: запись Saga State Store отсутствует"
		if err := w.repo.UpdateStatusWithOutbox(ctx, order.ID, domain.OrderStatusFailed, nil, &reason, nil); err != nil {
			log.Error().Err(err).Str("order_id", order.ID).Msg("Ошибка пометки orphan-заказа как FAILED")
			continue
		}
		log.Warn().Str("order_id", order.ID).Str("correlation_id", order.CorrelationID).
			Msg("Заказ без состояния саги помечен как FAILED")
	}
}

// sweep обходит всё пространство ключей saga:order:* одним полным проходом
// курсора SCAN и форсирует компенсацию просроченных саг.
func (w *SagaTimeoutWorker) sweep(ctx context.Context) {
	log := logger.FromContext(ctx)

	var cursor uint64
	checked := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		ids, next, err := w.state.ScanActive(ctx, cursor, w.cfg.BatchSize)
		if err != nil {
			log.Error().Err(err).Msg("Ошибка сканирования Saga State Store")
			return
		}

		for _, correlationID := range ids {
			if err := w.orchestrator.CheckAndCompensateTimeout(ctx, correlationID); err != nil {
				log.Error().Err(err).Str("correlation_id", correlationID).
					Msg("Ошибка принудительной компенсации по таймауту")
			}
		}
		checked += len(ids)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if checked > 0 {
		log.Debug().Int("checked", checked).Msg("Обход Saga State Store на таймауты завершён")
	}
}
