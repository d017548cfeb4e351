package outbox

import (
	"context"
	"errors"
	"math"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOutboxNotFound — запись outbox не найдена.
var ErrOutboxNotFound = errors.New("запись outbox не найдена")

// MaxRetries — предельное число попыток отправки, после которого запись
// исключается из выборки GetUnprocessed и считается исчерпанной (dead letter).
const MaxRetries = 5

// backoffBase — база экспоненциального backoff между повторными попытками:
// задержка перед попыткой N (N >= 1) составляет backoffBase * 2^(N-1) секунд.
const backoffBase = 5 * time.Second

// nextRetryDelay возвращает задержку перед следующей попыткой после того,
// как запись уже провалилась retryCount раз.
func nextRetryDelay(retryCount int) time.Duration {
	return time.Duration(float64(backoffBase) * math.Pow(2, float64(retryCount-1)))
}

// OutboxRepository определяет методы работы с outbox.
// Интерфейс для тестируемости (Dependency Inversion).
type OutboxRepository interface {
	// Create создаёт новую запись outbox.
	Create(ctx context.Context, record *Outbox) error

	// GetUnprocessed возвращает необработанные записи для отправки в Kafka.
	GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error)

	// MarkProcessed помечает запись как обработанную.
	MarkProcessed(ctx context.Context, id string) error

	// MarkFailed увеличивает счётчик ошибок и сохраняет текст ошибки.
	MarkFailed(ctx context.Context, id string, err error) error

	// DeleteProcessedBefore удаляет обработанные записи старше указанного времени.
	// Возвращает количество удалённых записей. Используется для очистки outbox.
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// outboxRepository — GORM реализация OutboxRepository.
// aggregateType фильтрует записи по типу агрегата ("order" / "payment").
type outboxRepository struct {
	db            *gorm.DB
	aggregateType string
}

// NewOutboxRepository создаёт новый репозиторий outbox.
// aggregateType — тип агрегата для фильтрации ("order" / "payment").
func NewOutboxRepository(db *gorm.DB, aggregateType string) OutboxRepository {
	return &outboxRepository{db: db, aggregateType: aggregateType}
}

// Create создаёт новую запись outbox.
func (r *outboxRepository) Create(ctx context.Context, record *Outbox) error {
	model := ModelFromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	record.CreatedAt = model.CreatedAt
	return nil
}

// GetUnprocessed возвращает необработанные записи, готовые к (повторной)
// отправке: processed_at IS NULL, retry_count не исчерпан и next_retry_at
// либо не задан, либо уже наступил. Строки блокируются SELECT ... FOR UPDATE
// SKIP LOCKED — несколько реплик Worker'а могут опрашивать таблицу
// одновременно без дублирующей отправки одной и той же записи.
func (r *outboxRepository) GetUnprocessed(ctx context.Context, limit int) ([]*Outbox, error) {
	var models []OutboxModel

	now := time.Now()
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("processed_at IS NULL AND aggregate_type = ? AND retry_count < ? AND (next_retry_at IS NULL OR next_retry_at <= ?)",
			r.aggregateType, MaxRetries, now).
		Order("retry_count ASC, created_at ASC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	result := make([]*Outbox, len(models))
	for i := range models {
		result[i] = models[i].ToDomain()
	}
	return result, nil
}

// MarkProcessed помечает запись как обработанную.
func (r *outboxRepository) MarkProcessed(ctx context.Context, id string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&OutboxModel{}).
		Where("id = ?", id).
		Update("processed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrOutboxNotFound
	}
	return nil
}

// MarkFailed увеличивает счётчик ошибок, сохраняет текст ошибки и назначает
// время следующей попытки по экспоненциальному backoff. Инкремент и чтение
// нового retry_count выполняются внутри одной транзакции, иначе backoff
// считался бы по устаревшему значению счётчика.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string, err error) error {
	errStr := err.Error()

	txErr := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&OutboxModel{}).
			Where("id = ?", id).
			Update("retry_count", gorm.Expr("retry_count + 1"))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOutboxNotFound
		}

		var model OutboxModel
		if err := tx.Select("retry_count").Where("id = ?", id).First(&model).Error; err != nil {
			return err
		}

		nextRetryAt := time.Now().Add(nextRetryDelay(model.RetryCount))
		return tx.Model(&OutboxModel{}).Where("id = ?", id).Updates(map[string]any{
			"last_error":    errStr,
			"next_retry_at": nextRetryAt,
		}).Error
	})

	return txErr
}

// DeleteProcessedBefore удаляет обработанные записи outbox старше указанного времени.
// Удаляет пачками по 1000 для предотвращения длинных блокировок.
func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("processed_at IS NOT NULL AND processed_at < ? AND aggregate_type = ?", before, r.aggregateType).
		Limit(1000).
		Delete(&OutboxModel{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
