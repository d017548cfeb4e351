package sagastate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"example.com/saga-platform/pkg/logger"
)

// Префикс ключа Redis: saga:order:{correlationId}.
const keyPrefix = "saga:order:"

// DefaultTTL — время жизни записи состояния саги (таймаут саги 30 мин +
// 5 мин grace period на случай отладки/позднего дубликата).
const DefaultTTL = 35 * time.Minute

// DefaultGrace — TTL, устанавливаемый при ScheduleDelete после терминального
// перехода саги (оставляет запись видимой для отладки ещё немного времени).
const DefaultGrace = 5 * time.Minute

// Store — Saga State Store, внешнее durable хранилище состояния саги.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// New создаёт Store с TTL по умолчанию.
func New(client *redis.Client) *Store {
	return &Store{redis: client, ttl: DefaultTTL}
}

// NewWithTTL создаёт Store с явно заданным TTL — используется когда
// saga.timeout-ms конфигурируется отлично от значения по умолчанию.
func NewWithTTL(client *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: client, ttl: ttl}
}

func key(correlationID string) string {
	return keyPrefix + correlationID
}

// Save сериализует состояние и сохраняет под ключом saga:order:{correlationId}.
// Ошибка сериализации — программная ошибка, она должна провалить вызов
// громко, а не проглатываться.
func (s *Store) Save(ctx context.Context, state *State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("sagastate: не удалось сериализовать состояние саги %s: %w", state.CorrelationID, err)
	}

	if err := s.redis.Set(ctx, key(state.CorrelationID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("sagastate: ошибка записи состояния саги %s: %w", state.CorrelationID, err)
	}
	return nil
}

// Load возвращает текущее состояние саги или (nil, false, nil) если записи нет.
// Ошибка десериализации существующего ключа логируется и трактуется как
// отсутствие состояния — вызывающий оркестратор классифицирует это как
// orphan event.
func (s *Store) Load(ctx context.Context, correlationID string) (*State, bool, error) {
	data, err := s.redis.Get(ctx, key(correlationID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sagastate: ошибка чтения состояния саги %s: %w", correlationID, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		log := logger.Logger()
		log.Error().Err(err).Str("correlation_id", correlationID).
			Msg("Повреждённая запись состояния саги, трактуем как отсутствующую")
		return nil, false, nil
	}

	return &state, true, nil
}

// Delete немедленно удаляет состояние саги.
func (s *Store) Delete(ctx context.Context, correlationID string) error {
	if err := s.redis.Del(ctx, key(correlationID)).Err(); err != nil {
		return fmt.Errorf("sagastate: ошибка удаления состояния саги %s: %w", correlationID, err)
	}
	return nil
}

// ScanActive выполняет один шаг SCAN по ключам saga:order:* и возвращает
// извлечённые correlationId вместе с курсором для продолжения. Используется
// активным timeout sweeper'ом — lazy-проверка в конвейере валидации видит
// только сагу, получившую событие, а sweeper обходит все незавершённые саги.
func (s *Store) ScanActive(ctx context.Context, cursor uint64, count int64) ([]string, uint64, error) {
	keys, nextCursor, err := s.redis.Scan(ctx, cursor, keyPrefix+"*", count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("sagastate: ошибка сканирования ключей саги: %w", err)
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k[len(keyPrefix):])
	}
	return ids, nextCursor, nil
}

// ScheduleDelete переписывает TTL записи на delay, оставляя завершённую
// сагу видимой ещё некоторое время (по умолчанию 5 минут после
// терминального перехода) для отладки, а затем позволяя Redis истечь
// естественным образом.
func (s *Store) ScheduleDelete(ctx context.Context, correlationID string, delay time.Duration) error {
	ok, err := s.redis.Expire(ctx, key(correlationID), delay).Result()
	if err != nil {
		return fmt.Errorf("sagastate: ошибка планирования удаления саги %s: %w", correlationID, err)
	}
	if !ok {
		// Ключа уже не существует — нечего планировать, это не ошибка.
		return nil
	}
	return nil
}
