// Package idempotency предоставляет Idempotency Guard — атомарную дедупликацию
// входящих событий по паре (topic, eventId), на основе Redis SETNX.
// Используется каждым консьюмером перед выполнением побочных эффектов:
// at-least-once доставка от шины превращается в at-most-once эффективную
// обработку.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Префикс ключей Redis: idempotency:{topic}:{eventId}.
const keyPrefix = "idempotency:"

// DefaultTTL — время жизни ключа идемпотентности по умолчанию (24 часа).
// Ограничивает окно повторной доставки, после которого событие считается
// новым.
const DefaultTTL = 24 * time.Hour

// sentinel — значение, записываемое в ключ; само значение не несёт смысла,
// важен только факт существования ключа.
const sentinel = "1"

// Guard — Idempotency Guard, обёртка над Redis клиентом.
type Guard struct {
	redis *redis.Client
}

// New создаёт новый Guard поверх существующего Redis клиента.
func New(client *redis.Client) *Guard {
	return &Guard{redis: client}
}

func key(topic, eventID string) string {
	return keyPrefix + topic + ":" + eventID
}

// IsDuplicate атомарно пытается записать (topic, eventId) с TTL по умолчанию.
// Возвращает true, если ключ уже существовал — вызывающий код должен
// пропустить обработку.
func (g *Guard) IsDuplicate(ctx context.Context, eventID, topic string) (bool, error) {
	return g.IsDuplicateTTL(ctx, eventID, topic, DefaultTTL)
}

// IsDuplicateTTL — вариант IsDuplicate с выбором TTL вызывающей стороной.
func (g *Guard) IsDuplicateTTL(ctx context.Context, eventID, topic string, ttl time.Duration) (bool, error) {
	if eventID == "" {
		return false, errors.New("idempotency: eventID пуст, сообщение без идентичности нельзя дедуплицировать")
	}

	ok, err := g.redis.SetNX(ctx, key(topic, eventID), sentinel, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: ошибка SETNX: %w", err)
	}

	// SetNX возвращает true, если ключ был установлен (событие новое).
	// Дубликат — когда запись НЕ удалась, т.е. ok == false.
	return !ok, nil
}

// MarkProcessed записывает (topic, eventId) без атомарной проверки — для
// вызывающих, которые хотят пометить событие обработанным только после
// успеха последующей обработки.
func (g *Guard) MarkProcessed(ctx context.Context, eventID, topic string) error {
	if err := g.redis.Set(ctx, key(topic, eventID), sentinel, DefaultTTL).Err(); err != nil {
		return fmt.Errorf("idempotency: ошибка записи отметки: %w", err)
	}
	return nil
}

// Remove удаляет ключ идемпотентности — используется в тестах и при ручном
// replay событий.
func (g *Guard) Remove(ctx context.Context, eventID, topic string) error {
	if err := g.redis.Del(ctx, key(topic, eventID)).Err(); err != nil {
		return fmt.Errorf("idempotency: ошибка удаления ключа: %w", err)
	}
	return nil
}
