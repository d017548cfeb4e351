// Package idempotency — тесты для Idempotency Guard.
// Используется miniredis для быстрых тестов без Docker.
package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "не удалось запустить miniredis")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return client, mr
}

func TestGuard_IsDuplicate(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	g := New(client)
	ctx := context.Background()

	t.Run("первое наблюдение события — не дубликат", func(t *testing.T) {
		dup, err := g.IsDuplicate(ctx, "evt-1", "orders.created")
		require.NoError(t, err)
		assert.False(t, dup, "первая доставка не должна считаться дубликатом")
	})

	t.Run("повторное наблюдение того же события — дубликат", func(t *testing.T) {
		_, err := g.IsDuplicate(ctx, "evt-2", "orders.created")
		require.NoError(t, err)

		dup, err := g.IsDuplicate(ctx, "evt-2", "orders.created")
		require.NoError(t, err)
		assert.True(t, dup, "повторная доставка должна считаться дубликатом")
	})

	t.Run("одинаковый eventId на разных топиках — не дубликат", func(t *testing.T) {
		_, err := g.IsDuplicate(ctx, "evt-3", "orders.created")
		require.NoError(t, err)

		dup, err := g.IsDuplicate(ctx, "evt-3", "payments.completed")
		require.NoError(t, err)
		assert.False(t, dup, "topic часть ключа — разные топики не должны пересекаться")
	})

	t.Run("пустой eventId возвращает ошибку", func(t *testing.T) {
		_, err := g.IsDuplicate(ctx, "", "orders.created")
		assert.Error(t, err, "сообщение без идентичности нельзя дедуплицировать")
	})
}

func TestGuard_IsDuplicateTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	g := New(client)
	ctx := context.Background()

	t.Run("ключ исчезает после истечения TTL", func(t *testing.T) {
		_, err := g.IsDuplicateTTL(ctx, "evt-ttl", "orders.created", 2*time.Second)
		require.NoError(t, err)

		mr.FastForward(3 * time.Second)

		dup, err := g.IsDuplicateTTL(ctx, "evt-ttl", "orders.created", 2*time.Second)
		require.NoError(t, err)
		assert.False(t, dup, "после истечения TTL событие должно считаться новым")
	})
}

func TestGuard_MarkProcessed(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	g := New(client)
	ctx := context.Background()

	err := g.MarkProcessed(ctx, "evt-manual", "payments.completed")
	require.NoError(t, err)

	dup, err := g.IsDuplicate(ctx, "evt-manual", "payments.completed")
	require.NoError(t, err)
	assert.True(t, dup, "MarkProcessed должен пометить событие как обработанное без проверки")
}

func TestGuard_Remove(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	g := New(client)
	ctx := context.Background()

	_, err := g.IsDuplicate(ctx, "evt-remove", "orders.created")
	require.NoError(t, err)

	err = g.Remove(ctx, "evt-remove", "orders.created")
	require.NoError(t, err)

	dup, err := g.IsDuplicate(ctx, "evt-remove", "orders.created")
	require.NoError(t, err)
	assert.False(t, dup, "после Remove событие должно снова считаться новым")
}
