// Package sagastate — тесты Saga State Store.
// Используется miniredis для быстрых тестов без Docker.
package sagastate

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

func testState(correlationID string) *State {
	now := time.Now()
	return &State{
		CorrelationID: correlationID,
		OrderID:       "ord_test_001",
		CustomerID:    "cust_1",
		OrderSnapshot: OrderSnapshot{
			Items:       []Item{{ProductID: "prod_1", Quantity: 2, UnitPrice: 4999}},
			TotalAmount: 9998,
			Currency:    "USD",
		},
		Status:         StatusStarted,
		CompletedSteps: []Step{},
		StartedAt:      now,
		LastUpdatedAt:  now,
		TimeoutAt:      now.Add(5 * time.Minute),
	}
}

func TestStore_SaveLoad(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := New(client)
	ctx := context.Background()

	state := testState("C1")
	require.NoError(t, store.Save(ctx, state))

	loaded, ok, err := store.Load(ctx, "C1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state.OrderID, loaded.OrderID)
	assert.Equal(t, state.Status, loaded.Status)
	assert.Equal(t, state.OrderSnapshot.TotalAmount, loaded.OrderSnapshot.TotalAmount)
}

func TestStore_LoadAbsent(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := New(client)
	_, ok, err := store.Load(context.Background(), "unknown-correlation-id")
	require.NoError(t, err)
	assert.False(t, ok, "отсутствующий ключ не должен считаться ошибкой")
}

func TestStore_LoadCorrupted(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	require.NoError(t, mr.Set(keyPrefix+"C-corrupt", "not json"))

	store := New(client)
	state, ok, err := store.Load(context.Background(), "C-corrupt")
	require.NoError(t, err, "повреждённая запись логируется, но не возвращается как ошибка")
	assert.False(t, ok)
	assert.Nil(t, state)
}

func TestStore_Delete(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := New(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testState("C2")))
	require.NoError(t, store.Delete(ctx, "C2"))

	_, ok, err := store.Load(ctx, "C2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ScheduleDelete(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := New(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testState("C3")))
	require.NoError(t, store.ScheduleDelete(ctx, "C3", 2*time.Second))

	_, ok, err := store.Load(ctx, "C3")
	require.NoError(t, err)
	assert.True(t, ok, "запись остаётся видимой в течение grace period")

	mr.FastForward(3 * time.Second)

	_, ok, err = store.Load(ctx, "C3")
	require.NoError(t, err)
	assert.False(t, ok, "запись должна исчезнуть после истечения grace period")
}

func TestStore_ScanActive(t *testing.T) {
	client, mr := setupTestRedis(t)
	defer mr.Close()

	store := New(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testState("C5")))
	require.NoError(t, store.Save(ctx, testState("C6")))
	require.NoError(t, store.Save(ctx, testState("C7")))

	seen := make(map[string]bool)
	var cursor uint64
	for {
		ids, next, err := store.ScanActive(ctx, cursor, 10)
		require.NoError(t, err)
		for _, id := range ids {
			seen[id] = true
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	assert.True(t, seen["C5"])
	assert.True(t, seen["C6"])
	assert.True(t, seen["C7"])
}

func TestState_HasCompletedStepAndTimeout(t *testing.T) {
	state := testState("C4")
	assert.False(t, state.HasCompletedStep(StepReserveInventory))

	state.AppendCompletedStep(StepReserveInventory)
	assert.True(t, state.HasCompletedStep(StepReserveInventory))
	assert.False(t, state.HasCompletedStep(StepProcessPayment))

	assert.False(t, state.IsTimedOut(time.Now()))
	assert.True(t, state.IsTimedOut(state.TimeoutAt.Add(time.Second)))

	state.Status = StatusCompleted
	assert.False(t, state.IsTimedOut(state.TimeoutAt.Add(time.Hour)), "терминальный статус не считается таймаутом")
}
