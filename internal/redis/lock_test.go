package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSlotLocker(client, 2*time.Second), mr
}

func TestRedisSlotLockerReleasesAfterRun(t *testing.T) {
	locker, mr := newTestLocker(t)
	key := SlotKey{ProviderID: uuid.New(), Start: time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)}

	ran := false
	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists(key.String()))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.False(t, mr.Exists(key.String()))
}

func TestRedisSlotLockerRejectsHeldKey(t *testing.T) {
	locker, _ := newTestLocker(t)
	key := SlotKey{ProviderID: uuid.New(), Start: time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)}

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		inner := locker.WithSlotLock(ctx, key, func(context.Context) error {
			t.Fatal("nested claim must not run")
			return nil
		})
		assert.ErrorIs(t, inner, ErrLockNotAcquired)
		return nil
	})
	require.NoError(t, err)
}

func TestRedisSlotLockerKeepsForeignToken(t *testing.T) {
	locker, mr := newTestLocker(t)
	key := SlotKey{ProviderID: uuid.New(), Start: time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)}

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		// simulate TTL expiry and takeover by another claimant
		mr.Del(key.String())
		require.NoError(t, mr.Set(key.String(), "someone-else"))
		return nil
	})
	require.NoError(t, err)

	got, err := mr.Get(key.String())
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisSlotLockerPropagatesCallbackError(t *testing.T) {
	locker, _ := newTestLocker(t)
	boom := errors.New("boom")

	err := locker.WithSlotLock(context.Background(), SlotKey{ProviderID: uuid.New()}, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestLocalSlotLocker(t *testing.T) {
	locker := NewLocalSlotLocker()
	key := SlotKey{ProviderID: uuid.New(), Start: time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC)}
	other := SlotKey{ProviderID: key.ProviderID, Start: key.Start.Add(time.Hour)}

	err := locker.WithSlotLock(context.Background(), key, func(ctx context.Context) error {
		assert.ErrorIs(t, locker.WithSlotLock(ctx, key, func(context.Context) error { return nil }), ErrLockNotAcquired)
		assert.NoError(t, locker.WithSlotLock(ctx, other, func(context.Context) error { return nil }))
		return nil
	})
	require.NoError(t, err)

	assert.NoError(t, locker.WithSlotLock(context.Background(), key, func(context.Context) error { return nil }))
}
