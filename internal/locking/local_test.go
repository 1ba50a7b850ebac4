package locking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_Exclusive(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	token, ok, err := locker.TryLock(ctx, "submission:u1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "submission:u1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = locker.TryLock(ctx, "submission:u2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different keys do not contend")

	require.NoError(t, locker.Unlock(ctx, "submission:u1", token))

	_, ok, err = locker.TryLock(ctx, "submission:u1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLocalLocker_Expiry(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	locker.now = func() time.Time { return now }

	_, ok, err := locker.TryLock(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(11 * time.Second)
	_, ok, err = locker.TryLock(ctx, "k", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "expired lock can be taken over")
}

func TestLocalLocker_UnlockWrongToken(t *testing.T) {
	ctx := context.Background()
	locker := NewLocalLocker()

	_, ok, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	assert.ErrorIs(t, locker.Unlock(ctx, "k", "someone-else"), ErrNotOwner)
	assert.NoError(t, locker.Unlock(ctx, "missing", "anything"))
}

func TestLocalLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := NewLocalLocker().TryLock(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}
