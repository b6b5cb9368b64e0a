package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (redis.UniversalClient, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()}), mr
}

func TestAccountMutexExcludesSecondHolder(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	mutex := ForAccount(client, "acc_123", time.Minute)
	taken, err := mutex.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, taken)

	other := ForAccount(client, "acc_123", time.Minute)
	taken, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, taken)

	require.NoError(t, mutex.Release(ctx))
	taken, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, taken)
}

func TestAccountMutexReleaseWrongHolder(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	mutex := ForAccount(client, "acc_456", time.Minute)
	taken, err := mutex.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, taken)

	imposter := ForAccount(client, "acc_456", time.Minute)
	assert.Error(t, imposter.Release(ctx))

	// Original holder can still release.
	assert.NoError(t, mutex.Release(ctx))
}

func TestAccountMutexAcquireWaitsForRelease(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	mutex := ForAccount(client, "acc_789", time.Minute)
	taken, err := mutex.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, taken)

	contender := ForAccount(client, "acc_789", time.Minute)
	done := make(chan error, 1)
	go func() {
		done <- contender.Acquire(ctx, 5*time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, mutex.Release(ctx))

	assert.NoError(t, <-done)
}

func TestAccountMutexTTLFreesCrashedHolder(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	mutex := ForAccount(client, "acc_999", time.Minute)
	taken, err := mutex.TryAcquire(ctx)
	require.NoError(t, err)
	require.True(t, taken)

	mr.FastForward(2 * time.Minute)

	other := ForAccount(client, "acc_999", time.Minute)
	taken, err = other.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, taken)
}
