// Package lock serializes money movement on a single account with a redis
// SetNX mutex. The holder token guarantees a mutex is only ever released by
// the goroutine that acquired it; the TTL bounds how long a crashed holder
// can block an account.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when the caller still holds it.
const releaseScript = `if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end`

type AccountMutex struct {
	client redis.UniversalClient
	key    string
	holder string
	ttl    time.Duration
}

// ForAccount builds the mutex guarding one account's balance.
func ForAccount(client redis.UniversalClient, accountID string, ttl time.Duration) *AccountMutex {
	return &AccountMutex{
		client: client,
		key:    "lock:account:" + accountID,
		holder: uuid.New().String(),
		ttl:    ttl,
	}
}

// TryAcquire takes the mutex if it is free. Returns false without error when
// another holder has it.
func (m *AccountMutex) TryAcquire(ctx context.Context) (bool, error) {
	return m.client.SetNX(ctx, m.key, m.holder, m.ttl).Result()
}

// Acquire polls for the mutex with exponential backoff until it is taken or
// the wait budget runs out.
func (m *AccountMutex) Acquire(ctx context.Context, wait time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 25 * time.Millisecond
	policy.MaxInterval = 250 * time.Millisecond
	policy.MaxElapsedTime = wait

	return backoff.Retry(func() error {
		taken, err := m.TryAcquire(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		if !taken {
			return fmt.Errorf("%s is held by another transfer", m.key)
		}
		return nil
	}, backoff.WithContext(policy, ctx))
}

// Release frees the mutex. Releasing a mutex that expired or belongs to
// another holder is an error so the caller can escalate it.
func (m *AccountMutex) Release(ctx context.Context) error {
	result, err := m.client.Eval(ctx, releaseScript, []string{m.key}, m.holder).Result()
	if err != nil {
		return err
	}
	if result == int64(0) {
		return fmt.Errorf("%s was not released: expired or held by another transfer", m.key)
	}
	return nil
}
