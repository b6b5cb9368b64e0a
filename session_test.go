package harbor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	rediscache "github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/harborbank/harbor/cache"
	"github.com/harborbank/harbor/model"
)

func newTestSessionCache(t *testing.T, ttl time.Duration) (*SessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := cache.NewCacheFromClient(rediscache.New(&rediscache.Options{Redis: client}))
	return NewSessionCacheFromStore(store, ttl), mr
}

func TestSessionCachePutAndGet(t *testing.T) {
	sessions, _ := newTestSessionCache(t, time.Hour)

	identity := &model.Identity{
		IdentityID:     "idt_1",
		Role:           model.RoleCustomer,
		ApprovalStatus: model.ApprovalApproved,
	}
	created, err := sessions.Put(context.Background(), identity)
	assert.NoError(t, err)
	assert.Equal(t, "idt_1", created.IdentityID)

	got, err := sessions.Get(context.Background(), "idt_1")
	assert.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, got.ApprovalStatus)
	assert.True(t, got.ExpiresAt.After(time.Now()))
}

func TestSessionCacheMiss(t *testing.T) {
	sessions, _ := newTestSessionCache(t, time.Hour)

	_, err := sessions.Get(context.Background(), "idt_unknown")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))
}

func TestSessionCacheTTLExpiry(t *testing.T) {
	sessions, mr := newTestSessionCache(t, time.Minute)

	_, err := sessions.Put(context.Background(), &model.Identity{
		IdentityID:     "idt_1",
		Role:           model.RoleCustomer,
		ApprovalStatus: model.ApprovalApproved,
	})
	assert.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = sessions.Get(context.Background(), "idt_1")
	assert.Error(t, err)
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))
}

func TestSessionCacheExpire(t *testing.T) {
	sessions, _ := newTestSessionCache(t, time.Hour)

	_, err := sessions.Put(context.Background(), &model.Identity{
		IdentityID:     "idt_1",
		Role:           model.RoleAdmin,
		ApprovalStatus: model.ApprovalApproved,
	})
	assert.NoError(t, err)

	assert.NoError(t, sessions.Expire(context.Background(), "idt_1"))

	_, err = sessions.Get(context.Background(), "idt_1")
	assert.True(t, errors.Is(err, cache.ErrCacheMiss))
}

func TestResolveSessionReadsThroughOnMiss(t *testing.T) {
	h, mock := newTestHarbor(t)

	mock.ExpectQuery(`FROM identities`).
		WillReturnRows(identityRows("idt_1", model.RoleCustomer, model.ApprovalApproved))

	session, err := h.ResolveSession(context.Background(), "idt_1")
	assert.NoError(t, err)
	assert.Equal(t, model.ApprovalApproved, session.ApprovalStatus)

	// Second resolve is served from the cache; no further identity reads.
	cached, err := h.ResolveSession(context.Background(), "idt_1")
	assert.NoError(t, err)
	assert.Equal(t, session.IdentityID, cached.IdentityID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
