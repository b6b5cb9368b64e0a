package harbor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/harborbank/harbor/cache"
	"github.com/harborbank/harbor/internal/apierror"
	"github.com/harborbank/harbor/model"
)

// Session is the cached view of an identity's gate status. It is what the
// request middleware consults instead of hitting Postgres on every call.
type Session struct {
	IdentityID     string    `json:"identity_id"`
	Role           string    `json:"role"`
	ApprovalStatus string    `json:"approval_status"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// SessionCache stores sessions keyed by identity id with a fixed TTL.
type SessionCache struct {
	store cache.Cache
	ttl   time.Duration
}

func NewSessionCache(ttl time.Duration) (*SessionCache, error) {
	store, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	return &SessionCache{store: store, ttl: ttl}, nil
}

// NewSessionCacheFromStore wires an existing cache. Used by tests.
func NewSessionCacheFromStore(store cache.Cache, ttl time.Duration) *SessionCache {
	return &SessionCache{store: store, ttl: ttl}
}

func sessionKey(identityID string) string {
	return fmt.Sprintf("sessions:%s", identityID)
}

// Put caches a session snapshot of the identity for the configured TTL.
func (s *SessionCache) Put(ctx context.Context, identity *model.Identity) (*Session, error) {
	now := time.Now()
	session := &Session{
		IdentityID:     identity.IdentityID,
		Role:           identity.Role,
		ApprovalStatus: identity.ApprovalStatus,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.store.Set(ctx, sessionKey(identity.IdentityID), session, s.ttl); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns the cached session, or ErrCacheMiss when none exists. Expired
// entries are evicted by the cache TTL, but a locally cached copy can outlive
// its ExpiresAt by the local tier window, so the stamp is checked too.
func (s *SessionCache) Get(ctx context.Context, identityID string) (*Session, error) {
	var session Session
	err := s.store.Get(ctx, sessionKey(identityID), &session)
	if err != nil {
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		_ = s.store.Delete(ctx, sessionKey(identityID))
		return nil, cache.ErrCacheMiss
	}
	return &session, nil
}

// Expire drops the session so the next request re-reads the identity store.
func (s *SessionCache) Expire(ctx context.Context, identityID string) error {
	return s.store.Delete(ctx, sessionKey(identityID))
}

// ResolveSession returns the session for an identity, re-reading the store on
// a cache miss. This is the middleware entry point.
func (h *Harbor) ResolveSession(ctx context.Context, identityID string) (*Session, error) {
	session, err := h.sessions.Get(ctx, identityID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		return nil, err
	}
	return h.RefreshSession(ctx, identityID)
}

// RefreshSession re-reads the identity row and re-caches it, replacing
// whatever snapshot was cached before.
func (h *Harbor) RefreshSession(ctx context.Context, identityID string) (*Session, error) {
	identity, err := h.datasource.GetIdentity(ctx, identityID)
	if err != nil {
		if apierror.Is(err, apierror.ErrNotFound) {
			return nil, apierror.NewAPIError(apierror.ErrUnauthorized, "unknown identity", err)
		}
		return nil, err
	}
	return h.sessions.Put(ctx, identity)
}

// ExpireSession drops an identity's session. Called after admin decisions so
// a stale approval status cannot outlive the decision.
func (h *Harbor) ExpireSession(ctx context.Context, identityID string) error {
	return h.sessions.Expire(ctx, identityID)
}
