package session

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/infrastructure/cache"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

// Registry maps opaque session tokens to connection descriptors. The cache
// store is the only place a descriptor (and its password) ever lives.
type Registry struct {
	cache *cache.Layer
	ttl   time.Duration
	log   logging.Logger
}

// NewRegistry creates a Registry whose sessions expire after ttl.
func NewRegistry(layer *cache.Layer, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = cache.DefaultTTLs().Connection
	}
	return &Registry{
		cache: layer,
		ttl:   ttl,
		log:   logging.New("session"),
	}
}

// Create stores desc under a fresh token.
func (r *Registry) Create(ctx context.Context, desc domain.ConnectionDescriptor) (string, error) {
	token := uuid.NewString()
	if err := r.cache.Set(ctx, cache.ConnectionKey(token), desc, r.ttl); err != nil {
		return "", apperrors.CacheError("create session", err)
	}
	r.log.Debugf("Created session %s for %s", shortToken(token), desc.Kind)
	return token, nil
}

// Resolve returns the descriptor behind token without extending its lifetime;
// only Refresh does that. Unknown, expired and malformed tokens all yield
// SessionNotFound, as does a cache fault.
func (r *Registry) Resolve(ctx context.Context, token string) (*domain.ConnectionDescriptor, error) {
	if !validToken(token) {
		return nil, apperrors.SessionNotFound()
	}
	var desc domain.ConnectionDescriptor
	if !r.cache.Get(ctx, cache.ConnectionKey(token), &desc) {
		return nil, apperrors.SessionNotFound()
	}
	return &desc, nil
}

// Refresh re-stores desc under token, extending its lifetime.
func (r *Registry) Refresh(ctx context.Context, token string, desc domain.ConnectionDescriptor) error {
	if !validToken(token) {
		return apperrors.SessionNotFound()
	}
	if err := r.cache.Set(ctx, cache.ConnectionKey(token), desc, r.ttl); err != nil {
		return apperrors.CacheError("refresh session", err)
	}
	return nil
}

// Destroy removes the descriptor only; derived cache entries are left alone.
func (r *Registry) Destroy(ctx context.Context, token string) (bool, error) {
	if !validToken(token) {
		return false, nil
	}
	ok, err := r.cache.Delete(ctx, cache.ConnectionKey(token))
	if err != nil {
		return false, apperrors.CacheError("destroy session", err)
	}
	if ok {
		r.log.Debugf("Destroyed session %s", shortToken(token))
	}
	return ok, nil
}

// List returns the active session tokens in sorted order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	keys, err := r.cache.Keys(ctx, cache.ConnectionPrefix())
	if err != nil {
		return nil, apperrors.CacheError("list sessions", err)
	}
	tokens := make([]string, 0, len(keys))
	for _, k := range keys {
		tokens = append(tokens, strings.TrimPrefix(k, cache.ConnectionPrefix()))
	}
	sort.Strings(tokens)
	return tokens, nil
}

// Reap deletes the cache namespaces of sessions whose descriptor has expired
// and returns how many namespaces it removed.
func (r *Registry) Reap(ctx context.Context) (int, error) {
	live, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	alive := make(map[string]bool, len(live))
	for _, t := range live {
		alive[t] = true
	}

	keys, err := r.cache.Keys(ctx, "")
	if err != nil {
		return 0, apperrors.CacheError("scan sessions", err)
	}
	orphans := make(map[string]bool)
	for _, k := range keys {
		sid, _, ok := strings.Cut(k, ":")
		if !ok || alive[sid] || !validToken(sid) {
			continue
		}
		orphans[sid] = true
	}

	reaped := 0
	for sid := range orphans {
		if _, err := r.cache.DeleteByPrefix(ctx, cache.SessionPrefix(sid)); err != nil {
			return reaped, apperrors.CacheError("reap session", err)
		}
		reaped++
	}
	if reaped > 0 {
		r.log.Infof("Reaped %d orphaned session namespace(s)", reaped)
	}
	return reaped, nil
}

func validToken(token string) bool {
	_, err := uuid.Parse(token)
	return err == nil && len(token) == 36
}

func shortToken(token string) string {
	if len(token) <= 8 {
		return token
	}
	return token[:8]
}
