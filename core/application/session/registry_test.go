package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperterse/tablescope/core/domain"
	"github.com/hyperterse/tablescope/core/infrastructure/cache"
	apperrors "github.com/hyperterse/tablescope/core/shared/errors"
)

func newRegistry(t *testing.T) (*Registry, *cache.Layer) {
	t.Helper()
	store := cache.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	layer := cache.NewLayer(store)
	return NewRegistry(layer, time.Hour), layer
}

var pgDesc = domain.ConnectionDescriptor{
	Kind:     domain.KindPostgres,
	Server:   "db.internal",
	Database: "shop",
	User:     "app",
	Password: "s3cret",
}

func TestRegistry_CreateResolve(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	token, err := r.Create(ctx, pgDesc)
	require.NoError(t, err)
	assert.Len(t, token, 36)

	desc, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, pgDesc, *desc)
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r, _ := newRegistry(t)

	for _, token := range []string{"", "not-a-uuid", "00000000-0000-0000-0000-000000000000", "x:y"} {
		_, err := r.Resolve(context.Background(), token)
		assert.True(t, apperrors.IsSessionNotFound(err), token)
	}
}

func TestRegistry_DestroyLeavesDerivedCache(t *testing.T) {
	r, layer := newRegistry(t)
	ctx := context.Background()

	token, err := r.Create(ctx, pgDesc)
	require.NoError(t, err)
	require.NoError(t, layer.Set(ctx, cache.TablesKey(token), []string{"users"}, time.Hour))

	ok, err := r.Destroy(ctx, token)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = r.Resolve(ctx, token)
	assert.True(t, apperrors.IsSessionNotFound(err))

	var tables []string
	assert.True(t, layer.Get(ctx, cache.TablesKey(token), &tables))

	ok, err = r.Destroy(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRegistry_Refresh(t *testing.T) {
	r, _ := newRegistry(t)
	ctx := context.Background()

	token, err := r.Create(ctx, pgDesc)
	require.NoError(t, err)

	updated := pgDesc
	updated.Database = "analytics"
	require.NoError(t, r.Refresh(ctx, token, updated))

	desc, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "analytics", desc.Database)
}

func TestRegistry_ListAndReap(t *testing.T) {
	r, layer := newRegistry(t)
	ctx := context.Background()

	live, err := r.Create(ctx, pgDesc)
	require.NoError(t, err)
	dead, err := r.Create(ctx, pgDesc)
	require.NoError(t, err)

	for _, sid := range []string{live, dead} {
		require.NoError(t, layer.Set(ctx, cache.TablesKey(sid), []string{"users"}, time.Hour))
		require.NoError(t, layer.Set(ctx, cache.CountKey(sid, "users"), 3, time.Hour))
	}

	tokens, err := r.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{live, dead}, tokens)

	_, err = r.Destroy(ctx, dead)
	require.NoError(t, err)

	n, err := r.Reap(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	remaining, err := layer.CountPrefix(ctx, cache.SessionPrefix(dead))
	require.NoError(t, err)
	assert.Zero(t, remaining)

	remaining, err = layer.CountPrefix(ctx, cache.SessionPrefix(live))
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestRegistry_LifetimeExtendedOnlyByRefresh(t *testing.T) {
	const ttl = 300 * time.Millisecond
	tests := []struct {
		name      string
		touch     func(r *Registry, token string) error
		wantAlive bool
	}{
		{
			name: "resolve keeps the original deadline",
			touch: func(r *Registry, token string) error {
				_, err := r.Resolve(context.Background(), token)
				return err
			},
			wantAlive: false,
		},
		{
			name: "refresh restarts the deadline",
			touch: func(r *Registry, token string) error {
				return r.Refresh(context.Background(), token, pgDesc)
			},
			wantAlive: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := cache.NewMemoryStore()
			t.Cleanup(func() { _ = store.Close() })
			r := NewRegistry(cache.NewLayer(store), ttl)

			token, err := r.Create(context.Background(), pgDesc)
			require.NoError(t, err)

			time.Sleep(ttl / 2)
			require.NoError(t, tt.touch(r, token))
			time.Sleep(ttl/2 + ttl/4)

			_, err = r.Resolve(context.Background(), token)
			if tt.wantAlive {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperrors.IsSessionNotFound(err))
			}
		})
	}
}
