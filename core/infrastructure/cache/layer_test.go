package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperterse/tablescope/core/domain/interfaces"
)

type failingStore struct {
	interfaces.CacheStore
	getErr    error
	scanErr   error
	deleteErr error
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.CacheStore.Get(ctx, key)
}

func (f *failingStore) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.CacheStore.ScanPrefix(ctx, prefix)
}

func (f *failingStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	return f.CacheStore.Delete(ctx, keys...)
}

func newTestLayer(t *testing.T) (*Layer, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })
	return NewLayer(store), store
}

func TestLayerRoundTrip(t *testing.T) {
	ctx := context.Background()
	layer, _ := newTestLayer(t)

	require.NoError(t, layer.Set(ctx, "s1:table:users:count", int64(42), time.Minute))

	var count int64
	assert.True(t, layer.Get(ctx, "s1:table:users:count", &count))
	assert.Equal(t, int64(42), count)

	var missing int64
	assert.False(t, layer.Get(ctx, "s1:table:users:nope", &missing))
}

func TestLayerSelfHealsCorruptedPayload(t *testing.T) {
	ctx := context.Background()
	layer, store := newTestLayer(t)

	require.NoError(t, store.Set(ctx, "s1:all_tables", []byte("{not json"), time.Minute))

	var tables []map[string]string
	assert.NotPanics(t, func() {
		assert.False(t, layer.Get(ctx, "s1:all_tables", &tables))
	})

	_, err := store.Get(ctx, "s1:all_tables")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}

func TestLayerReadFaultDegradesToMiss(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	require.NoError(t, store.Set(ctx, "k", []byte(`1`), time.Minute))

	layer := NewLayer(&failingStore{CacheStore: store, getErr: errors.New("connection reset")})
	var v int
	assert.False(t, layer.Get(ctx, "k", &v))
}

func TestDeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	layer, store := newTestLayer(t)

	for _, key := range []string{
		CountKey("s1", "users"),
		RecordsKey("s1", "users", 1, 50),
		RecordKey("s1", "users", "7"),
		CountKey("s1", "users_archive"),
		CountKey("s2", "users"),
		TablesKey("s1"),
	} {
		require.NoError(t, store.Set(ctx, key, []byte(`1`), time.Minute))
	}

	n, err := layer.DeleteByPrefix(ctx, TablePrefix("s1", "users"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	remaining, err := store.ScanPrefix(ctx, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		CountKey("s1", "users_archive"),
		CountKey("s2", "users"),
		TablesKey("s1"),
	}, remaining)
}

func TestDeleteByPrefixBatches(t *testing.T) {
	ctx := context.Background()
	layer, store := newTestLayer(t)

	for i := range 1234 {
		require.NoError(t, store.Set(ctx, RecordKey("s1", "big", strconv.Itoa(i)), []byte(`1`), time.Minute))
	}

	n, err := layer.DeleteByPrefix(ctx, TablePrefix("s1", "big"))
	require.NoError(t, err)
	assert.Equal(t, int64(1234), n)
}

func TestDeleteByPrefixPropagatesFaults(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close()
	require.NoError(t, store.Set(ctx, CountKey("s1", "users"), []byte(`1`), time.Minute))

	_, err := NewLayer(&failingStore{CacheStore: store, scanErr: errors.New("scan failed")}).
		DeleteByPrefix(ctx, TablePrefix("s1", "users"))
	assert.Error(t, err)

	_, err = NewLayer(&failingStore{CacheStore: store, deleteErr: errors.New("del failed")}).
		DeleteByPrefix(ctx, TablePrefix("s1", "users"))
	assert.Error(t, err)
}

func TestLayerStats(t *testing.T) {
	layer, _ := newTestLayer(t)
	stats := layer.Stats(context.Background())
	assert.Equal(t, "memory", stats["backend"])
}

func TestLayerKeepsLargeIntegers(t *testing.T) {
	ctx := context.Background()
	layer, store := newTestLayer(t)

	rows := []map[string]any{{"id": int64(1), "v": int64(9007199254740993)}}
	require.NoError(t, layer.Set(ctx, "s1:table:big:record:1", rows, time.Minute))

	var got []map[string]any
	require.True(t, layer.Get(ctx, "s1:table:big:record:1", &got))
	require.Len(t, got, 1)
	assert.Equal(t, json.Number("9007199254740993"), got[0]["v"])

	out, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":1,"v":9007199254740993}]`, string(out))

	require.NoError(t, store.Set(ctx, "s1:trailing", []byte(`{"a":1} {"b":2}`), time.Minute))
	var m map[string]any
	assert.False(t, layer.Get(ctx, "s1:trailing", &m))
	_, err = store.Get(ctx, "s1:trailing")
	assert.ErrorIs(t, err, interfaces.ErrCacheMiss)
}
