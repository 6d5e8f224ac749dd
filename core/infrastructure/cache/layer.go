package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hyperterse/tablescope/core/domain/interfaces"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/observability"
)

const deleteBatch = 500

// Layer is the typed JSON view over a CacheStore. Reads never fail: store
// faults and corrupted payloads both degrade to a miss. Invalidation returns
// its errors so write paths can refuse to report success.
type Layer struct {
	store interfaces.CacheStore
	log   logging.Logger
}

// NewLayer wraps a store.
func NewLayer(store interfaces.CacheStore) *Layer {
	return &Layer{store: store, log: logging.New("cache")}
}

// Store returns the wrapped store.
func (l *Layer) Store() interfaces.CacheStore {
	return l.store
}

// Get decodes the value at key into dest and reports whether it was found.
// A payload that cannot be decoded is deleted.
func (l *Layer) Get(ctx context.Context, key string, dest any) bool {
	raw, err := l.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, interfaces.ErrCacheMiss) {
			observability.RecordCacheLookup(ctx, observability.CacheMiss)
		} else {
			observability.RecordCacheLookup(ctx, observability.CacheError)
			l.log.Warnf("Cache read failed for %s, treating as miss: %v", key, err)
		}
		return false
	}

	if err := decode(raw, dest); err != nil {
		observability.RecordCacheLookup(ctx, observability.CacheCorrupt)
		l.log.Warnf("Dropping corrupted cache entry %s: %v", key, err)
		if _, delErr := l.store.Delete(ctx, key); delErr != nil {
			l.log.Warnf("Failed to delete corrupted cache entry %s: %v", key, delErr)
		}
		return false
	}

	observability.RecordCacheLookup(ctx, observability.CacheHit)
	return true
}

// decode unmarshals raw into dest keeping numbers as json.Number, so integers
// beyond 2^53 read back exactly. Trailing data counts as corruption.
func decode(raw []byte, dest any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(dest); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// Set encodes value as JSON and stores it with ttl.
func (l *Layer) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value for %s: %w", key, err)
	}
	if err := l.store.Set(ctx, key, raw, ttl); err != nil {
		return fmt.Errorf("store cache value for %s: %w", key, err)
	}
	return nil
}

// Remember is Set for read paths: failures are logged and dropped.
func (l *Layer) Remember(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := l.Set(ctx, key, value, ttl); err != nil {
		l.log.Warnf("Cache write skipped: %v", err)
	}
}

// Delete removes one key and reports whether it existed.
func (l *Layer) Delete(ctx context.Context, key string) (bool, error) {
	n, err := l.store.Delete(ctx, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Keys lists the live keys under prefix.
func (l *Layer) Keys(ctx context.Context, prefix string) ([]string, error) {
	return l.store.ScanPrefix(ctx, prefix)
}

// CountPrefix counts the live keys under prefix.
func (l *Layer) CountPrefix(ctx context.Context, prefix string) (int, error) {
	keys, err := l.store.ScanPrefix(ctx, prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

// DeleteByPrefix collects every key under prefix, then deletes them in
// batches. Keys created after collection survive until the next call.
func (l *Layer) DeleteByPrefix(ctx context.Context, prefix string) (int64, error) {
	keys, err := l.store.ScanPrefix(ctx, prefix)
	if err != nil {
		return 0, fmt.Errorf("scan %s*: %w", prefix, err)
	}

	var deleted int64
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		n, err := l.store.Delete(ctx, keys[start:end]...)
		deleted += n
		if err != nil {
			return deleted, fmt.Errorf("delete %s*: %w", prefix, err)
		}
	}

	if deleted > 0 {
		l.log.Debugf("Invalidated %d cache entries under %s", deleted, prefix)
	}
	return deleted, nil
}

// Ping checks the store is reachable.
func (l *Layer) Ping(ctx context.Context) error {
	return l.store.Ping(ctx)
}

// Stats returns store statistics when the store provides them.
func (l *Layer) Stats(ctx context.Context) map[string]string {
	provider, ok := l.store.(interfaces.CacheStatsProvider)
	if !ok {
		return nil
	}
	stats, err := provider.Stats(ctx)
	if err != nil {
		l.log.Warnf("Cache stats unavailable: %v", err)
		return nil
	}
	return stats
}

// Close closes the store.
func (l *Layer) Close() error {
	return l.store.Close()
}
