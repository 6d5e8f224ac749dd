package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by CacheStore.Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache: miss")

// CacheStore is the shared key-value store with TTL expiry. Implementations
// must be safe for concurrent use.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)

	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes keys and reports how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// ScanPrefix returns every live key starting with prefix.
	ScanPrefix(ctx context.Context, prefix string) ([]string, error)

	Ping(ctx context.Context) error

	Close() error
}

// CacheStatsProvider is implemented by stores that can describe themselves.
type CacheStatsProvider interface {
	Stats(ctx context.Context) (map[string]string, error)
}
