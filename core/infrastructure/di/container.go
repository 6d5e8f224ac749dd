package di

import (
	"context"
	"fmt"

	"github.com/hyperterse/tablescope/core/application/browser"
	"github.com/hyperterse/tablescope/core/application/session"
	"github.com/hyperterse/tablescope/core/config"
	"github.com/hyperterse/tablescope/core/domain/interfaces"
	"github.com/hyperterse/tablescope/core/infrastructure/adapters"
	"github.com/hyperterse/tablescope/core/infrastructure/cache"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	"github.com/hyperterse/tablescope/core/infrastructure/transport/http/middleware"
)

// Container holds all dependencies
type Container struct {
	Config      *config.Config
	Store       interfaces.CacheStore
	Cache       *cache.Layer
	Sessions    *session.Registry
	Browser     interfaces.BrowserService
	RateLimiter middleware.RateLimiter
}

// NewContainer wires the cache store, session registry and browser service
// from cfg. The store is the only long-lived resource; adapters are opened
// per request.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	log := logging.New("di")

	store, limiter, err := newStore(ctx, cfg.Cache)
	if err != nil {
		return nil, err
	}
	log.Infof("Cache backend: %s", cfg.Cache.Backend)

	layer := cache.NewLayer(store)
	ttls := ResolveTTLs(cfg.Cache.TTL)
	sessions := session.NewRegistry(layer, ttls.Connection)
	opener := adapters.Opener(adapters.Options{
		ConnectTimeout: cfg.Adapters.ConnectTimeout,
		QueryLogging:   cfg.Adapters.QueryLogging,
	})

	return &Container{
		Config:      cfg,
		Store:       store,
		Cache:       layer,
		Sessions:    sessions,
		Browser:     browser.NewService(sessions, layer, opener, ttls),
		RateLimiter: limiter,
	}, nil
}

func newStore(ctx context.Context, cfg config.CacheConfig) (interfaces.CacheStore, middleware.RateLimiter, error) {
	switch cfg.Backend {
	case config.CacheBackendMemory:
		return cache.NewMemoryStore(), nil, nil
	case config.CacheBackendRedis, "":
		store, err := cache.NewRedisStore(ctx, cache.RedisConfig{
			URL:       cfg.Redis.URL,
			Addr:      cfg.Redis.Addr(),
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("cache store: %w", err)
		}
		limiter := middleware.NewRedisRateLimiter(store.Client(), cfg.Redis.KeyPrefix+"ratelimit:")
		return store, limiter, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", cfg.Backend)
	}
}

// ResolveTTLs overlays the configured lifetimes on the defaults.
func ResolveTTLs(c config.TTLConfig) cache.TTLs {
	ttl := cache.DefaultTTLs()
	if c.Connection > 0 {
		ttl.Connection = c.Connection
	}
	if c.Tables > 0 {
		ttl.Tables = c.Tables
	}
	if c.Schema > 0 {
		ttl.Schema = c.Schema
	}
	if c.Count > 0 {
		ttl.Count = c.Count
	}
	if c.Records > 0 {
		ttl.Records = c.Records
	}
	if c.Record > 0 {
		ttl.Record = c.Record
	}
	if c.Preview > 0 {
		ttl.Preview = c.Preview
	}
	return ttl
}

// Close closes all resources
func (c *Container) Close() error {
	if c.Cache != nil {
		return c.Cache.Close()
	}
	return nil
}
