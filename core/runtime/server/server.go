package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperterse/tablescope/core/config"
	"github.com/hyperterse/tablescope/core/infrastructure/di"
	"github.com/hyperterse/tablescope/core/infrastructure/logging"
	httptransport "github.com/hyperterse/tablescope/core/infrastructure/transport/http"
	"github.com/hyperterse/tablescope/core/observability"
)

// Runtime owns the HTTP server, the session reaper and the optional config
// watcher for one process.
type Runtime struct {
	cfg         *config.Config
	container   *di.Container
	http        *httptransport.Server
	version     string
	watchConfig bool
}

type RuntimeOption func(*Runtime)

// WithConfigWatch reapplies logging settings whenever the config file changes.
func WithConfigWatch(enabled bool) RuntimeOption {
	return func(r *Runtime) {
		r.watchConfig = enabled
	}
}

// NewRuntime builds the dependency container and HTTP server from cfg.
func NewRuntime(ctx context.Context, cfg *config.Config, version string, opts ...RuntimeOption) (*Runtime, error) {
	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	srv := httptransport.NewServer(httptransport.Options{
		Port:        cfg.Server.Port,
		CORSOrigins: cfg.Server.CORSOrigins,
		RateLimiter: container.RateLimiter,
		RateLimit:   cfg.Server.RateLimit,
		RateWindow:  cfg.Server.RateWindow,
	})
	httptransport.RegisterRoutes(srv.Router(), container.Browser, cfg.Server.CookieMaxAge, version)

	r := &Runtime{
		cfg:       cfg,
		container: container,
		http:      srv,
		version:   version,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Container exposes the wired dependencies.
func (r *Runtime) Container() *di.Container {
	return r.container
}

// Start runs until SIGINT or SIGTERM.
func (r *Runtime) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Run(ctx)
}

// Run serves until ctx is cancelled or a component fails, then releases the
// cache store and flushes telemetry.
func (r *Runtime) Run(ctx context.Context) error {
	log := logging.New("runtime")

	providers, err := observability.Setup(ctx, r.version)
	if err != nil {
		log.Warnf("OpenTelemetry disabled: %v", err)
	} else if otelCfg := observability.ActiveConfig(); otelCfg.Enabled {
		log.Infof("Exporting telemetry to %s", otelCfg.OTLPEndpoint)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.http.Run(gctx)
	})
	if r.cfg.Server.ReapInterval > 0 {
		g.Go(func() error {
			r.reapLoop(gctx, r.cfg.Server.ReapInterval)
			return nil
		})
	}
	if r.watchConfig && r.cfg.Path != "" {
		g.Go(func() error {
			return config.Watch(gctx, r.cfg.Path, config.ApplyLogging)
		})
	}

	runErr := g.Wait()
	log.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(runErr, r.container.Close(), providers.Shutdown(shutdownCtx))
}

// reapLoop clears cache namespaces left behind by expired sessions.
func (r *Runtime) reapLoop(ctx context.Context, every time.Duration) {
	log := logging.New("runtime:reaper")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.container.Browser.Reap(ctx); err != nil {
				log.Warnf("Reap failed: %v", err)
			}
		}
	}
}
