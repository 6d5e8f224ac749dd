package observability

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type instruments struct {
	adapterOpsTotal    metric.Int64Counter
	adapterOpDuration  metric.Float64Histogram
	paginationAttempts metric.Int64Counter
	cacheLookupsTotal  metric.Int64Counter
	cacheInvalidations metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	m               instruments
)

var (
	cacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescope_cache_lookups_total",
			Help: "Cache lookups by result",
		},
		[]string{"result"},
	)

	cacheInvalidated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescope_cache_invalidated_keys_total",
			Help: "Cache keys removed by write invalidation",
		},
	)

	paginationStrategies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescope_pagination_attempts_total",
			Help: "Pagination strategy attempts by backend, strategy and outcome",
		},
		[]string{"backend", "strategy", "outcome"},
	)
)

func buildMeterProvider(ctx context.Context, cfg Config) (*sdkmetric.MeterProvider, error) {
	if !cfg.Enabled || !cfg.MetricsEnabled {
		return sdkmetric.NewMeterProvider(), nil
	}

	exporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := buildResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
	), nil
}

func initInstruments() {
	instrumentsOnce.Do(func() {
		meter := otel.Meter("tablescope")
		m.adapterOpsTotal, _ = meter.Int64Counter("tablescope.adapter.operations_total")
		m.adapterOpDuration, _ = meter.Float64Histogram("tablescope.adapter.operation_duration_ms")
		m.paginationAttempts, _ = meter.Int64Counter("tablescope.pagination.attempts_total")
		m.cacheLookupsTotal, _ = meter.Int64Counter("tablescope.cache.lookups_total")
		m.cacheInvalidations, _ = meter.Int64Counter("tablescope.cache.invalidated_keys_total")
	})
}

// RecordAdapterOperation counts one adapter call and its latency.
func RecordAdapterOperation(ctx context.Context, backend, operation string, success bool, durationMS float64) {
	initInstruments()
	attrs := metric.WithAttributes(
		attribute.String(AttrBackendKind, backend),
		attribute.String(AttrOperation, operation),
		attribute.Bool("success", success),
	)
	m.adapterOpsTotal.Add(ctx, 1, attrs)
	m.adapterOpDuration.Record(ctx, durationMS, attrs)
}

// RecordPaginationAttempt counts one pagination strategy attempt.
func RecordPaginationAttempt(ctx context.Context, backend, strategy string, success bool) {
	initInstruments()
	outcome := OutcomeFailure
	if success {
		outcome = OutcomeSuccess
	}
	paginationStrategies.WithLabelValues(backend, strategy, outcome).Inc()
	m.paginationAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrBackendKind, backend),
		attribute.String(AttrStrategy, strategy),
		attribute.String(AttrOutcome, outcome),
	))
}

// RecordCacheLookup counts one cache read by result.
func RecordCacheLookup(ctx context.Context, result string) {
	initInstruments()
	cacheLookups.WithLabelValues(result).Inc()
	m.cacheLookupsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrCacheResult, result)))
}

// RecordInvalidation counts keys removed by a write.
func RecordInvalidation(ctx context.Context, keys int64) {
	if keys <= 0 {
		return
	}
	initInstruments()
	cacheInvalidated.Add(float64(keys))
	m.cacheInvalidations.Add(ctx, keys)
}
