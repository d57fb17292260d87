package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the metric instruments for the image optimizer.
type Metrics struct {
	// HTTP
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter
	// cache engine
	CacheHitsTotal    metric.Int64Counter
	CacheMissesTotal  metric.Int64Counter
	TransformsTotal   metric.Int64Counter
	TransformDuration metric.Float64Histogram
	DedupJoinsTotal   metric.Int64Counter
	// limiter
	RateLimitHitsTotal metric.Int64Counter
}

func NewMetrics(meter metric.Meter) (*Metrics, error) {
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests",
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_requests: %w", err)
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration",
		metric.WithDescription("HTTP request latency in ms"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_request_duration: %w", err)
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of in-flight requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http_active_requests: %w", err)
	}

	cacheHitsTotal, err := meter.Int64Counter(
		"variant_cache_hits",
		metric.WithDescription("Requests satisfied by an existing variant on disk"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create variant_cache_hits: %w", err)
	}

	cacheMissesTotal, err := meter.Int64Counter(
		"variant_cache_misses",
		metric.WithDescription("Requests that required computing a variant"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create variant_cache_misses: %w", err)
	}

	transformsTotal, err := meter.Int64Counter(
		"transforms",
		metric.WithDescription("Transform pipeline executions"),
		metric.WithUnit("{transform}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transforms: %w", err)
	}

	transformDuration, err := meter.Float64Histogram(
		"transform_duration",
		metric.WithDescription("Transform pipeline latency in ms"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transform_duration: %w", err)
	}

	dedupJoinsTotal, err := meter.Int64Counter(
		"dedup_joins",
		metric.WithDescription("Callers that attached to an in-flight computation instead of starting one"),
		metric.WithUnit("{join}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dedup_joins: %w", err)
	}

	rateLimitHitsTotal, err := meter.Int64Counter(
		"rate_limit_hits",
		metric.WithDescription("Number of rate limiter blocked requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate_limit_hits: %w", err)
	}

	return &Metrics{
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,
		CacheHitsTotal:      cacheHitsTotal,
		CacheMissesTotal:    cacheMissesTotal,
		TransformsTotal:     transformsTotal,
		TransformDuration:   transformDuration,
		DedupJoinsTotal:     dedupJoinsTotal,
		RateLimitHitsTotal:  rateLimitHitsTotal,
	}, nil
}
