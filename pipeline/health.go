package pipeline

import (
	"context"

	"github.com/jonwraymond/resilientfanout/health"
	"github.com/jonwraymond/resilientfanout/publisher"
	"github.com/jonwraymond/resilientfanout/resilience"
)

// DefaultHealthBulkheadConfig caps concurrent health probe executions so a
// burst of readiness-probe traffic cannot itself overload the data source.
func DefaultHealthBulkheadConfig() resilience.BulkheadConfig {
	return resilience.BulkheadConfig{MaxConcurrent: 5}
}

// HealthChecker builds a health.Aggregator covering the publisher's
// transport reachability and the data source's own readiness, with probe
// concurrency bounded by a bulkhead.
type HealthChecker struct {
	agg      *health.Aggregator
	bulkhead *resilience.Bulkhead
}

// NewHealthChecker registers checkers for pub and dataSource on a fresh
// aggregator.
func NewHealthChecker(pub publisher.MessagePublisher, dataSource DataSource, bulkheadCfg resilience.BulkheadConfig) *HealthChecker {
	if bulkheadCfg.MaxConcurrent <= 0 {
		bulkheadCfg = DefaultHealthBulkheadConfig()
	}

	agg := health.NewAggregator()
	agg.Register("publisher", health.NewCheckerFunc("publisher", func(ctx context.Context) health.Result {
		if pub.IsHealthy(ctx) {
			return health.Healthy("transport reachable")
		}
		return health.Unhealthy("transport unreachable", nil)
	}))
	agg.Register("data_source", health.NewCheckerFunc("data_source", func(ctx context.Context) health.Result {
		if err := dataSource.Ready(ctx); err != nil {
			return health.Unhealthy("data source not ready", err)
		}
		return health.Healthy("data source ready")
	}))

	return &HealthChecker{agg: agg, bulkhead: resilience.NewBulkhead(bulkheadCfg)}
}

// CheckAll runs every registered check, rejecting the call outright if the
// probe bulkhead is already saturated.
func (h *HealthChecker) CheckAll(ctx context.Context) (map[string]health.Result, error) {
	if err := h.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer h.bulkhead.Release()

	return h.agg.CheckAll(ctx), nil
}

// Aggregator exposes the underlying aggregator, e.g. for health.RegisterHandlers.
func (h *HealthChecker) Aggregator() *health.Aggregator {
	return h.agg
}
