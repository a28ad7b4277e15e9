package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

func noopMeter() metric.Meter {
	return noop.NewMeterProvider().Meter("noop")
}

// Instruments holds the named counters and histograms the pipeline emits.
// It is a thin, domain-specific sibling of Metrics: Metrics answers "how did
// this generic operation go", Instruments answers the pipeline's own
// vocabulary of publish attempts, retries, circuit transitions and batch
// throughput that a single generic RecordExecution call cannot express.
type Instruments struct {
	PublishAttempts  metric.Int64Counter
	PublishSuccesses metric.Int64Counter
	PublishFailures  metric.Int64Counter
	Retries          metric.Int64Counter
	Timeouts         metric.Int64Counter
	CircuitStateChg  metric.Int64Counter
	ItemsRetrieved   metric.Int64Counter
	ItemsTransformed metric.Int64Counter

	PublishDuration   metric.Float64Histogram
	TotalProcessingMs metric.Float64Histogram
	BackpressureMs    metric.Float64Histogram
}

// NewInstruments creates the full instrument set against the given meter.
func NewInstruments(meter metric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)

	if in.PublishAttempts, err = meter.Int64Counter("sns_publish_attempts",
		metric.WithDescription("Number of publish attempts started")); err != nil {
		return nil, err
	}
	if in.PublishSuccesses, err = meter.Int64Counter("sns_publish_successes",
		metric.WithDescription("Number of publish attempts that succeeded")); err != nil {
		return nil, err
	}
	if in.PublishFailures, err = meter.Int64Counter("sns_publish_failures",
		metric.WithDescription("Number of publish attempts that terminally failed")); err != nil {
		return nil, err
	}
	if in.Retries, err = meter.Int64Counter("sns_retries",
		metric.WithDescription("Number of retry attempts issued")); err != nil {
		return nil, err
	}
	if in.Timeouts, err = meter.Int64Counter("sns_timeouts",
		metric.WithDescription("Number of publish attempts that timed out")); err != nil {
		return nil, err
	}
	if in.CircuitStateChg, err = meter.Int64Counter("circuit_breaker_state_changes",
		metric.WithDescription("Number of circuit breaker state transitions")); err != nil {
		return nil, err
	}
	if in.ItemsRetrieved, err = meter.Int64Counter("data_items_retrieved",
		metric.WithDescription("Number of records retrieved from the data source")); err != nil {
		return nil, err
	}
	if in.ItemsTransformed, err = meter.Int64Counter("data_items_transformed",
		metric.WithDescription("Number of records transformed into messages")); err != nil {
		return nil, err
	}
	if in.PublishDuration, err = meter.Float64Histogram("sns_publish_duration",
		metric.WithDescription("Publish call duration"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if in.TotalProcessingMs, err = meter.Float64Histogram("total_processing_time",
		metric.WithDescription("Total wall time of a pipeline run"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if in.BackpressureMs, err = meter.Float64Histogram("channel_backpressure_time",
		metric.WithDescription("Accumulated producer wait time against a full channel"), metric.WithUnit("ms")); err != nil {
		return nil, err
	}

	return &in, nil
}

// NewNoopInstruments creates an instrument set backed by a no-op meter, used
// when telemetry is disabled.
func NewNoopInstruments() *Instruments {
	in, err := NewInstruments(noopMeter())
	if err != nil {
		// The no-op meter provider never rejects instrument creation.
		panic(err)
	}
	return in
}

func recordFailure(ctx context.Context, c metric.Int64Counter, errorType string) {
	c.Add(ctx, 1, metric.WithAttributes(attribute.String("error_type", errorType)))
}

// RecordPublishFailure increments the failure counter tagged by error kind.
func (in *Instruments) RecordPublishFailure(ctx context.Context, errorType string) {
	recordFailure(ctx, in.PublishFailures, errorType)
}

// RecordRetry increments the retry counter tagged by error kind and attempt number.
func (in *Instruments) RecordRetry(ctx context.Context, errorType string, attempt int) {
	in.Retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("error_type", errorType),
		attribute.Int("attempt_number", attempt),
	))
}

// RecordCircuitStateChange increments the state-change counter tagged by the new state.
func (in *Instruments) RecordCircuitStateChange(ctx context.Context, state string) {
	in.CircuitStateChg.Add(ctx, 1, metric.WithAttributes(attribute.String("state", state)))
}
