package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/resilientfanout/fanout"
	"github.com/jonwraymond/resilientfanout/observe"
	"github.com/jonwraymond/resilientfanout/publisher"
	"github.com/jonwraymond/resilientfanout/resilience"
)

// Config configures a Driver's resilience knobs. A zero Config applies
// sensible defaults.
type Config struct {
	// RateLimit throttles page fetches against the data source.
	RateLimit resilience.RateLimiterConfig
}

// DefaultRateLimiterConfig throttles fetches to 10/s with a burst of 5,
// waiting rather than failing when the limit is hit.
func DefaultRateLimiterConfig() resilience.RateLimiterConfig {
	return resilience.RateLimiterConfig{
		Rate:        10,
		Burst:       5,
		WaitOnLimit: true,
		MaxWait:     5 * time.Second,
	}
}

// Driver orchestrates one full run of the pipeline: page through the
// DataSource, transform each record, and fan the resulting messages out to
// the publisher.
type Driver struct {
	dataSource  DataSource
	transformer Transformer
	engine      *fanout.FanOutEngine
	limiter     *resilience.RateLimiter
	instruments *observe.Instruments
	tracer      observe.Tracer
	logger      observe.Logger
}

// NewDriver builds a Driver. obs supplies tracing and logging; instruments
// records pipeline-level counters and histograms.
func NewDriver(dataSource DataSource, transformer Transformer, engine *fanout.FanOutEngine, obs observe.Observer, instruments *observe.Instruments, cfg Config) *Driver {
	rlCfg := cfg.RateLimit
	if rlCfg.Rate <= 0 {
		rlCfg = DefaultRateLimiterConfig()
	}

	return &Driver{
		dataSource:  dataSource,
		transformer: transformer,
		engine:      engine,
		limiter:     resilience.NewRateLimiter(rlCfg),
		instruments: instruments,
		tracer:      observe.NewTracer(obs.Tracer()),
		logger:      obs.Logger(),
	}
}

// Run fetches every page from the data source, transforms each record, and
// publishes the resulting messages, stopping at the first page fetch or
// transform error or when the data source reports no further pages.
func (d *Driver) Run(ctx context.Context) error {
	start := time.Now()
	ctx, span := d.tracer.StartSpan(ctx, observe.OperationMeta{Name: "ProcessAndPublishData"})
	var runErr error
	defer func() {
		d.instruments.TotalProcessingMs.Record(ctx, float64(time.Since(start).Milliseconds()))
		d.tracer.EndSpan(span, runErr)
	}()

	pageToken := ""
	for {
		if err := d.limiter.Wait(ctx); err != nil {
			runErr = fmt.Errorf("pipeline: rate limiter wait: %w", err)
			return runErr
		}

		page, err := d.fetchPage(ctx, pageToken)
		if err != nil {
			runErr = err
			return runErr
		}

		messages, err := d.transformPage(ctx, page.Records)
		if err != nil {
			runErr = err
			return runErr
		}

		if len(messages) > 0 {
			stats := d.engine.Run(ctx, messages)
			d.logger.Info(ctx, "published page",
				observe.Field{Key: "success_count", Value: stats.SuccessCount},
				observe.Field{Key: "failure_count", Value: stats.FailureCount},
			)
		}

		if page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

func (d *Driver) fetchPage(ctx context.Context, pageToken string) (Page, error) {
	ctx, span := d.tracer.StartSpan(ctx, observe.OperationMeta{Name: "DatabaseQuery",
		Attrs: []observe.Field{{Key: "page_token", Value: pageToken}},
	})
	page, err := d.dataSource.Fetch(ctx, pageToken)
	d.tracer.EndSpan(span, err)
	if err != nil {
		d.logger.Error(ctx, "fetch page failed", observe.Field{Key: "error", Value: err.Error()})
		return Page{}, fmt.Errorf("pipeline: fetch page: %w", err)
	}
	d.instruments.ItemsRetrieved.Add(ctx, int64(len(page.Records)))
	return page, nil
}

func (d *Driver) transformPage(ctx context.Context, records []Record) ([]publisher.Message, error) {
	ctx, span := d.tracer.StartSpan(ctx, observe.OperationMeta{Name: "TransformData",
		Attrs: []observe.Field{{Key: "record_count", Value: len(records)}},
	})

	messages := make([]publisher.Message, 0, len(records))
	for _, record := range records {
		msg, err := d.transformer.Transform(record)
		if err != nil {
			d.tracer.EndSpan(span, err)
			d.logger.Error(ctx, "transform record failed",
				observe.Field{Key: "record_id", Value: record.ID},
				observe.Field{Key: "error", Value: err.Error()},
			)
			return nil, fmt.Errorf("pipeline: transform record %q: %w", record.ID, err)
		}
		messages = append(messages, msg)
	}

	d.instruments.ItemsTransformed.Add(ctx, int64(len(messages)))
	d.tracer.EndSpan(span, nil)
	return messages, nil
}
