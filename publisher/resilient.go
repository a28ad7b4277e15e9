package publisher

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/resilientfanout/cache"
	"github.com/jonwraymond/resilientfanout/observe"
	"github.com/jonwraymond/resilientfanout/outcome"
	"github.com/jonwraymond/resilientfanout/resilience"
)

// MessagePublisher publishes a message and reports its own health.
type MessagePublisher interface {
	Publish(ctx context.Context, msg Message) outcome.Outcome[MessageId]
	IsHealthy(ctx context.Context) bool
}

// Config configures a ResilientPublisher.
type Config struct {
	TopicARN    string
	Credentials CredentialSource

	Breaker resilience.CircuitBreakerConfig
	Retry   resilience.RetryConfig
	Timeout resilience.TimeoutConfig

	// HealthCache and HealthPolicy back IsHealthy's memoization. If
	// HealthCache is nil a 5-second in-memory cache is used.
	HealthCache  cache.Cache
	HealthPolicy cache.Policy
}

// DefaultBreakerConfig opens the circuit after ten consecutive retriable
// failures and allows a single half-open probe after 30 seconds.
func DefaultBreakerConfig() resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{
		MaxFailures:         10,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
		IsFailure: func(err error) bool {
			kind, _ := Categorize(err)
			return kind.Retriable()
		},
	}
}

// DefaultRetryConfig produces sleeps of 200ms, 400ms and 800ms before
// attempts 2, 3 and 4 (three retries after the initial attempt).
func DefaultRetryConfig() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:  4,
		InitialDelay: 200 * time.Millisecond,
		Multiplier:   2,
		Strategy:     resilience.BackoffExponential,
		Jitter:       false,
		RetryIf: func(err error) bool {
			kind, _ := Categorize(err)
			return kind.Retriable()
		},
	}
}

// DefaultTimeoutConfig bounds each physical transport call at 5 seconds.
func DefaultTimeoutConfig() resilience.TimeoutConfig {
	return resilience.TimeoutConfig{Timeout: 5 * time.Second}
}

// ResilientPublisher wraps a Transport with retry, circuit breaking and a
// per-attempt timeout, composed as retry(breaker(timeout(transport))): every
// retry attempt is re-admitted by the breaker, and every attempt the breaker
// admits is itself bounded by the timeout.
//
// resilience.Executor cannot express this shape: it wraps its primitives in
// a fixed inside-out order (timeout, then retry, then circuit breaker, then
// bulkhead, then rate limiter), which for a breaker+retry+timeout
// configuration realizes circuitBreaker(retry(timeout(op))) instead — the
// breaker sees only one outcome per logical call rather than gating every
// attempt. ResilientPublisher nests the three primitives directly to get
// the order it needs.
type ResilientPublisher struct {
	transport   Transport
	topicARN    string
	credentials CredentialSource

	breaker     *resilience.CircuitBreaker
	timeout     *resilience.Timeout
	retryConfig resilience.RetryConfig

	instruments *observe.Instruments
	tracer      observe.Tracer
	logger      observe.Logger

	healthCache  cache.Cache
	healthPolicy cache.Policy
	healthGroup  singleflight.Group
	healthKey    string
}

// NewResilientPublisher builds a ResilientPublisher against transport.
func NewResilientPublisher(transport Transport, obs observe.Observer, instruments *observe.Instruments, cfg Config) *ResilientPublisher {
	breakerCfg := cfg.Breaker
	if breakerCfg.MaxFailures == 0 {
		breakerCfg = DefaultBreakerConfig()
	}
	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = DefaultRetryConfig()
	}
	timeoutCfg := cfg.Timeout
	if timeoutCfg.Timeout == 0 {
		timeoutCfg = DefaultTimeoutConfig()
	}

	healthCache := cfg.HealthCache
	healthPolicy := cfg.HealthPolicy
	if healthCache == nil {
		healthPolicy = cache.Policy{DefaultTTL: 5 * time.Second, MaxTTL: 5 * time.Second}
		healthCache = cache.NewMemoryCache(healthPolicy)
	}

	credentials := cfg.Credentials
	if credentials == nil {
		credentials = StaticCredentialSource{}
	}

	p := &ResilientPublisher{
		transport:    transport,
		topicARN:     cfg.TopicARN,
		credentials:  credentials,
		timeout:      resilience.NewTimeout(timeoutCfg),
		retryConfig:  retryCfg,
		instruments:  instruments,
		tracer:       observe.NewTracer(obs.Tracer()),
		logger:       obs.Logger(),
		healthCache:  healthCache,
		healthPolicy: healthPolicy,
		healthKey:    "publisher:health:" + cfg.TopicARN,
	}

	breakerCfg.OnStateChange = func(_, to resilience.State) {
		p.instruments.RecordCircuitStateChange(context.Background(), to.String())
	}
	p.breaker = resilience.NewCircuitBreaker(breakerCfg)

	return p
}

// Publish attempts to deliver msg, retrying retriable failures through the
// circuit breaker and timeout chain described on ResilientPublisher.
func (p *ResilientPublisher) Publish(ctx context.Context, msg Message) outcome.Outcome[MessageId] {
	ctx, span := p.tracer.StartSpan(ctx, observe.OperationMeta{
		Name: "SnsPublish",
		Attrs: []observe.Field{
			{Key: "messaging.system", Value: "aws_sns"},
			{Key: "messaging.destination", Value: p.topicARN},
			{Key: "sns.message_size", Value: len(msg.Body)},
		},
	})
	start := time.Now()
	p.instruments.PublishAttempts.Add(ctx, 1)

	if strings.TrimSpace(msg.Body) == "" {
		err := errors.New("message cannot be null or empty")
		return p.fail(ctx, span, start, outcome.InvalidInput, err, "message cannot be null or empty")
	}

	cred, err := p.credentials.Credentials(ctx)
	if err != nil {
		return p.fail(ctx, span, start, outcome.AuthorizationFailure, err, "failed to obtain publish credentials")
	}
	if cred.Token != "" {
		msg = withAuthorizationAttribute(msg, cred.Token)
	}

	var msgID MessageId
	retryer := resilience.NewRetry(p.retryerConfig(ctx))

	publishErr := retryer.Execute(ctx, func(ctx context.Context) error {
		return p.breaker.Execute(ctx, func(ctx context.Context) error {
			return p.timeout.Execute(ctx, func(ctx context.Context) error {
				id, err := p.transport.Publish(ctx, p.topicARN, msg)
				if err != nil {
					return err
				}
				msgID = id
				return nil
			})
		})
	})

	if publishErr != nil {
		kind, reason := Categorize(publishErr)
		return p.fail(ctx, span, start, kind, publishErr, reason)
	}

	p.instruments.PublishDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	span.SetAttributes(attribute.String("sns.message_id", string(msgID)))
	p.instruments.PublishSuccesses.Add(ctx, 1)
	p.tracer.EndSpan(span, nil)
	return outcome.Success(msgID)
}

// fail records duration and failure telemetry, logs at warn level, ends the
// span with the error, and returns the categorized Outcome. Used both for
// pre-flight rejections (empty message, credential failure) and for errors
// surfaced by the resilience chain itself.
func (p *ResilientPublisher) fail(ctx context.Context, span trace.Span, start time.Time, kind outcome.ErrorKind, err error, reason string) outcome.Outcome[MessageId] {
	p.instruments.PublishDuration.Record(ctx, float64(time.Since(start).Milliseconds()))
	p.instruments.RecordPublishFailure(ctx, kind.String())
	if errors.Is(err, resilience.ErrTimeout) {
		p.instruments.Timeouts.Add(ctx, 1)
	}
	p.logger.WithOperation(observe.OperationMeta{Name: "SnsPublish"}).Warn(ctx, "publish failed",
		observe.Field{Key: "error.type", Value: kind.String()},
		observe.Field{Key: "error.message", Value: reason},
	)
	p.tracer.EndSpan(span, err)
	return outcome.Failure[MessageId](kind, err, reason)
}

// retryerConfig copies the configured retry policy and attaches an OnRetry
// hook bound to ctx, since resilience.RetryConfig.OnRetry has no ctx
// parameter of its own.
func (p *ResilientPublisher) retryerConfig(ctx context.Context) resilience.RetryConfig {
	cfg := p.retryConfig
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		kind, _ := Categorize(err)
		p.instruments.RecordRetry(ctx, kind.String(), attempt)
	}
	return cfg
}

// IsHealthy probes the topic directly, bypassing retry/breaker/timeout:
// health must reflect transport reachability right now, not the publisher's
// own backoff state. Concurrent callers are coalesced with singleflight and
// the boolean result is cached briefly so a health endpoint hit during an
// incident does not itself hammer the transport.
func (p *ResilientPublisher) IsHealthy(ctx context.Context) bool {
	if cached, ok := p.healthCache.Get(ctx, p.healthKey); ok {
		return len(cached) == 1 && cached[0] == '1'
	}

	v, _, _ := p.healthGroup.Do(p.healthKey, func() (any, error) {
		err := p.transport.DescribeTopic(ctx, p.topicARN)
		healthy := err == nil
		if err != nil {
			p.logger.Warn(ctx, "publisher health probe failed", observe.Field{Key: "error", Value: err.Error()})
		}

		value := []byte("0")
		if healthy {
			value = []byte("1")
		}
		if ttl := p.healthPolicy.EffectiveTTL(0); ttl > 0 {
			_ = p.healthCache.Set(ctx, p.healthKey, value, ttl)
		}
		return healthy, nil
	})

	healthy, _ := v.(bool)
	return healthy
}

// CircuitState reports the breaker's current state ("closed", "open" or
// "half-open") for the admin circuit inspection endpoint.
func (p *ResilientPublisher) CircuitState() string {
	return p.breaker.State().String()
}

// ResetCircuit forces the breaker closed, discarding its failure count. Used
// by the admin circuit-reset endpoint to recover from an incident once the
// downstream topic is confirmed healthy again.
func (p *ResilientPublisher) ResetCircuit() {
	p.breaker.Reset()
}

func withAuthorizationAttribute(msg Message, token string) Message {
	attrs := make(map[string]string, len(msg.Attributes)+1)
	for k, v := range msg.Attributes {
		attrs[k] = v
	}
	attrs["Authorization"] = "Bearer " + token
	msg.Attributes = attrs
	return msg
}

var _ MessagePublisher = (*ResilientPublisher)(nil)
