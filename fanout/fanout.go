package fanout

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/resilientfanout/observe"
	"github.com/jonwraymond/resilientfanout/publisher"
)

const (
	minWorkers    = 1
	maxWorkers    = 20
	workerDivisor = 100

	// channelCapacity bounds the in-flight message buffer between the
	// producer and the worker pool.
	channelCapacity = 1000

	// backpressureSampleThreshold is the minimum producer wait against a
	// full channel worth recording; sub-threshold waits are noise.
	backpressureSampleThreshold = 5 * time.Millisecond
)

// PublishStats summarizes a single FanOutEngine.Run call.
type PublishStats struct {
	SuccessCount   int
	FailureCount   int
	BackpressureMs float64
}

// FanOutEngine publishes a batch of messages concurrently across a sized
// worker pool, feeding a bounded channel so a slow publisher applies
// backpressure to the producer instead of the pool growing unbounded.
type FanOutEngine struct {
	publisher   publisher.MessagePublisher
	instruments *observe.Instruments
	logger      observe.Logger
}

// NewFanOutEngine builds a FanOutEngine publishing through pub.
func NewFanOutEngine(pub publisher.MessagePublisher, instruments *observe.Instruments, logger observe.Logger) *FanOutEngine {
	return &FanOutEngine{publisher: pub, instruments: instruments, logger: logger}
}

// workerCount sizes the pool to one worker per 100 messages, clamped to
// [1, 20].
func workerCount(messageCount int) int {
	w := messageCount / workerDivisor
	if w < minWorkers {
		w = minWorkers
	}
	if w > maxWorkers {
		w = maxWorkers
	}
	return w
}

// Run publishes the messages in messages and returns aggregate stats. An
// empty batch starts no workers and returns the zero PublishStats. Once ctx
// is done the producer can stop enqueueing before the last message; messages
// already queued are still published, so the counts can total less than
// len(messages).
func (e *FanOutEngine) Run(ctx context.Context, messages []publisher.Message) PublishStats {
	if len(messages) == 0 {
		return PublishStats{}
	}

	workers := workerCount(len(messages))
	ch := make(chan publisher.Message, channelCapacity)

	var successCount, failureCount int64
	var backpressureNs int64

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for msg := range ch {
				e.publishOne(gctx, msg, &successCount, &failureCount)
			}
			return nil
		})
	}

producer:
	for _, msg := range messages {
		waitStart := time.Now()
		select {
		case ch <- msg:
		case <-ctx.Done():
			break producer
		}

		if waited := time.Since(waitStart); waited > backpressureSampleThreshold {
			atomic.AddInt64(&backpressureNs, int64(waited))
			e.instruments.BackpressureMs.Record(ctx, float64(waited.Milliseconds()))
		}
	}
	close(ch)
	_ = g.Wait()

	return PublishStats{
		SuccessCount:   int(atomic.LoadInt64(&successCount)),
		FailureCount:   int(atomic.LoadInt64(&failureCount)),
		BackpressureMs: float64(atomic.LoadInt64(&backpressureNs)) / float64(time.Millisecond),
	}
}

// publishOne publishes a single message, recovering from any panic raised
// by the underlying publisher so one bad message cannot take down a worker.
func (e *FanOutEngine) publishOne(ctx context.Context, msg publisher.Message, successCount, failureCount *int64) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(failureCount, 1)
			e.logger.Error(ctx, "publish worker recovered from panic",
				observe.Field{Key: "panic", Value: fmt.Sprintf("%v", r)})
		}
	}()

	out := e.publisher.Publish(ctx, msg)
	if out.IsSuccess() {
		atomic.AddInt64(successCount, 1)
		return
	}
	atomic.AddInt64(failureCount, 1)
}
