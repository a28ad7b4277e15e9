package fanout

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/resilientfanout/observe"
	"github.com/jonwraymond/resilientfanout/outcome"
	"github.com/jonwraymond/resilientfanout/publisher"
)

type fakePublisher struct {
	delay    time.Duration
	failEach int // fail every Nth call (0 = never fail)
	panicAt  int // panic on this 1-indexed call (0 = never)
	calls    int32
}

func (f *fakePublisher) Publish(ctx context.Context, msg publisher.Message) outcome.Outcome[publisher.MessageId] {
	n := atomic.AddInt32(&f.calls, 1)
	if f.panicAt != 0 && int(n) == f.panicAt {
		panic("simulated publish panic")
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.failEach != 0 && int(n)%f.failEach == 0 {
		return outcome.Failure[publisher.MessageId](outcome.ServiceUnavailable, errors.New("boom"), "simulated failure")
	}
	return outcome.Success(publisher.MessageId("id"))
}

func (f *fakePublisher) IsHealthy(context.Context) bool { return true }

func testLogger() observe.Logger {
	obs, _ := observe.NewObserver(context.Background(), observe.Config{ServiceName: "fanout-test"})
	return obs.Logger()
}

func makeMessages(n int) []publisher.Message {
	msgs := make([]publisher.Message, n)
	for i := range msgs {
		msgs[i] = publisher.Message{Body: "msg"}
	}
	return msgs
}

func TestWorkerCount(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want int
	}{
		{"empty", 0, 1},
		{"below divisor", 50, 1},
		{"exactly one unit", 100, 1},
		{"several units", 350, 3},
		{"clamped at max", 5000, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := workerCount(tt.n); got != tt.want {
				t.Errorf("workerCount(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestFanOutEngine_Run_EmptyBatch(t *testing.T) {
	pub := &fakePublisher{}
	engine := NewFanOutEngine(pub, observe.NewNoopInstruments(), testLogger())

	stats := engine.Run(context.Background(), nil)
	if stats != (PublishStats{}) {
		t.Errorf("stats = %+v, want zero value", stats)
	}
	if pub.calls != 0 {
		t.Errorf("calls = %d, want 0", pub.calls)
	}
}

func TestFanOutEngine_Run_AllSucceed(t *testing.T) {
	pub := &fakePublisher{}
	engine := NewFanOutEngine(pub, observe.NewNoopInstruments(), testLogger())

	stats := engine.Run(context.Background(), makeMessages(250))
	if stats.SuccessCount != 250 {
		t.Errorf("SuccessCount = %d, want 250", stats.SuccessCount)
	}
	if stats.FailureCount != 0 {
		t.Errorf("FailureCount = %d, want 0", stats.FailureCount)
	}
}

func TestFanOutEngine_Run_CountsFailures(t *testing.T) {
	pub := &fakePublisher{failEach: 3}
	engine := NewFanOutEngine(pub, observe.NewNoopInstruments(), testLogger())

	stats := engine.Run(context.Background(), makeMessages(30))
	if stats.SuccessCount+stats.FailureCount != 30 {
		t.Errorf("total = %d, want 30", stats.SuccessCount+stats.FailureCount)
	}
	if stats.FailureCount != 10 {
		t.Errorf("FailureCount = %d, want 10", stats.FailureCount)
	}
}

func TestFanOutEngine_Run_RecoversFromPanic(t *testing.T) {
	pub := &fakePublisher{panicAt: 5}
	engine := NewFanOutEngine(pub, observe.NewNoopInstruments(), testLogger())

	stats := engine.Run(context.Background(), makeMessages(10))
	if stats.SuccessCount+stats.FailureCount != 10 {
		t.Errorf("total = %d, want 10 (panic must be counted, not crash the run)", stats.SuccessCount+stats.FailureCount)
	}
	if stats.FailureCount < 1 {
		t.Error("expected at least one failure from the recovered panic")
	}
}

func TestFanOutEngine_Run_RespectsCancellation(t *testing.T) {
	pub := &fakePublisher{delay: 20 * time.Millisecond}
	engine := NewFanOutEngine(pub, observe.NewNoopInstruments(), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	stats := engine.Run(ctx, makeMessages(200))
	if stats.SuccessCount+stats.FailureCount >= 200 {
		t.Error("expected cancellation to cut the run short of processing every message")
	}
}
