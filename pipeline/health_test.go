package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/resilientfanout/health"
)

func TestHealthChecker_CheckAll(t *testing.T) {
	tests := []struct {
		name        string
		pubHealthy  bool
		readyErr    error
		wantOverall health.Status
	}{
		{"all healthy", true, nil, health.StatusHealthy},
		{"publisher unhealthy", false, nil, health.StatusUnhealthy},
		{"data source not ready", true, errors.New("db down"), health.StatusUnhealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakeMessagePublisher{healthy: tt.pubHealthy}
			ds := &fakeDataSource{readyFn: func(context.Context) error { return tt.readyErr }}
			checker := NewHealthChecker(pub, ds, DefaultHealthBulkheadConfig())

			results, err := checker.CheckAll(context.Background())
			if err != nil {
				t.Fatalf("CheckAll() error = %v", err)
			}
			if got := checker.Aggregator().OverallStatus(results); got != tt.wantOverall {
				t.Errorf("OverallStatus() = %v, want %v", got, tt.wantOverall)
			}
		})
	}
}
