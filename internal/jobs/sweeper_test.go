package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type stubExpirer struct {
	calls atomic.Int64
	swept int64
	err   error
}

func (e *stubExpirer) DeactivateExpired(ctx context.Context) (int64, error) {
	e.calls.Add(1)
	return e.swept, e.err
}

func TestSweeperRunOnce(t *testing.T) {
	expirer := &stubExpirer{swept: 3}
	sweeper := NewSweeper(expirer, time.Minute, nil, nil)

	sweeper.RunOnce(context.Background())

	if got := expirer.calls.Load(); got != 1 {
		t.Errorf("expected 1 sweep, got %d", got)
	}
}

func TestSweeperRecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	sweeper := NewSweeper(&stubExpirer{swept: 2}, time.Minute, m, nil)
	sweeper.RunOnce(context.Background())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := make(map[string]bool)
	for _, family := range families {
		found[family.GetName()] = true
	}
	if !found[MetricBackgroundJobsTotal] {
		t.Errorf("expected %s to be recorded", MetricBackgroundJobsTotal)
	}
	if !found[MetricBackgroundJobsDuration] {
		t.Errorf("expected %s to be recorded", MetricBackgroundJobsDuration)
	}
}

func TestSweeperRecordsFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("failed to register metrics: %v", err)
	}

	sweeper := NewSweeper(&stubExpirer{err: errors.New("connection refused")}, time.Minute, m, nil)
	sweeper.RunOnce(context.Background())

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	var foundErrors bool
	for _, family := range families {
		if family.GetName() == MetricBackgroundJobErrorsTotal {
			foundErrors = true
		}
	}
	if !foundErrors {
		t.Errorf("expected %s to be recorded on failure", MetricBackgroundJobErrorsTotal)
	}
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	expirer := &stubExpirer{}
	sweeper := NewSweeper(expirer, 5*time.Millisecond, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}

	if expirer.calls.Load() < 2 {
		t.Errorf("expected at least 2 sweeps, got %d", expirer.calls.Load())
	}
}

func TestNewSweeperDefaults(t *testing.T) {
	sweeper := NewSweeper(&stubExpirer{}, 0, nil, nil)
	if sweeper.interval != DefaultSweepInterval {
		t.Errorf("expected default interval %v, got %v", DefaultSweepInterval, sweeper.interval)
	}
}

func TestMetricsRegisterTwiceFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := NewMetrics().Register(reg); err == nil {
		t.Error("expected duplicate registration to fail")
	}
}
