package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"coinpulse/internal/collector"
	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition never met")
}

type stubCycleRunner struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubCycleRunner) RunCycle(ctx context.Context, assets []string) (*domain.CollectionCycle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.CollectionCycle{CycleID: "c-1", RequestedAssets: assets}, nil
}

func (s *stubCycleRunner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubSink struct {
	mu     sync.Mutex
	cycles []*domain.CollectionCycle
	err    error
}

func (s *stubSink) SaveCycle(ctx context.Context, cycle *domain.CollectionCycle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, cycle)
	return s.err
}

type stubNotifier struct {
	mu     sync.Mutex
	cycles []*domain.CollectionCycle
}

func (s *stubNotifier) NotifyCycle(cycle *domain.CollectionCycle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, cycle)
}

func TestNewCollectorJobInterval(t *testing.T) {
	t.Parallel()

	job := NewCollectorJob(testTracer, &stubCycleRunner{}, nil, nil, nil, 2)
	if job.interval != 2*time.Second {
		t.Fatalf("interval = %v, want 2s", job.interval)
	}
	job = NewCollectorJob(testTracer, &stubCycleRunner{}, nil, nil, nil, 0)
	if job.interval != 300*time.Second {
		t.Fatalf("zero interval should default to 300s, got %v", job.interval)
	}
}

func TestCollectorJobRunsImmediately(t *testing.T) {
	t.Parallel()

	runner := &stubCycleRunner{}
	sink := &stubSink{}
	notify := &stubNotifier{}
	job := NewCollectorJob(testTracer, runner, sink, notify, []string{"bitcoin"}, 3600)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go job.Start(ctx)

	eventually(t, func() bool { return runner.callCount() == 1 })
	eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.cycles) == 1
	})
	eventually(t, func() bool {
		notify.mu.Lock()
		defer notify.mu.Unlock()
		return len(notify.cycles) == 1
	})
}

func TestCollectorJobSkipsOverlap(t *testing.T) {
	t.Parallel()

	runner := &stubCycleRunner{err: collector.ErrCycleInProgress}
	sink := &stubSink{}
	job := NewCollectorJob(testTracer, runner, sink, nil, nil, 3600)

	job.runOnce(context.Background())

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.cycles) != 0 {
		t.Error("a skipped cycle must not be persisted")
	}
}

type stubIngester struct {
	mu    sync.Mutex
	calls int
}

func (s *stubIngester) Ingest(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 0, nil
}

func TestNewsJobRunsImmediately(t *testing.T) {
	t.Parallel()

	ingester := &stubIngester{}
	job := NewNewsJob(testTracer, ingester, 3600)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go job.Start(ctx)

	eventually(t, func() bool {
		ingester.mu.Lock()
		defer ingester.mu.Unlock()
		return ingester.calls == 1
	})
}
