package collector

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coinpulse/internal/domain"
	"coinpulse/internal/provider"

	"go.opentelemetry.io/otel/trace"
)

var orchTracer = trace.NewNoopTracerProvider().Tracer("test")

type fakeAdapter struct {
	source domain.SourceID
	quotes []domain.AssetQuote
	status domain.SourceStatus
	delay  time.Duration

	mu    sync.Mutex
	calls int
}

func (f *fakeAdapter) Source() domain.SourceID { return f.source }

func (f *fakeAdapter) Fetch(ctx context.Context, assetIDs []string) ([]domain.AssetQuote, domain.SourceStatus) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, domain.StatusError
		}
	}
	return f.quotes, f.status
}

func (f *fakeAdapter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeGateway struct {
	mu        sync.Mutex
	upserts   [][]*domain.MergedRecord
	failAsset string
	history   map[string][]float64
	histErr   error
}

func (f *fakeGateway) UpsertBatch(ctx context.Context, records []*domain.MergedRecord) []domain.WriteResult {
	f.mu.Lock()
	f.upserts = append(f.upserts, records)
	f.mu.Unlock()
	results := make([]domain.WriteResult, 0, len(records))
	for _, r := range records {
		res := domain.WriteResult{AssetID: r.AssetID, CollectedAt: r.CollectedAt}
		if r.AssetID == f.failAsset {
			res.Err = errors.New("connection reset")
		}
		results = append(results, res)
	}
	return results
}

func (f *fakeGateway) GetPriceHistory(ctx context.Context, assetID string, limit int) ([]float64, error) {
	if f.histErr != nil {
		return nil, f.histErr
	}
	return f.history[assetID], nil
}

type fakeIndicators struct{}

func (fakeIndicators) Compute(assetID string, closes []float64) map[string]float64 {
	return map[string]float64{"points": float64(len(closes))}
}

func quote(asset string, source domain.SourceID, price float64) domain.AssetQuote {
	return domain.AssetQuote{AssetID: asset, SourceID: source, PriceUSD: price, ObservedAt: time.Now().UTC()}
}

func TestRunCycleEndToEnd(t *testing.T) {
	t.Parallel()

	primary := &fakeAdapter{
		source: domain.SourceCoinGecko,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{
			quote("bitcoin", domain.SourceCoinGecko, 97000),
			quote("ethereum", domain.SourceCoinGecko, 3400),
		},
	}
	backup := &fakeAdapter{
		source: domain.SourceCoinPaprika,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{
			quote("bitcoin", domain.SourceCoinPaprika, 96950),
			quote("ethereum", domain.SourceCoinPaprika, 3399),
			quote("dogecoin", domain.SourceCoinPaprika, 0.31),
		},
	}
	down := &fakeAdapter{source: domain.SourceCoinStats, status: domain.StatusError}

	gateway := &fakeGateway{history: map[string][]float64{"bitcoin": {95000, 96000}}}
	orch := NewOrchestrator(orchTracer,
		[]provider.Adapter{primary, backup, down},
		nil, NewScorer(DefaultPartialWeight), fakeIndicators{}, gateway,
		Config{Priority: testPriority},
	)

	cycle, err := orch.RunCycle(context.Background(), []string{"bitcoin", "ethereum", "dogecoin"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if cycle.State != domain.CycleFinished {
		t.Errorf("state = %s, want finished", cycle.State)
	}
	if cycle.FinishedAt.IsZero() {
		t.Error("finished cycle must carry FinishedAt")
	}
	if cycle.RecordsWritten != 3 {
		t.Errorf("records written = %d, want 3", cycle.RecordsWritten)
	}
	if !almostEqual(cycle.CompletenessScore, 1.0) {
		t.Errorf("completeness = %v, want 1.0", cycle.CompletenessScore)
	}
	if !almostEqual(cycle.ReliabilityScore, 2.0/3) {
		t.Errorf("reliability = %v, want 2/3", cycle.ReliabilityScore)
	}
	if got := cycle.PerSourceStatus[domain.SourceCoinStats]; got != domain.StatusError {
		t.Errorf("coinstats status = %s, want error", got)
	}

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if len(gateway.upserts) != 1 {
		t.Fatalf("upsert batches = %d, want 1", len(gateway.upserts))
	}
	for _, record := range gateway.upserts[0] {
		if record.AssetID == "dogecoin" {
			if len(record.ContributingSources) != 1 || record.ContributingSources[0] != domain.SourceCoinPaprika {
				t.Errorf("dogecoin sources = %v, want only coinpaprika", record.ContributingSources)
			}
		}
		if record.AssetID == "bitcoin" {
			if record.PriceUSD != 97000 {
				t.Errorf("bitcoin price = %v, want primary's 97000", record.PriceUSD)
			}
			// Two history points plus the fresh close.
			if record.Indicators["points"] != 3 {
				t.Errorf("bitcoin indicator input points = %v, want 3", record.Indicators["points"])
			}
		}
	}
}

func TestRunCycleDeadlineTurnsPendingSourceIntoError(t *testing.T) {
	t.Parallel()

	fast := &fakeAdapter{
		source: domain.SourceCoinGecko,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{quote("bitcoin", domain.SourceCoinGecko, 97000)},
	}
	stuck := &fakeAdapter{
		source: domain.SourceCoinPaprika,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{quote("bitcoin", domain.SourceCoinPaprika, 96950)},
		delay:  2 * time.Second,
	}

	gateway := &fakeGateway{}
	orch := NewOrchestrator(orchTracer,
		[]provider.Adapter{fast, stuck},
		nil, NewScorer(DefaultPartialWeight), nil, gateway,
		Config{Priority: testPriority, CycleDeadline: 100 * time.Millisecond},
	)

	started := time.Now()
	cycle, err := orch.RunCycle(context.Background(), []string{"bitcoin"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	// The deadline, not the stuck adapter, bounds the cycle.
	if elapsed := time.Since(started); elapsed >= 2*time.Second {
		t.Fatalf("cycle took %s, deadline did not cut the stuck fetch", elapsed)
	}
	if cycle.State != domain.CycleFinished {
		t.Errorf("state = %s, want finished", cycle.State)
	}
	if got := cycle.PerSourceStatus[domain.SourceCoinPaprika]; got != domain.StatusError {
		t.Errorf("stuck source status = %s, want error", got)
	}
	if got := cycle.PerSourceStatus[domain.SourceCoinGecko]; got != domain.StatusOK {
		t.Errorf("fast source status = %s, want ok", got)
	}
	if cycle.RecordsWritten != 1 {
		t.Errorf("records written = %d, want 1 from the fast source", cycle.RecordsWritten)
	}
	if !almostEqual(cycle.ReliabilityScore, 0.5) {
		t.Errorf("reliability = %v, want 0.5", cycle.ReliabilityScore)
	}

	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if len(gateway.upserts) != 1 || len(gateway.upserts[0]) != 1 {
		t.Fatalf("unexpected upserts: %+v", gateway.upserts)
	}
	if got := gateway.upserts[0][0].PriceUSD; got != 97000 {
		t.Errorf("persisted price = %v, want the fast source's 97000", got)
	}
}

func TestRunCycleSerialized(t *testing.T) {
	t.Parallel()

	slow := &fakeAdapter{
		source: domain.SourceCoinGecko,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{quote("bitcoin", domain.SourceCoinGecko, 97000)},
		delay:  200 * time.Millisecond,
	}
	orch := NewOrchestrator(orchTracer, []provider.Adapter{slow}, nil, nil, nil, &fakeGateway{}, Config{})

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		if _, err := orch.RunCycle(context.Background(), []string{"bitcoin"}); err != nil {
			t.Errorf("first cycle: %v", err)
		}
	}()

	// Let the first cycle reach its fetch before probing the guard.
	deadline := time.Now().Add(time.Second)
	for slow.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first cycle never started fetching")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := orch.RunCycle(context.Background(), []string{"bitcoin"}); !errors.Is(err, ErrCycleInProgress) {
		t.Errorf("overlapping cycle error = %v, want ErrCycleInProgress", err)
	}

	<-firstDone
	if _, err := orch.RunCycle(context.Background(), []string{"bitcoin"}); err != nil {
		t.Errorf("cycle after completion: %v", err)
	}
}

func TestRunCycleGovernorDenialSkipsSource(t *testing.T) {
	t.Parallel()

	throttled := &fakeAdapter{
		source: domain.SourceCoinGecko,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{quote("bitcoin", domain.SourceCoinGecko, 97000)},
	}
	open := &fakeAdapter{
		source: domain.SourceCoinPaprika,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{quote("bitcoin", domain.SourceCoinPaprika, 96950)},
	}

	governor := provider.NewGovernor(map[domain.SourceID]provider.SourceBudget{
		domain.SourceCoinGecko: {RequestsPerMinute: 1, BackoffBase: time.Second, BackoffCap: 8 * time.Second},
	})
	// Spend the only token before the cycle runs.
	if ok, _ := governor.Authorize(domain.SourceCoinGecko); !ok {
		t.Fatal("setup: first authorize should pass")
	}

	orch := NewOrchestrator(orchTracer,
		[]provider.Adapter{throttled, open},
		governor, nil, nil, &fakeGateway{},
		Config{Priority: testPriority},
	)

	cycle, err := orch.RunCycle(context.Background(), []string{"bitcoin"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}

	if throttled.callCount() != 0 {
		t.Error("denied source must not be fetched at all")
	}
	if got := cycle.PerSourceStatus[domain.SourceCoinGecko]; got != domain.StatusRateLimited {
		t.Errorf("denied source status = %s, want rate_limited", got)
	}
	if cycle.RecordsWritten != 1 {
		t.Errorf("records written = %d, want 1 via the open source", cycle.RecordsWritten)
	}
}

func TestRunCycleAllSourcesDownFinishesDegraded(t *testing.T) {
	t.Parallel()

	gateway := &fakeGateway{}
	orch := NewOrchestrator(orchTracer,
		[]provider.Adapter{
			&fakeAdapter{source: domain.SourceCoinGecko, status: domain.StatusError},
			&fakeAdapter{source: domain.SourceCoinPaprika, status: domain.StatusRateLimited},
		},
		nil, nil, nil, gateway, Config{},
	)

	cycle, err := orch.RunCycle(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("degraded cycle must finish, got error: %v", err)
	}
	if cycle.State != domain.CycleFinished {
		t.Errorf("state = %s, want finished", cycle.State)
	}
	if cycle.CompletenessScore != 0 || cycle.ReliabilityScore != 0 {
		t.Errorf("scores = (%v, %v), want zeros", cycle.CompletenessScore, cycle.ReliabilityScore)
	}
	if cycle.RecordsWritten != 0 {
		t.Errorf("records written = %d, want 0", cycle.RecordsWritten)
	}
	if len(cycle.DroppedAssets) != 2 {
		t.Errorf("dropped assets = %v, want both requested assets", cycle.DroppedAssets)
	}
	gateway.mu.Lock()
	defer gateway.mu.Unlock()
	if len(gateway.upserts) != 0 {
		t.Error("nothing merged, nothing should reach the gateway")
	}
}

func TestRunCyclePerRecordWriteFailureIsolated(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{
		source: domain.SourceCoinGecko,
		status: domain.StatusOK,
		quotes: []domain.AssetQuote{
			quote("bitcoin", domain.SourceCoinGecko, 97000),
			quote("ethereum", domain.SourceCoinGecko, 3400),
		},
	}
	gateway := &fakeGateway{failAsset: "bitcoin"}
	orch := NewOrchestrator(orchTracer, []provider.Adapter{adapter}, nil, nil, nil, gateway, Config{})

	cycle, err := orch.RunCycle(context.Background(), []string{"bitcoin", "ethereum"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if cycle.RecordsWritten != 1 {
		t.Errorf("records written = %d, want the surviving record only", cycle.RecordsWritten)
	}
	if len(cycle.Errors) != 1 {
		t.Errorf("cycle errors = %v, want one upsert failure", cycle.Errors)
	}
}

func TestRunCycleLastCycleReflectsFinishedRun(t *testing.T) {
	t.Parallel()

	orch := NewOrchestrator(orchTracer,
		[]provider.Adapter{&fakeAdapter{
			source: domain.SourceCoinGecko,
			status: domain.StatusOK,
			quotes: []domain.AssetQuote{quote("bitcoin", domain.SourceCoinGecko, 97000)},
		}},
		nil, nil, nil, &fakeGateway{}, Config{},
	)

	if orch.LastCycle() != nil {
		t.Error("LastCycle before any run should be nil")
	}

	first, err := orch.RunCycle(context.Background(), []string{"bitcoin"})
	if err != nil {
		t.Fatalf("RunCycle: %v", err)
	}
	if got := orch.LastCycle(); got == nil || got.CycleID != first.CycleID {
		t.Errorf("LastCycle = %+v, want cycle %s", got, first.CycleID)
	}

	second, err := orch.RunCycle(context.Background(), nil)
	if err != nil {
		t.Fatalf("second RunCycle: %v", err)
	}
	if second.CycleID == first.CycleID {
		t.Error("each cycle needs a fresh id")
	}
	if len(second.RequestedAssets) != len(domain.TrackedAssets) {
		t.Errorf("empty request should default to tracked assets, got %v", second.RequestedAssets)
	}
	if got := orch.LastCycle(); got.CycleID != second.CycleID {
		t.Errorf("LastCycle = %s, want most recent %s", got.CycleID, second.CycleID)
	}
}
