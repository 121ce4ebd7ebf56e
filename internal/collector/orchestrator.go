package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"coinpulse/internal/domain"
	"coinpulse/internal/provider"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// ErrCycleInProgress is returned when RunCycle is called while a previous
// cycle is still between FETCHING and PERSISTING. Cycles are serialized;
// callers skip, they do not queue.
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// IndicatorCalculator computes technical indicator values for the latest
// point of a price series. Pure and deterministic; consumed, not owned.
type IndicatorCalculator interface {
	Compute(assetID string, closes []float64) map[string]float64
}

// Gateway is the persistence side of the pipeline.
type Gateway interface {
	UpsertBatch(ctx context.Context, records []*domain.MergedRecord) []domain.WriteResult
	GetPriceHistory(ctx context.Context, assetID string, limit int) ([]float64, error)
}

// Config carries the orchestrator's knobs; zero values get safe defaults.
type Config struct {
	Priority      []domain.SourceID
	FetchTimeout  time.Duration
	CycleDeadline time.Duration
	HistoryPoints int
}

// Orchestrator drives one collection cycle end to end: fetch from every
// adapter (subject to the governor), merge by priority, score, augment with
// indicators, persist, summarize. It owns CollectionCycle construction and is
// the only writer of cycle state.
type Orchestrator struct {
	tracer     trace.Tracer
	adapters   []provider.Adapter
	governor   *provider.Governor
	scorer     *Scorer
	indicators IndicatorCalculator
	gateway    Gateway
	cfg        Config

	mu        sync.Mutex
	running   bool
	lastCycle *domain.CollectionCycle
}

func NewOrchestrator(
	tracer trace.Tracer,
	adapters []provider.Adapter,
	governor *provider.Governor,
	scorer *Scorer,
	indicators IndicatorCalculator,
	gateway Gateway,
	cfg Config,
) *Orchestrator {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	if cfg.CycleDeadline <= 0 {
		cfg.CycleDeadline = 2 * time.Minute
	}
	if cfg.HistoryPoints <= 0 {
		cfg.HistoryPoints = 200
	}
	if len(cfg.Priority) == 0 {
		for _, a := range adapters {
			cfg.Priority = append(cfg.Priority, a.Source())
		}
	}
	if scorer == nil {
		scorer = NewScorer(DefaultPartialWeight)
	}
	return &Orchestrator{
		tracer:     tracer,
		adapters:   adapters,
		governor:   governor,
		scorer:     scorer,
		indicators: indicators,
		gateway:    gateway,
		cfg:        cfg,
	}
}

// LastCycle returns the most recently finished cycle summary, or nil before
// the first run. The returned cycle is sealed and safe to read concurrently.
func (o *Orchestrator) LastCycle() *domain.CollectionCycle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastCycle
}

type fetchResult struct {
	source domain.SourceID
	quotes []domain.AssetQuote
	status domain.SourceStatus
}

// RunCycle executes one collection cycle for the requested assets. Externally
// caused failures never abort the cycle; they degrade its scores and show up
// in PerSourceStatus. Only the overlap guard returns an error.
func (o *Orchestrator) RunCycle(ctx context.Context, requestedAssets []string) (*domain.CollectionCycle, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrCycleInProgress
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	ctx, span := o.tracer.Start(ctx, "collector.run-cycle")
	defer span.End()

	if len(requestedAssets) == 0 {
		requestedAssets = domain.TrackedAssets
	}
	assets := dedupeAssets(requestedAssets)

	cycle := &domain.CollectionCycle{
		CycleID:         uuid.NewString(),
		State:           domain.CycleStarted,
		StartedAt:       time.Now().UTC(),
		RequestedAssets: assets,
		PerSourceStatus: make(map[domain.SourceID]domain.SourceStatus, len(o.adapters)),
	}

	deadlineCtx, cancel := context.WithTimeout(ctx, o.cfg.CycleDeadline)
	defer cancel()

	// FETCHING: one goroutine per adapter, joined before merging so network
	// arrival order can never affect the output.
	cycle.State = domain.CycleFetching
	results := o.fetchAll(deadlineCtx, assets)

	quotesByAsset := make(map[string][]domain.AssetQuote, len(assets))
	for _, res := range results {
		cycle.PerSourceStatus[res.source] = res.status
		for _, q := range res.quotes {
			quotesByAsset[q.AssetID] = append(quotesByAsset[q.AssetID], q)
		}
	}

	// MERGING
	cycle.State = domain.CycleMerging
	collectedAt := time.Now().UTC().Truncate(time.Second)
	records := make([]*domain.MergedRecord, 0, len(assets))
	for _, assetID := range assets {
		record := Merge(assetID, quotesByAsset[assetID], o.cfg.Priority, collectedAt)
		if record == nil {
			cycle.DroppedAssets = append(cycle.DroppedAssets, assetID)
			continue
		}
		records = append(records, record)
	}

	// SCORING
	cycle.State = domain.CycleScoring
	cycle.CompletenessScore, cycle.ReliabilityScore = o.scorer.Score(assets, len(records), cycle.PerSourceStatus)

	// AUGMENTING: indicators need history; a failed history read only costs
	// that record its indicators.
	cycle.State = domain.CycleAugmenting
	if o.indicators != nil && o.gateway != nil {
		for _, record := range records {
			history, err := o.gateway.GetPriceHistory(ctx, record.AssetID, o.cfg.HistoryPoints)
			if err != nil {
				cycle.Errors = append(cycle.Errors, fmt.Sprintf("history %s: %v", record.AssetID, err))
				continue
			}
			series := append(history, record.PriceUSD)
			record.Indicators = o.indicators.Compute(record.AssetID, series)
		}
	}

	// PERSISTING
	cycle.State = domain.CyclePersisting
	if o.gateway != nil && len(records) > 0 {
		for _, res := range o.gateway.UpsertBatch(ctx, records) {
			if res.Err != nil {
				cycle.Errors = append(cycle.Errors, fmt.Sprintf("upsert %s: %v", res.AssetID, res.Err))
				continue
			}
			cycle.RecordsWritten++
		}
	}

	// FINISHED: seal the cycle.
	cycle.State = domain.CycleFinished
	cycle.FinishedAt = time.Now().UTC()

	o.mu.Lock()
	o.lastCycle = cycle
	o.mu.Unlock()

	log.Printf("cycle %s finished: assets=%d written=%d completeness=%.2f reliability=%.2f",
		cycle.CycleID, len(assets), cycle.RecordsWritten, cycle.CompletenessScore, cycle.ReliabilityScore)

	return cycle, nil
}

// fetchAll fans out one fetch per adapter and waits for every one to settle.
// A governor denial skips the source for this cycle as rate_limited; a cycle
// deadline hit turns still-pending adapters into error outcomes via context.
func (o *Orchestrator) fetchAll(ctx context.Context, assets []string) []fetchResult {
	results := make([]fetchResult, len(o.adapters))
	var wg sync.WaitGroup

	for i, adapter := range o.adapters {
		source := adapter.Source()

		if o.governor != nil {
			if ok, retryAfter := o.governor.Authorize(source); !ok {
				results[i] = fetchResult{source: source, status: domain.StatusRateLimited}
				log.Printf("source %s skipped this cycle, retry in %s", source, retryAfter.Round(time.Millisecond))
				continue
			}
		}

		wg.Add(1)
		go func(i int, adapter provider.Adapter) {
			defer wg.Done()

			callCtx, cancel := context.WithTimeout(ctx, o.cfg.FetchTimeout)
			defer cancel()

			quotes, status := adapter.Fetch(callCtx, assets)
			if callCtx.Err() != nil && status == domain.StatusOK {
				status = domain.StatusError
			}
			if o.governor != nil {
				o.governor.ReportOutcome(adapter.Source(), status)
			}
			results[i] = fetchResult{source: adapter.Source(), quotes: quotes, status: status}
		}(i, adapter)
	}

	wg.Wait()
	return results
}

func dedupeAssets(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, id := range in {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
