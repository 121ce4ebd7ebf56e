package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"coinpulse/internal/domain"
)

type priceKey struct {
	assetID     string
	collectedAt time.Time
}

// MemoryPriceRepository is the in-process gateway used when no DATABASE_URL
// is configured. Same idempotency contract as the Postgres one.
type MemoryPriceRepository struct {
	mu      sync.RWMutex
	records map[priceKey]*domain.MergedRecord
	cycles  map[string]*domain.CollectionCycle
}

func NewMemoryPriceRepository() *MemoryPriceRepository {
	return &MemoryPriceRepository{
		records: make(map[priceKey]*domain.MergedRecord),
		cycles:  make(map[string]*domain.CollectionCycle),
	}
}

func (r *MemoryPriceRepository) RunMigrations(ctx context.Context) error { return nil }

func (r *MemoryPriceRepository) Upsert(ctx context.Context, record *domain.MergedRecord) domain.WriteResult {
	return r.UpsertBatch(ctx, []*domain.MergedRecord{record})[0]
}

func (r *MemoryPriceRepository) UpsertBatch(ctx context.Context, records []*domain.MergedRecord) []domain.WriteResult {
	if len(records) == 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	results := make([]domain.WriteResult, 0, len(records))
	for _, rec := range records {
		clone := *rec
		r.records[priceKey{rec.AssetID, rec.CollectedAt}] = &clone
		results = append(results, domain.WriteResult{AssetID: rec.AssetID, CollectedAt: rec.CollectedAt})
	}
	return results
}

func (r *MemoryPriceRepository) GetPriceHistory(ctx context.Context, assetID string, limit int) ([]float64, error) {
	records, err := r.GetRecords(ctx, assetID, time.Time{}, time.Now().Add(time.Hour), 0)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	closes := make([]float64, len(records))
	for i, rec := range records {
		closes[i] = rec.PriceUSD
	}
	return closes, nil
}

func (r *MemoryPriceRepository) GetLatest(ctx context.Context, assetIDs []string) ([]*domain.MergedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	latest := make(map[string]*domain.MergedRecord, len(assetIDs))
	for key, rec := range r.records {
		cur, ok := latest[key.assetID]
		if !ok || key.collectedAt.After(cur.CollectedAt) {
			latest[key.assetID] = rec
		}
	}

	var out []*domain.MergedRecord
	for _, id := range assetIDs {
		if rec, ok := latest[id]; ok {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *MemoryPriceRepository) GetRecords(ctx context.Context, assetID string, from, to time.Time, limit int) ([]*domain.MergedRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.MergedRecord
	for key, rec := range r.records {
		if key.assetID != assetID {
			continue
		}
		if key.collectedAt.Before(from) || key.collectedAt.After(to) {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectedAt.Before(out[j].CollectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryPriceRepository) SaveCycle(ctx context.Context, cycle *domain.CollectionCycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cycles[cycle.CycleID]; !exists {
		clone := *cycle
		r.cycles[cycle.CycleID] = &clone
	}
	return nil
}

// Len reports how many distinct (asset, collected_at) rows are stored.
func (r *MemoryPriceRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}
