package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"coinpulse/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

const (
	latestCacheTTL    = 90 * time.Second
	lastCycleCacheTTL = 30 * time.Minute
)

// PriceStore is the read side of the persistence gateway.
type PriceStore interface {
	GetLatest(ctx context.Context, assetIDs []string) ([]*domain.MergedRecord, error)
	GetRecords(ctx context.Context, assetID string, from, to time.Time, limit int) ([]*domain.MergedRecord, error)
}

// CycleRunner is the slice of the orchestrator the service needs.
type CycleRunner interface {
	RunCycle(ctx context.Context, requestedAssets []string) (*domain.CollectionCycle, error)
	LastCycle() *domain.CollectionCycle
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// MarketService is the read/trigger facade over the collection pipeline:
// cached latest records, history queries, and on-demand cycle runs.
type MarketService struct {
	tracer trace.Tracer
	store  PriceStore
	runner CycleRunner
	redis  RedisClient
}

func NewMarketService(tracer trace.Tracer, store PriceStore, runner CycleRunner, redisClient RedisClient) *MarketService {
	return &MarketService{tracer: tracer, store: store, runner: runner, redis: redisClient}
}

// GetLatestPrices returns the newest merged record per tracked asset,
// cache-aside through Redis.
func (s *MarketService) GetLatestPrices(ctx context.Context, assetIDs []string) ([]*domain.MergedRecord, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-latest-prices")
	defer span.End()

	if len(assetIDs) == 0 {
		assetIDs = domain.TrackedAssets
	}

	var records []*domain.MergedRecord
	var missing []string
	for _, id := range assetIDs {
		if !domain.IsTracked(id) {
			return nil, fmt.Errorf("unsupported asset: %s", id)
		}
		if s.redis != nil {
			if cached := s.getLatestCache(ctx, id); cached != nil {
				records = append(records, cached)
				continue
			}
		}
		missing = append(missing, id)
	}

	if len(missing) > 0 {
		fresh, err := s.store.GetLatest(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, rec := range fresh {
			if s.redis != nil {
				if err := s.setLatestCache(ctx, rec); err != nil {
					log.Printf("redis cache write error for %s: %v", rec.AssetID, err)
				}
			}
			records = append(records, rec)
		}
	}

	return records, nil
}

// GetLatestPrice returns one asset's newest merged record.
func (s *MarketService) GetLatestPrice(ctx context.Context, assetID string) (*domain.MergedRecord, error) {
	records, err := s.GetLatestPrices(ctx, []string{assetID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no data collected yet for %s", assetID)
	}
	return records[0], nil
}

// GetHistory returns one asset's records in a time range, oldest first.
func (s *MarketService) GetHistory(ctx context.Context, assetID string, from, to time.Time, limit int) ([]*domain.MergedRecord, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.get-history")
	defer span.End()

	if !domain.IsTracked(assetID) {
		return nil, fmt.Errorf("unsupported asset: %s", assetID)
	}
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	return s.store.GetRecords(ctx, assetID, from, to, limit)
}

// TriggerCycle runs one collection cycle immediately and invalidates the
// latest-price cache on success.
func (s *MarketService) TriggerCycle(ctx context.Context, assetIDs []string) (*domain.CollectionCycle, error) {
	ctx, span := s.tracer.Start(ctx, "market-service.trigger-cycle")
	defer span.End()

	cycle, err := s.runner.RunCycle(ctx, assetIDs)
	if err != nil {
		return nil, err
	}
	if s.redis != nil {
		keys := make([]string, 0, len(cycle.RequestedAssets))
		for _, id := range cycle.RequestedAssets {
			keys = append(keys, latestCacheKey(id))
		}
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			log.Printf("redis cache invalidate error: %v", err)
		}
		s.setLastCycleCache(ctx, cycle)
	}
	return cycle, nil
}

// LastCycle exposes the most recent cycle summary, if any. After a restart
// the in-memory summary is gone; the cached copy bridges the gap until the
// next run.
func (s *MarketService) LastCycle() *domain.CollectionCycle {
	if cycle := s.runner.LastCycle(); cycle != nil {
		return cycle
	}
	if s.redis == nil {
		return nil
	}

	data, err := s.redis.Get(context.Background(), lastCycleCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis cycle cache read error: %v", err)
		}
		return nil
	}
	cycle := &domain.CollectionCycle{}
	if err := json.Unmarshal(data, cycle); err != nil {
		return nil
	}
	return cycle
}

func (s *MarketService) setLastCycleCache(ctx context.Context, cycle *domain.CollectionCycle) {
	data, err := json.Marshal(cycle)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, lastCycleCacheKey, data, lastCycleCacheTTL).Err(); err != nil {
		log.Printf("redis cycle cache write error: %v", err)
	}
}

const lastCycleCacheKey = "cycle:last"

func latestCacheKey(assetID string) string { return "latest:" + assetID }

func (s *MarketService) getLatestCache(ctx context.Context, assetID string) *domain.MergedRecord {
	data, err := s.redis.Get(ctx, latestCacheKey(assetID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("redis cache read error for %s: %v", assetID, err)
		}
		return nil
	}
	rec := &domain.MergedRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil
	}
	return rec
}

func (s *MarketService) setLatestCache(ctx context.Context, rec *domain.MergedRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, latestCacheKey(rec.AssetID), data, latestCacheTTL).Err()
}
