package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"coinpulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createPricesTable = `
CREATE TABLE IF NOT EXISTS crypto_prices (
    asset_id       TEXT        NOT NULL,
    collected_at   TIMESTAMPTZ NOT NULL,
    price_usd      NUMERIC     NOT NULL,
    market_cap     NUMERIC,
    volume_24h     NUMERIC,
    change_24h_pct NUMERIC,
    sources        TEXT        NOT NULL,
    field_sources  JSONB,
    indicators     JSONB,
    PRIMARY KEY (asset_id, collected_at)
);

CREATE INDEX IF NOT EXISTS idx_crypto_prices_asset_time
    ON crypto_prices (asset_id, collected_at DESC);
`

const createCyclesTable = `
CREATE TABLE IF NOT EXISTS collection_cycles (
    cycle_id           TEXT        PRIMARY KEY,
    started_at         TIMESTAMPTZ NOT NULL,
    finished_at        TIMESTAMPTZ NOT NULL,
    completeness_score NUMERIC     NOT NULL,
    reliability_score  NUMERIC     NOT NULL,
    records_written    INT         NOT NULL,
    per_source_status  JSONB,
    errors             JSONB
);
`

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PriceRepository persists merged records to Postgres. The (asset_id,
// collected_at) key makes every upsert idempotent; re-running a cycle's write
// is a no-op, a changed payload is last-write-wins.
type PriceRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewPriceRepository(pool PgxPool, tracer trace.Tracer) *PriceRepository {
	return &PriceRepository{pool: pool, tracer: tracer}
}

func (r *PriceRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "price-repo.run-migrations")
	defer span.End()

	if _, err := r.pool.Exec(ctx, createPricesTable); err != nil {
		return err
	}
	_, err := r.pool.Exec(ctx, createCyclesTable)
	return err
}

// Upsert writes one merged record, idempotent on (asset_id, collected_at).
func (r *PriceRepository) Upsert(ctx context.Context, record *domain.MergedRecord) domain.WriteResult {
	ctx, span := r.tracer.Start(ctx, "price-repo.upsert")
	defer span.End()

	return domain.WriteResult{
		AssetID:     record.AssetID,
		CollectedAt: record.CollectedAt,
		Err:         r.upsertOne(ctx, record),
	}
}

// UpsertBatch writes each record independently so one bad record cannot sink
// its siblings. The per-record outcome comes back as a WriteResult slice in
// input order.
func (r *PriceRepository) UpsertBatch(ctx context.Context, records []*domain.MergedRecord) []domain.WriteResult {
	if len(records) == 0 {
		return nil
	}

	ctx, span := r.tracer.Start(ctx, "price-repo.upsert-batch")
	defer span.End()

	results := make([]domain.WriteResult, 0, len(records))
	for _, rec := range records {
		results = append(results, domain.WriteResult{
			AssetID:     rec.AssetID,
			CollectedAt: rec.CollectedAt,
			Err:         r.upsertOne(ctx, rec),
		})
	}
	return results
}

func (r *PriceRepository) upsertOne(ctx context.Context, rec *domain.MergedRecord) error {
	fieldSources, err := json.Marshal(rec.FieldSources)
	if err != nil {
		return err
	}
	var indicators []byte
	if len(rec.Indicators) > 0 {
		if indicators, err = json.Marshal(rec.Indicators); err != nil {
			return err
		}
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO crypto_prices
		     (asset_id, collected_at, price_usd, market_cap, volume_24h, change_24h_pct, sources, field_sources, indicators)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (asset_id, collected_at) DO UPDATE SET
		     price_usd = EXCLUDED.price_usd,
		     market_cap = EXCLUDED.market_cap,
		     volume_24h = EXCLUDED.volume_24h,
		     change_24h_pct = EXCLUDED.change_24h_pct,
		     sources = EXCLUDED.sources,
		     field_sources = EXCLUDED.field_sources,
		     indicators = EXCLUDED.indicators`,
		rec.AssetID, rec.CollectedAt, rec.PriceUSD, rec.MarketCap, rec.Volume24h, rec.Change24hPct,
		JoinSources(rec.ContributingSources), fieldSources, indicators,
	)
	return err
}

// GetPriceHistory returns up to limit closes for one asset, oldest first,
// ready to feed the indicator calculator.
func (r *PriceRepository) GetPriceHistory(ctx context.Context, assetID string, limit int) ([]float64, error) {
	ctx, span := r.tracer.Start(ctx, "price-repo.get-price-history")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT price_usd FROM (
		     SELECT price_usd, collected_at
		     FROM crypto_prices
		     WHERE asset_id = $1
		     ORDER BY collected_at DESC
		     LIMIT $2
		 ) recent ORDER BY collected_at ASC`,
		assetID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var price float64
		if err := rows.Scan(&price); err != nil {
			return nil, err
		}
		closes = append(closes, price)
	}
	return closes, rows.Err()
}

// GetLatest returns the newest merged record per requested asset. Assets with
// no rows are simply absent from the result.
func (r *PriceRepository) GetLatest(ctx context.Context, assetIDs []string) ([]*domain.MergedRecord, error) {
	ctx, span := r.tracer.Start(ctx, "price-repo.get-latest")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ON (asset_id)
		     asset_id, collected_at, price_usd, market_cap, volume_24h, change_24h_pct, sources, field_sources, indicators
		 FROM crypto_prices
		 WHERE asset_id = ANY($1)
		 ORDER BY asset_id, collected_at DESC`,
		assetIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetRecords returns one asset's records in a time range, oldest first.
func (r *PriceRepository) GetRecords(ctx context.Context, assetID string, from, to time.Time, limit int) ([]*domain.MergedRecord, error) {
	ctx, span := r.tracer.Start(ctx, "price-repo.get-records")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT asset_id, collected_at, price_usd, market_cap, volume_24h, change_24h_pct, sources, field_sources, indicators
		 FROM crypto_prices
		 WHERE asset_id = $1 AND collected_at >= $2 AND collected_at <= $3
		 ORDER BY collected_at ASC
		 LIMIT $4`,
		assetID, from, to, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// SaveCycle records a finished cycle's summary for audit.
func (r *PriceRepository) SaveCycle(ctx context.Context, cycle *domain.CollectionCycle) error {
	ctx, span := r.tracer.Start(ctx, "price-repo.save-cycle")
	defer span.End()

	statuses, err := json.Marshal(cycle.PerSourceStatus)
	if err != nil {
		return err
	}
	var cycleErrors []byte
	if len(cycle.Errors) > 0 {
		if cycleErrors, err = json.Marshal(cycle.Errors); err != nil {
			return err
		}
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO collection_cycles
		     (cycle_id, started_at, finished_at, completeness_score, reliability_score, records_written, per_source_status, errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (cycle_id) DO NOTHING`,
		cycle.CycleID, cycle.StartedAt, cycle.FinishedAt,
		cycle.CompletenessScore, cycle.ReliabilityScore, cycle.RecordsWritten,
		statuses, cycleErrors,
	)
	return err
}

func scanRecords(rows pgx.Rows) ([]*domain.MergedRecord, error) {
	var records []*domain.MergedRecord
	for rows.Next() {
		rec := &domain.MergedRecord{}
		var sources string
		var fieldSources, indicators []byte
		if err := rows.Scan(
			&rec.AssetID, &rec.CollectedAt, &rec.PriceUSD,
			&rec.MarketCap, &rec.Volume24h, &rec.Change24hPct,
			&sources, &fieldSources, &indicators,
		); err != nil {
			return nil, err
		}
		rec.ContributingSources = SplitSources(sources)
		if len(fieldSources) > 0 {
			if err := json.Unmarshal(fieldSources, &rec.FieldSources); err != nil {
				return nil, err
			}
		}
		if len(indicators) > 0 {
			if err := json.Unmarshal(indicators, &rec.Indicators); err != nil {
				return nil, err
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// JoinSources renders provenance as a stable "a+b+c" string for storage.
func JoinSources(sources []domain.SourceID) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, "+")
}

func SplitSources(joined string) []domain.SourceID {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, "+")
	out := make([]domain.SourceID, len(parts))
	for i, p := range parts {
		out[i] = domain.SourceID(p)
	}
	return out
}
