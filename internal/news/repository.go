package news

import (
	"context"
	"sort"
	"sync"

	"coinpulse/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

const createNewsTable = `
CREATE TABLE IF NOT EXISTS news_items (
    id              BIGSERIAL   PRIMARY KEY,
    url_hash        TEXT        NOT NULL UNIQUE,
    source          TEXT        NOT NULL,
    title           TEXT        NOT NULL,
    url             TEXT        NOT NULL,
    excerpt         TEXT,
    published_at    TIMESTAMPTZ NOT NULL,
    fetched_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
    sentiment_score NUMERIC,
    sentiment_label TEXT,
    scored_by       TEXT
);

CREATE INDEX IF NOT EXISTS idx_news_items_published
    ON news_items (published_at DESC);
`

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository stores news items in Postgres, deduplicated on url_hash.
type Repository struct {
	pool   pool
	tracer trace.Tracer
}

func NewRepository(pool pool, tracer trace.Tracer) *Repository {
	return &Repository{pool: pool, tracer: tracer}
}

func (r *Repository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "news-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createNewsTable)
	return err
}

// UpsertItems inserts new items and refreshes sentiment on known ones,
// returning the stored rows with their assigned ids.
func (r *Repository) UpsertItems(ctx context.Context, items []domain.NewsItem) ([]domain.NewsItem, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ctx, span := r.tracer.Start(ctx, "news-repo.upsert-items")
	defer span.End()

	out := make([]domain.NewsItem, 0, len(items))
	for _, item := range items {
		row := r.pool.QueryRow(ctx,
			`INSERT INTO news_items (url_hash, source, title, url, excerpt, published_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (url_hash) DO UPDATE SET
			     title = EXCLUDED.title,
			     excerpt = EXCLUDED.excerpt
			 RETURNING id`,
			item.URLHash, item.Source, item.Title, item.URL, item.Excerpt, item.PublishedAt,
		)
		if err := row.Scan(&item.ID); err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (r *Repository) UpdateSentiment(ctx context.Context, itemID int64, score float64, label, model string) error {
	ctx, span := r.tracer.Start(ctx, "news-repo.update-sentiment")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`UPDATE news_items
		 SET sentiment_score = $2, sentiment_label = $3, scored_by = $4
		 WHERE id = $1`,
		itemID, score, label, model,
	)
	return err
}

// ListRecent returns the newest items first.
func (r *Repository) ListRecent(ctx context.Context, limit int) ([]domain.NewsItem, error) {
	ctx, span := r.tracer.Start(ctx, "news-repo.list-recent")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, source, title, url, url_hash, excerpt, published_at,
		        sentiment_score, sentiment_label, scored_by
		 FROM news_items
		 ORDER BY published_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.NewsItem
	for rows.Next() {
		var item domain.NewsItem
		var excerpt, label, model *string
		if err := rows.Scan(
			&item.ID, &item.Source, &item.Title, &item.URL, &item.URLHash, &excerpt,
			&item.PublishedAt, &item.SentimentScore, &label, &model,
		); err != nil {
			return nil, err
		}
		if excerpt != nil {
			item.Excerpt = *excerpt
		}
		if label != nil {
			item.SentimentLabel = *label
		}
		if model != nil {
			item.ScoredBy = *model
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MemoryRepository is the in-process fallback used without DATABASE_URL.
type MemoryRepository struct {
	mu     sync.RWMutex
	byHash map[string]*domain.NewsItem
	nextID int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byHash: make(map[string]*domain.NewsItem)}
}

func (r *MemoryRepository) RunMigrations(ctx context.Context) error { return nil }

func (r *MemoryRepository) UpsertItems(ctx context.Context, items []domain.NewsItem) ([]domain.NewsItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]domain.NewsItem, 0, len(items))
	for _, item := range items {
		if existing, ok := r.byHash[item.URLHash]; ok {
			existing.Title = item.Title
			existing.Excerpt = item.Excerpt
			out = append(out, *existing)
			continue
		}
		r.nextID++
		item.ID = r.nextID
		clone := item
		r.byHash[item.URLHash] = &clone
		out = append(out, item)
	}
	return out, nil
}

func (r *MemoryRepository) UpdateSentiment(ctx context.Context, itemID int64, score float64, label, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.byHash {
		if item.ID == itemID {
			item.SentimentScore = &score
			item.SentimentLabel = label
			item.ScoredBy = model
			return nil
		}
	}
	return nil
}

func (r *MemoryRepository) ListRecent(ctx context.Context, limit int) ([]domain.NewsItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]domain.NewsItem, 0, len(r.byHash))
	for _, item := range r.byHash {
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].PublishedAt.After(items[j].PublishedAt) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}
