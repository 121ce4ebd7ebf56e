package news

import (
	"context"
	"log"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

type FeedReader interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]domain.NewsItem, error)
}

type HotReader interface {
	FetchHot(ctx context.Context, maxItems int) ([]domain.NewsItem, error)
}

type Store interface {
	UpsertItems(ctx context.Context, items []domain.NewsItem) ([]domain.NewsItem, error)
	UpdateSentiment(ctx context.Context, itemID int64, score float64, label, model string) error
	ListRecent(ctx context.Context, limit int) ([]domain.NewsItem, error)
}

type Config struct {
	Feeds       []string
	FeedItemMax int
	RecentLimit int
}

// Service pulls headlines from every configured feed, persists them deduped,
// and scores whatever is new. Feed failures are logged and skipped; one dead
// feed never blocks the rest.
type Service struct {
	tracer trace.Tracer
	store  Store
	rss    FeedReader
	hot    HotReader
	scorer *Scorer
	cfg    Config
}

func NewService(tracer trace.Tracer, store Store, rss FeedReader, hot HotReader, scorer *Scorer, cfg Config) *Service {
	if cfg.FeedItemMax <= 0 {
		cfg.FeedItemMax = 20
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 50
	}
	return &Service{tracer: tracer, store: store, rss: rss, hot: hot, scorer: scorer, cfg: cfg}
}

// Ingest runs one news collection pass and returns how many items were
// stored and scored.
func (s *Service) Ingest(ctx context.Context) (int, error) {
	ctx, span := s.tracer.Start(ctx, "news-service.ingest")
	defer span.End()

	var fetched []domain.NewsItem
	if s.rss != nil {
		for _, feed := range s.cfg.Feeds {
			items, err := s.rss.FetchFeed(ctx, feed, s.cfg.FeedItemMax)
			if err != nil {
				log.Printf("news feed %s: %v", feed, err)
				continue
			}
			fetched = append(fetched, items...)
		}
	}
	if s.hot != nil {
		items, err := s.hot.FetchHot(ctx, s.cfg.FeedItemMax)
		if err != nil {
			log.Printf("cryptopanic fetch: %v", err)
		} else {
			fetched = append(fetched, items...)
		}
	}
	if len(fetched) == 0 {
		return 0, nil
	}

	stored, err := s.store.UpsertItems(ctx, fetched)
	if err != nil {
		return 0, err
	}

	if s.scorer != nil {
		for _, scored := range s.scorer.Score(ctx, stored) {
			if err := s.store.UpdateSentiment(ctx, scored.ItemID, scored.Score, scored.Label, scored.Model); err != nil {
				log.Printf("news sentiment update %d: %v", scored.ItemID, err)
			}
		}
	}

	log.Printf("news ingest stored %d items", len(stored))
	return len(stored), nil
}

// Recent returns the newest stored items.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 || limit > s.cfg.RecentLimit {
		limit = s.cfg.RecentLimit
	}
	return s.store.ListRecent(ctx, limit)
}

// AggregateSentiment averages the scored items among the newest n. The bool
// is false when nothing scored exists yet.
func (s *Service) AggregateSentiment(ctx context.Context, limit int) (float64, string, bool, error) {
	items, err := s.Recent(ctx, limit)
	if err != nil {
		return 0, "", false, err
	}

	var sum float64
	var count int
	for _, item := range items {
		if item.SentimentScore == nil {
			continue
		}
		sum += *item.SentimentScore
		count++
	}
	if count == 0 {
		return 0, "", false, nil
	}

	avg := sum / float64(count)
	label := "neutral"
	if avg > 0.2 {
		label = "bullish"
	} else if avg < -0.2 {
		label = "bearish"
	}
	return avg, label, true, nil
}
