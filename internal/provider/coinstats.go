package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coinstatsBaseURL = "https://api.coinstats.app/public/v1"

var coinstatsMapping = map[string]string{
	"bitcoin":   "bitcoin",
	"ethereum":  "ethereum",
	"ripple":    "ripple",
	"cardano":   "cardano",
	"solana":    "solana",
	"dogecoin":  "dogecoin",
	"chainlink": "chainlink",
	"litecoin":  "litecoin",
	"polkadot":  "polkadot",
}

// CoinStatsAdapter fetches one coin per call from the CoinStats public API.
// Tertiary source; its mapping intentionally covers fewer assets (free tier).
type CoinStatsAdapter struct {
	client  *http.Client
	baseURL string
	apiKey  string
	mapping map[string]string
	tracer  trace.Tracer
}

func NewCoinStatsAdapter(tracer trace.Tracer, apiKey string, timeout time.Duration, mapping map[string]string) *CoinStatsAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if mapping == nil {
		mapping = coinstatsMapping
	}
	return &CoinStatsAdapter{
		client:  &http.Client{Timeout: timeout},
		baseURL: coinstatsBaseURL,
		apiKey:  apiKey,
		mapping: mapping,
		tracer:  tracer,
	}
}

func (a *CoinStatsAdapter) Source() domain.SourceID { return domain.SourceCoinStats }

func (a *CoinStatsAdapter) Fetch(ctx context.Context, assetIDs []string) ([]domain.AssetQuote, domain.SourceStatus) {
	_, span := a.tracer.Start(ctx, "coinstats.fetch")
	defer span.End()

	slugs, statsIDs := mapAssets(assetIDs, a.mapping)
	if len(statsIDs) == 0 {
		return nil, domain.StatusOK
	}

	var headers map[string]string
	if a.apiKey != "" {
		headers = map[string]string{"X-API-KEY": a.apiKey}
	}

	var quotes []domain.AssetQuote
	failed := 0
	for i, statsID := range statsIDs {
		if ctx.Err() != nil {
			return quotes, domain.StatusError
		}

		started := time.Now()
		body, status := doJSONRequest(ctx, a.client, a.baseURL+"/coins/"+statsID+"?currency=USD", headers)
		if status == domain.StatusRateLimited {
			return quotes, domain.StatusRateLimited
		}
		if status != domain.StatusOK {
			failed++
			continue
		}

		var raw struct {
			Coin struct {
				Price          float64 `json:"price"`
				MarketCap      float64 `json:"marketCap"`
				Volume         float64 `json:"volume"`
				PriceChange1d  float64 `json:"priceChange1d"`
			} `json:"coin"`
		}
		if err := json.Unmarshal(body, &raw); err != nil || raw.Coin.Price <= 0 {
			failed++
			continue
		}

		q := domain.AssetQuote{
			AssetID:        slugs[i],
			SourceID:       domain.SourceCoinStats,
			PriceUSD:       raw.Coin.Price,
			Change24hPct:   domain.Float64Ptr(raw.Coin.PriceChange1d),
			ObservedAt:     time.Now().UTC(),
			FetchLatencyMS: time.Since(started).Milliseconds(),
		}
		if raw.Coin.MarketCap > 0 {
			q.MarketCap = domain.Float64Ptr(raw.Coin.MarketCap)
		}
		if raw.Coin.Volume > 0 {
			q.Volume24h = domain.Float64Ptr(raw.Coin.Volume)
		}
		quotes = append(quotes, q)
	}

	switch {
	case failed == 0:
		return quotes, domain.StatusOK
	case len(quotes) > 0:
		return quotes, domain.StatusPartial
	default:
		return nil, domain.StatusError
	}
}
