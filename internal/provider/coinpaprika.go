package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coinpaprikaBaseURL = "https://api.coinpaprika.com/v1"

// coinpaprikaMapping translates canonical slugs to CoinPaprika ticker IDs.
var coinpaprikaMapping = map[string]string{
	"bitcoin":     "btc-bitcoin",
	"ethereum":    "eth-ethereum",
	"ripple":      "xrp-xrp",
	"cardano":     "ada-cardano",
	"solana":      "sol-solana",
	"dogecoin":    "doge-dogecoin",
	"polkadot":    "dot-polkadot",
	"chainlink":   "link-chainlink",
	"litecoin":    "ltc-litecoin",
	"avalanche-2": "avax-avalanche",
}

// CoinPaprikaAdapter fetches one ticker per asset from the CoinPaprika free
// API. It is the first backup source.
type CoinPaprikaAdapter struct {
	client  *http.Client
	baseURL string
	mapping map[string]string
	tracer  trace.Tracer
}

func NewCoinPaprikaAdapter(tracer trace.Tracer, timeout time.Duration, mapping map[string]string) *CoinPaprikaAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if mapping == nil {
		mapping = coinpaprikaMapping
	}
	return &CoinPaprikaAdapter{
		client:  &http.Client{Timeout: timeout},
		baseURL: coinpaprikaBaseURL,
		mapping: mapping,
		tracer:  tracer,
	}
}

func (a *CoinPaprikaAdapter) Source() domain.SourceID { return domain.SourceCoinPaprika }

func (a *CoinPaprikaAdapter) Fetch(ctx context.Context, assetIDs []string) ([]domain.AssetQuote, domain.SourceStatus) {
	_, span := a.tracer.Start(ctx, "coinpaprika.fetch")
	defer span.End()

	slugs, paprikaIDs := mapAssets(assetIDs, a.mapping)
	if len(paprikaIDs) == 0 {
		return nil, domain.StatusOK
	}

	var quotes []domain.AssetQuote
	failed := 0
	for i, paprikaID := range paprikaIDs {
		if ctx.Err() != nil {
			return quotes, domain.StatusError
		}

		started := time.Now()
		body, status := doJSONRequest(ctx, a.client, a.baseURL+"/tickers/"+paprikaID, nil)
		if status == domain.StatusRateLimited {
			// The source told us to stop; report what we have.
			return quotes, domain.StatusRateLimited
		}
		if status != domain.StatusOK {
			failed++
			continue
		}

		var raw struct {
			Quotes map[string]struct {
				Price     float64 `json:"price"`
				MarketCap float64 `json:"market_cap"`
				Volume24h float64 `json:"volume_24h"`
				Change24h float64 `json:"percent_change_24h"`
			} `json:"quotes"`
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			failed++
			continue
		}
		usd, ok := raw.Quotes["USD"]
		if !ok || usd.Price <= 0 {
			failed++
			continue
		}

		q := domain.AssetQuote{
			AssetID:        slugs[i],
			SourceID:       domain.SourceCoinPaprika,
			PriceUSD:       usd.Price,
			Change24hPct:   domain.Float64Ptr(usd.Change24h),
			ObservedAt:     time.Now().UTC(),
			FetchLatencyMS: time.Since(started).Milliseconds(),
		}
		if usd.MarketCap > 0 {
			q.MarketCap = domain.Float64Ptr(usd.MarketCap)
		}
		if usd.Volume24h > 0 {
			q.Volume24h = domain.Float64Ptr(usd.Volume24h)
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
