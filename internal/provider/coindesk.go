package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coindeskBaseURL = "https://api.coindesk.com/v1"

// CoinDeskAdapter is a bitcoin-only reference source: it supplies a price and
// nothing else, useful as a final gap-filler when every richer source is down.
type CoinDeskAdapter struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
}

func NewCoinDeskAdapter(tracer trace.Tracer, timeout time.Duration) *CoinDeskAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinDeskAdapter{
		client:  &http.Client{Timeout: timeout},
		baseURL: coindeskBaseURL,
		tracer:  tracer,
	}
}

func (a *CoinDeskAdapter) Source() domain.SourceID { return domain.SourceCoinDesk }

func (a *CoinDeskAdapter) Fetch(ctx context.Context, assetIDs []string) ([]domain.AssetQuote, domain.SourceStatus) {
	_, span := a.tracer.Start(ctx, "coindesk.fetch")
	defer span.End()

	wantBitcoin := false
	for _, id := range assetIDs {
		if id == "bitcoin" {
			wantBitcoin = true
			break
		}
	}
	if !wantBitcoin {
		return nil, domain.StatusOK
	}

	started := time.Now()
	body, status := doJSONRequest(ctx, a.client, a.baseURL+"/bpi/currentprice.json", nil)
	if status != domain.StatusOK {
		return nil, status
	}

	var raw struct {
		BPI struct {
			USD struct {
				RateFloat float64 `json:"rate_float"`
			} `json:"USD"`
		} `json:"bpi"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || raw.BPI.USD.RateFloat <= 0 {
		return nil, domain.StatusError
	}

	return []domain.AssetQuote{{
		AssetID:        "bitcoin",
		SourceID:       domain.SourceCoinDesk,
		PriceUSD:       raw.BPI.USD.RateFloat,
		ObservedAt:     time.Now().UTC(),
		FetchLatencyMS: time.Since(started).Milliseconds(),
	}}, domain.StatusOK
}
