package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// coingeckoMapping: CoinGecko already uses the canonical slugs.
var coingeckoMapping = func() map[string]string {
	m := make(map[string]string, len(domain.TrackedAssets))
	for _, slug := range domain.TrackedAssets {
		m[slug] = slug
	}
	return m
}()

// CoinGeckoAdapter fetches prices from the CoinGecko free API in one batched
// simple/price call. It is the primary source.
type CoinGeckoAdapter struct {
	client  *http.Client
	baseURL string
	apiKey  string
	mapping map[string]string
	tracer  trace.Tracer
}

func NewCoinGeckoAdapter(tracer trace.Tracer, apiKey string, timeout time.Duration, mapping map[string]string) *CoinGeckoAdapter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if mapping == nil {
		mapping = coingeckoMapping
	}
	return &CoinGeckoAdapter{
		client:  &http.Client{Timeout: timeout},
		baseURL: coingeckoBaseURL,
		apiKey:  apiKey,
		mapping: mapping,
		tracer:  tracer,
	}
}

func (a *CoinGeckoAdapter) Source() domain.SourceID { return domain.SourceCoinGecko }

func (a *CoinGeckoAdapter) Fetch(ctx context.Context, assetIDs []string) ([]domain.AssetQuote, domain.SourceStatus) {
	_, span := a.tracer.Start(ctx, "coingecko.fetch")
	defer span.End()

	slugs, cgIDs := mapAssets(assetIDs, a.mapping)
	if len(cgIDs) == 0 {
		return nil, domain.StatusOK
	}

	params := url.Values{}
	params.Set("ids", strings.Join(cgIDs, ","))
	params.Set("vs_currencies", "usd")
	params.Set("include_market_cap", "true")
	params.Set("include_24hr_vol", "true")
	params.Set("include_24hr_change", "true")
	if a.apiKey != "" {
		params.Set("x_cg_demo_api_key", a.apiKey)
	}
	reqURL := a.baseURL + "/simple/price?" + params.Encode()

	started := time.Now()
	body, status := doJSONRequest(ctx, a.client, reqURL, nil)
	if status != domain.StatusOK {
		return nil, status
	}
	latency := time.Since(started).Milliseconds()

	// Response shape: {"bitcoin": {"usd": 97000, "usd_market_cap": ..., "usd_24h_vol": ..., "usd_24h_change": 2.34}, ...}
	var raw map[string]map[string]float64
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, domain.StatusError
	}

	observed := time.Now().UTC()
	quotes := make([]domain.AssetQuote, 0, len(slugs))
	for i, slug := range slugs {
		row, ok := raw[cgIDs[i]]
		if !ok {
			continue
		}
		price, ok := row["usd"]
		if !ok || price <= 0 {
			// Malformed row: drop it, keep the rest of the response.
			continue
		}
		q := domain.AssetQuote{
			AssetID:        slug,
			SourceID:       domain.SourceCoinGecko,
			PriceUSD:       price,
			ObservedAt:     observed,
			FetchLatencyMS: latency,
		}
		if v, ok := row["usd_market_cap"]; ok && v > 0 {
			q.MarketCap = domain.Float64Ptr(v)
		}
		if v, ok := row["usd_24h_vol"]; ok && v > 0 {
			q.Volume24h = domain.Float64Ptr(v)
		}
		if v, ok := row["usd_24h_change"]; ok {
			q.Change24hPct = domain.Float64Ptr(v)
		}
		quotes = append(quotes, q)
	}

	if len(quotes) < len(slugs) {
		return quotes, domain.StatusPartial
	}
	return quotes, domain.StatusOK
}

// doJSONRequest performs one GET and classifies the result. It returns the
// body only for 200 responses; 429 maps to rate_limited and everything else
// that goes wrong maps to error.
func doJSONRequest(ctx context.Context, client *http.Client, reqURL string, headers map[string]string) ([]byte, domain.SourceStatus) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, domain.StatusError
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "coinpulse/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, domain.StatusError
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return nil, domain.StatusRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, domain.StatusError
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.StatusError
	}
	return body, domain.StatusOK
}
