package domain

import "time"

// SourceID names one external market-data API adapter.
type SourceID string

const (
	SourceCoinGecko   SourceID = "coingecko"
	SourceCoinPaprika SourceID = "coinpaprika"
	SourceCoinStats   SourceID = "coinstats"
	SourceCoinDesk    SourceID = "coindesk"
)

// SourceStatus is both the outcome an adapter reports for one fetch and the
// per-source entry on a collection cycle.
type SourceStatus string

const (
	StatusOK          SourceStatus = "ok"
	StatusPartial     SourceStatus = "partial"
	StatusRateLimited SourceStatus = "rate_limited"
	StatusError       SourceStatus = "error"
)

// AssetQuote is one source's observation of one asset at collection time.
// Optional fields are pointers so "absent" is never confused with zero.
type AssetQuote struct {
	AssetID        string    `json:"asset_id"`
	SourceID       SourceID  `json:"source_id"`
	PriceUSD       float64   `json:"price_usd"`
	MarketCap      *float64  `json:"market_cap,omitempty"`
	Volume24h      *float64  `json:"volume_24h,omitempty"`
	Change24hPct   *float64  `json:"change_24h_pct,omitempty"`
	ObservedAt     time.Time `json:"observed_at"`
	FetchLatencyMS int64     `json:"fetch_latency_ms"`
}

// Merge field names, in the fixed order the merge engine fills them.
const (
	FieldPriceUSD     = "price_usd"
	FieldMarketCap    = "market_cap"
	FieldVolume24h    = "volume_24h"
	FieldChange24hPct = "change_24h_pct"
)

// MergedRecord is one asset's reconciled observation for a collection cycle.
// Different fields may come from different sources; FieldSources records the
// source that supplied each present field and ContributingSources keeps the
// sources in the order they were first used.
type MergedRecord struct {
	AssetID             string              `json:"asset_id"`
	PriceUSD            float64             `json:"price_usd"`
	MarketCap           *float64            `json:"market_cap,omitempty"`
	Volume24h           *float64            `json:"volume_24h,omitempty"`
	Change24hPct        *float64            `json:"change_24h_pct,omitempty"`
	ContributingSources []SourceID          `json:"contributing_sources"`
	FieldSources        map[string]SourceID `json:"field_sources"`
	Indicators          map[string]float64  `json:"indicators,omitempty"`
	CollectedAt         time.Time           `json:"collected_at"`
}

// TrackedAssets lists the canonical lowercase slugs collected by default.
var TrackedAssets = []string{
	"bitcoin", "ethereum", "ripple", "cardano", "solana",
	"dogecoin", "polkadot", "avalanche-2", "chainlink", "litecoin",
}

// AssetSymbol maps canonical slugs to display tickers.
var AssetSymbol = map[string]string{
	"bitcoin":     "BTC",
	"ethereum":    "ETH",
	"ripple":      "XRP",
	"cardano":     "ADA",
	"solana":      "SOL",
	"dogecoin":    "DOGE",
	"polkadot":    "DOT",
	"avalanche-2": "AVAX",
	"chainlink":   "LINK",
	"litecoin":    "LTC",
}

// SymbolAsset is the reverse mapping, ticker to slug.
var SymbolAsset map[string]string

func init() {
	SymbolAsset = make(map[string]string, len(AssetSymbol))
	for slug, sym := range AssetSymbol {
		SymbolAsset[sym] = slug
	}
}

// IsTracked reports whether the slug belongs to the default asset set.
func IsTracked(assetID string) bool {
	_, ok := AssetSymbol[assetID]
	return ok
}

// Float64Ptr is a convenience for building optional quote fields.
func Float64Ptr(v float64) *float64 { return &v }
