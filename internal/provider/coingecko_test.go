package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func jsonResponse(t *testing.T, status int, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader(data)),
		Header:     make(http.Header),
	}
}

func TestCoinGeckoFetchNormalizesQuotes(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer, "", time.Second, nil)
	adapter.baseURL = "http://example"
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.Path, "/simple/price") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			return jsonResponse(t, http.StatusOK, map[string]map[string]float64{
				"bitcoin":  {"usd": 97000, "usd_market_cap": 1.9e12, "usd_24h_vol": 4.5e10, "usd_24h_change": 2.34},
				"ethereum": {"usd": 3500, "usd_24h_change": -1.1},
			}), nil
		}),
	}

	quotes, status := adapter.Fetch(context.Background(), []string{"bitcoin", "ethereum"})
	if status != domain.StatusOK {
		t.Fatalf("expected ok status, got %s", status)
	}
	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}

	byAsset := make(map[string]domain.AssetQuote, len(quotes))
	for _, q := range quotes {
		byAsset[q.AssetID] = q
	}
	btc := byAsset["bitcoin"]
	if btc.PriceUSD != 97000 || btc.SourceID != domain.SourceCoinGecko {
		t.Fatalf("unexpected bitcoin quote: %+v", btc)
	}
	if btc.MarketCap == nil || *btc.MarketCap != 1.9e12 {
		t.Fatalf("expected market cap, got %+v", btc.MarketCap)
	}
	eth := byAsset["ethereum"]
	if eth.MarketCap != nil || eth.Volume24h != nil {
		t.Fatalf("absent fields must stay nil, got %+v", eth)
	}
	if eth.Change24hPct == nil || *eth.Change24hPct != -1.1 {
		t.Fatalf("expected 24h change in percent units, got %+v", eth.Change24hPct)
	}
}

func TestCoinGeckoFetchDropsMalformedRows(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer, "", time.Second, nil)
	adapter.baseURL = "http://example"
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusOK, map[string]map[string]float64{
				"bitcoin":  {"usd": 97000},
				"ethereum": {"usd": 0}, // invalid price
			}), nil
		}),
	}

	quotes, status := adapter.Fetch(context.Background(), []string{"bitcoin", "ethereum"})
	if status != domain.StatusPartial {
		t.Fatalf("dropping one row should yield partial, got %s", status)
	}
	if len(quotes) != 1 || quotes[0].AssetID != "bitcoin" {
		t.Fatalf("expected only the valid bitcoin quote, got %+v", quotes)
	}
}

func TestCoinGeckoFetchRateLimited(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer, "", time.Second, nil)
	adapter.baseURL = "http://example"
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(t, http.StatusTooManyRequests, map[string]string{"error": "rate limited"}), nil
		}),
	}

	quotes, status := adapter.Fetch(context.Background(), []string{"bitcoin"})
	if status != domain.StatusRateLimited {
		t.Fatalf("expected rate_limited, got %s", status)
	}
	if len(quotes) != 0 {
		t.Fatalf("expected no quotes, got %d", len(quotes))
	}
}

func TestCoinGeckoFetchTransportError(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer, "", time.Second, nil)
	adapter.baseURL = "http://example"
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return nil, io.ErrUnexpectedEOF
		}),
	}

	quotes, status := adapter.Fetch(context.Background(), []string{"bitcoin"})
	if status != domain.StatusError {
		t.Fatalf("expected error outcome, got %s", status)
	}
	if quotes != nil {
		t.Fatalf("expected no quotes on transport failure, got %+v", quotes)
	}
}

func TestCoinGeckoFetchSkipsUnmappedAssets(t *testing.T) {
	t.Parallel()

	called := false
	adapter := NewCoinGeckoAdapter(testTracer, "", time.Second, map[string]string{"bitcoin": "bitcoin"})
	adapter.baseURL = "http://example"
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			called = true
			if ids := req.URL.Query().Get("ids"); ids != "bitcoin" {
				t.Fatalf("unmapped asset leaked into request: %s", ids)
			}
			return jsonResponse(t, http.StatusOK, map[string]map[string]float64{
				"bitcoin": {"usd": 1},
			}), nil
		}),
	}

	quotes, status := adapter.Fetch(context.Background(), []string{"bitcoin", "not-a-coin"})
	if !called {
		t.Fatal("expected an outbound request")
	}
	if status != domain.StatusOK || len(quotes) != 1 {
		t.Fatalf("unexpected result: status=%s quotes=%d", status, len(quotes))
	}
}
