package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coinpulse/internal/analysis"
	"coinpulse/internal/collector"
	"coinpulse/internal/domain"
	"coinpulse/internal/news"
	"coinpulse/internal/repository"
	"coinpulse/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type stubRunner struct {
	cycle *domain.CollectionCycle
	err   error
}

func (s *stubRunner) RunCycle(ctx context.Context, assets []string) (*domain.CollectionCycle, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.cycle, nil
}

func (s *stubRunner) LastCycle() *domain.CollectionCycle { return s.cycle }

func newTestRouter(t *testing.T, store *repository.MemoryPriceRepository, runner *stubRunner) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	market := service.NewMarketService(testTracer, store, runner, nil)
	newsSvc := news.NewService(testTracer, news.NewMemoryRepository(), nil, nil, nil, news.Config{})
	engine := analysis.NewEngine(testTracer, store, 100)
	detector := analysis.NewAnomalyDetector(testTracer, store, 200, 0.6)

	h := New(testTracer, market, newsSvc, engine, detector, NewHub(), domain.TrackedAssets)
	r := gin.New()
	h.RegisterRoutes(r)
	return r
}

func seedRecord(t *testing.T, store *repository.MemoryPriceRepository, asset string, price float64) {
	t.Helper()
	results := store.UpsertBatch(context.Background(), []*domain.MergedRecord{{
		AssetID:             asset,
		PriceUSD:            price,
		ContributingSources: []domain.SourceID{domain.SourceCoinGecko},
		CollectedAt:         time.Now().UTC(),
	}})
	for _, res := range results {
		if res.Err != nil {
			t.Fatalf("seed: %v", res.Err)
		}
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthIncludesLastCycle(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{cycle: &domain.CollectionCycle{
		CycleID:           "c-1",
		CompletenessScore: 1,
		ReliabilityScore:  0.67,
	}}
	r := newTestRouter(t, repository.NewMemoryPriceRepository(), runner)

	w := doRequest(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("status field = %v", resp["status"])
	}
	if _, ok := resp["last_cycle"]; !ok {
		t.Error("expected last_cycle in health payload")
	}
}

func TestGetPrice(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryPriceRepository()
	seedRecord(t, store, "bitcoin", 97000)
	r := newTestRouter(t, store, &stubRunner{})

	w := doRequest(r, http.MethodGet, "/api/prices/bitcoin", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var rec domain.MergedRecord
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.AssetID != "bitcoin" || rec.PriceUSD != 97000 {
		t.Errorf("record = %+v", rec)
	}

	// Ticker alias resolves to the same asset.
	w = doRequest(r, http.MethodGet, "/api/prices/BTC", "")
	if w.Code != http.StatusOK {
		t.Errorf("ticker alias status = %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/prices/notacoin", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unsupported asset status = %d, want 400", w.Code)
	}
}

func TestGetPriceNoDataYet(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, repository.NewMemoryPriceRepository(), &stubRunner{})
	w := doRequest(r, http.MethodGet, "/api/prices/bitcoin", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before first cycle", w.Code)
	}
}

func TestGetHistoryValidatesParams(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryPriceRepository()
	seedRecord(t, store, "ethereum", 3400)
	r := newTestRouter(t, store, &stubRunner{})

	w := doRequest(r, http.MethodGet, "/api/history/ethereum?hours=48", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodGet, "/api/history/ethereum?hours=zero", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad hours status = %d, want 400", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/history/notacoin", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("unsupported asset status = %d, want 400", w.Code)
	}
}

func TestGetLastCycle(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, repository.NewMemoryPriceRepository(), &stubRunner{})
	w := doRequest(r, http.MethodGet, "/api/cycles/last", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 before any cycle", w.Code)
	}

	runner := &stubRunner{cycle: &domain.CollectionCycle{CycleID: "c-9"}}
	r = newTestRouter(t, repository.NewMemoryPriceRepository(), runner)
	w = doRequest(r, http.MethodGet, "/api/cycles/last", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var cycle domain.CollectionCycle
	if err := json.Unmarshal(w.Body.Bytes(), &cycle); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cycle.CycleID != "c-9" {
		t.Errorf("cycle id = %s", cycle.CycleID)
	}
}

func TestTriggerCollect(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{cycle: &domain.CollectionCycle{
		CycleID:         "c-2",
		RequestedAssets: []string{"bitcoin"},
		RecordsWritten:  1,
	}}
	r := newTestRouter(t, repository.NewMemoryPriceRepository(), runner)

	w := doRequest(r, http.MethodPost, "/api/collect", `{"assets":["bitcoin"]}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	w = doRequest(r, http.MethodPost, "/api/collect", "")
	if w.Code != http.StatusOK {
		t.Errorf("empty body status = %d, want 200", w.Code)
	}

	w = doRequest(r, http.MethodPost, "/api/collect", `{"assets": 5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", w.Code)
	}
}

func TestTriggerCollectOverlapConflict(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, repository.NewMemoryPriceRepository(), &stubRunner{err: collector.ErrCycleInProgress})
	w := doRequest(r, http.MethodPost, "/api/collect", "")
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 while a cycle runs", w.Code)
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	t.Parallel()

	store := repository.NewMemoryPriceRepository()
	base := time.Now().UTC().Add(-time.Hour)
	var batch []*domain.MergedRecord
	for i := 0; i < 40; i++ {
		batch = append(batch, &domain.MergedRecord{
			AssetID:     "bitcoin",
			PriceUSD:    97000 + float64(i*10),
			CollectedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	store.UpsertBatch(context.Background(), batch)

	r := newTestRouter(t, store, &stubRunner{})
	for _, path := range []string{
		"/api/analysis/correlation",
		"/api/analysis/volatility",
		"/api/analysis/momentum",
		"/api/analysis/anomalies",
	} {
		w := doRequest(r, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d, body = %s", path, w.Code, w.Body.String())
		}
	}
}

func TestNewsEndpoints(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, repository.NewMemoryPriceRepository(), &stubRunner{})

	w := doRequest(r, http.MethodGet, "/api/news", "")
	if w.Code != http.StatusOK {
		t.Errorf("/api/news status = %d", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/news?limit=bogus", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", w.Code)
	}

	w = doRequest(r, http.MethodGet, "/api/news/sentiment", "")
	if w.Code != http.StatusOK {
		t.Fatalf("/api/news/sentiment status = %d", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if scored, ok := resp["scored"].(bool); !ok || scored {
		t.Errorf("expected scored=false with no news, got %v", resp)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(APIKeyAuth("sekret"))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := doRequest(r, http.MethodGet, "/ping", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("missing key status = %d, want 401", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("wrong key status = %d, want 403", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-API-Key", "sekret")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("valid key status = %d, want 200", w.Code)
	}

	open := gin.New()
	open.Use(APIKeyAuth(""))
	open.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = doRequest(open, http.MethodGet, "/ping", "")
	if w.Code != http.StatusOK {
		t.Errorf("disabled auth status = %d, want 200", w.Code)
	}
}
