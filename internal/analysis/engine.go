package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"coinpulse/internal/indicator"

	"go.opentelemetry.io/otel/trace"
)

// HistoryReader is the slice of the persistence gateway the engine needs.
type HistoryReader interface {
	GetPriceHistory(ctx context.Context, assetID string, limit int) ([]float64, error)
}

// AssetVolatility pairs an asset with its return volatility.
type AssetVolatility struct {
	AssetID    string  `json:"asset_id"`
	Volatility float64 `json:"volatility"`
}

// AssetMomentum is the percentage move over the analysis window.
type AssetMomentum struct {
	AssetID  string  `json:"asset_id"`
	Momentum float64 `json:"momentum_pct"`
}

// Engine computes cross-asset statistics over collected price history.
type Engine struct {
	tracer trace.Tracer
	store  HistoryReader
	points int
}

func NewEngine(tracer trace.Tracer, store HistoryReader, points int) *Engine {
	if points <= 0 {
		points = 100
	}
	return &Engine{tracer: tracer, store: store, points: points}
}

// CorrelationMatrix returns pairwise Pearson correlation of returns. Assets
// with fewer than three usable returns are omitted rather than padded.
func (e *Engine) CorrelationMatrix(ctx context.Context, assetIDs []string) (map[string]map[string]float64, error) {
	ctx, span := e.tracer.Start(ctx, "analysis.correlation-matrix")
	defer span.End()

	returnsByAsset := make(map[string][]float64, len(assetIDs))
	for _, id := range assetIDs {
		closes, err := e.store.GetPriceHistory(ctx, id, e.points)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", id, err)
		}
		if r := returns(closes); len(r) >= 3 {
			returnsByAsset[id] = r
		}
	}

	matrix := make(map[string]map[string]float64, len(returnsByAsset))
	for a, ra := range returnsByAsset {
		matrix[a] = make(map[string]float64, len(returnsByAsset))
		for b, rb := range returnsByAsset {
			matrix[a][b] = pearson(ra, rb)
		}
	}
	return matrix, nil
}

// VolatilityRanking sorts assets by return volatility, most volatile first.
func (e *Engine) VolatilityRanking(ctx context.Context, assetIDs []string) ([]AssetVolatility, error) {
	ctx, span := e.tracer.Start(ctx, "analysis.volatility-ranking")
	defer span.End()

	var ranking []AssetVolatility
	for _, id := range assetIDs {
		closes, err := e.store.GetPriceHistory(ctx, id, e.points)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", id, err)
		}
		r := returns(closes)
		if len(r) < 2 {
			continue
		}
		_, std := indicator.MeanStd(r)
		ranking = append(ranking, AssetVolatility{AssetID: id, Volatility: std})
	}

	sort.Slice(ranking, func(i, j int) bool { return ranking[i].Volatility > ranking[j].Volatility })
	return ranking, nil
}

// Momentum measures the percent change from the start to the end of each
// asset's window, strongest first.
func (e *Engine) Momentum(ctx context.Context, assetIDs []string) ([]AssetMomentum, error) {
	ctx, span := e.tracer.Start(ctx, "analysis.momentum")
	defer span.End()

	var out []AssetMomentum
	for _, id := range assetIDs {
		closes, err := e.store.GetPriceHistory(ctx, id, e.points)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", id, err)
		}
		if len(closes) < 2 || closes[0] == 0 {
			continue
		}
		move := (closes[len(closes)-1] - closes[0]) / closes[0] * 100
		out = append(out, AssetMomentum{AssetID: id, Momentum: move})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Momentum > out[j].Momentum })
	return out, nil
}

// returns converts closes to percentage returns, skipping zero denominators.
func returns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, (closes[i]-closes[i-1])/closes[i-1]*100)
	}
	return out
}

// pearson truncates to the shorter series so assets with different history
// depths still correlate.
func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	a, b = a[len(a)-n:], b[len(b)-n:]

	meanA, stdA := indicator.MeanStd(a)
	meanB, stdB := indicator.MeanStd(b)
	if stdA == 0 || stdB == 0 {
		return 0
	}

	var cov float64
	for i := 0; i < n; i++ {
		cov += (a[i] - meanA) * (b[i] - meanB)
	}
	cov /= float64(n)

	r := cov / (stdA * stdB)
	if math.IsNaN(r) {
		return 0
	}
	return r
}
