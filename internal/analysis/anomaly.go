package analysis

import (
	"context"
	"fmt"
	"math"

	"github.com/narumiruna/go-iforest/pkg/iforest"
	"go.opentelemetry.io/otel/trace"
)

// AssetAnomaly is the isolation-forest score for an asset's latest move.
// Scores run 0..1; higher means more isolated from the asset's own history.
type AssetAnomaly struct {
	AssetID   string  `json:"asset_id"`
	Score     float64 `json:"score"`
	Anomalous bool    `json:"anomalous"`
}

const defaultAnomalyThreshold = 0.6

// AnomalyDetector fits an isolation forest per asset on its return history
// and scores the newest observation against it.
type AnomalyDetector struct {
	tracer    trace.Tracer
	store     HistoryReader
	points    int
	threshold float64
}

func NewAnomalyDetector(tracer trace.Tracer, store HistoryReader, points int, threshold float64) *AnomalyDetector {
	if points <= 0 {
		points = 200
	}
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultAnomalyThreshold
	}
	return &AnomalyDetector{tracer: tracer, store: store, points: points, threshold: threshold}
}

// Detect scores each asset's latest point. Assets without enough history are
// omitted; a forest fit on a handful of points isolates everything.
func (d *AnomalyDetector) Detect(ctx context.Context, assetIDs []string) ([]AssetAnomaly, error) {
	ctx, span := d.tracer.Start(ctx, "analysis.anomaly-detect")
	defer span.End()

	var out []AssetAnomaly
	for _, id := range assetIDs {
		closes, err := d.store.GetPriceHistory(ctx, id, d.points)
		if err != nil {
			return nil, fmt.Errorf("history %s: %w", id, err)
		}

		features := returnFeatures(closes)
		if len(features) < 30 {
			continue
		}

		model := iforest.New()
		model.Fit(features)
		scores := model.Score(features)
		latest := scores[len(scores)-1]

		out = append(out, AssetAnomaly{
			AssetID:   id,
			Score:     latest,
			Anomalous: latest >= d.threshold,
		})
	}
	return out, nil
}

// returnFeatures turns a close series into per-point feature rows:
// the return and its magnitude relative to the running mean move.
func returnFeatures(closes []float64) [][]float64 {
	r := returns(closes)
	if len(r) == 0 {
		return nil
	}

	var sumAbs float64
	features := make([][]float64, 0, len(r))
	for i, v := range r {
		sumAbs += math.Abs(v)
		meanAbs := sumAbs / float64(i+1)
		rel := 0.0
		if meanAbs > 0 {
			rel = math.Abs(v) / meanAbs
		}
		features = append(features, []float64{v, rel})
	}
	return features
}
