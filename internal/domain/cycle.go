package domain

import "time"

// CycleState tracks where a collection cycle is in its lifecycle.
type CycleState string

const (
	CycleStarted    CycleState = "started"
	CycleFetching   CycleState = "fetching"
	CycleMerging    CycleState = "merging"
	CycleScoring    CycleState = "scoring"
	CycleAugmenting CycleState = "augmenting"
	CyclePersisting CycleState = "persisting"
	CycleFinished   CycleState = "finished"
)

// CollectionCycle is one end-to-end run of the collection pipeline. It is
// mutated only by the orchestrator while running and is immutable once
// FinishedAt is set.
type CollectionCycle struct {
	CycleID           string                    `json:"cycle_id"`
	State             CycleState                `json:"state"`
	StartedAt         time.Time                 `json:"started_at"`
	FinishedAt        time.Time                 `json:"finished_at,omitempty"`
	RequestedAssets   []string                  `json:"requested_assets"`
	PerSourceStatus   map[SourceID]SourceStatus `json:"per_source_status"`
	CompletenessScore float64                   `json:"completeness_score"`
	ReliabilityScore  float64                   `json:"reliability_score"`
	RecordsWritten    int                       `json:"records_written"`
	DroppedAssets     []string                  `json:"dropped_assets,omitempty"`
	Errors            []string                  `json:"errors,omitempty"`
}

// WriteResult reports the outcome of persisting one merged record.
type WriteResult struct {
	AssetID     string    `json:"asset_id"`
	CollectedAt time.Time `json:"collected_at"`
	Err         error     `json:"-"`
}

// NewsItem is one normalized news article from any news source.
type NewsItem struct {
	ID             int64     `json:"id"`
	Source         string    `json:"source"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	URLHash        string    `json:"url_hash"`
	Excerpt        string    `json:"excerpt,omitempty"`
	PublishedAt    time.Time `json:"published_at"`
	SentimentScore *float64  `json:"sentiment_score,omitempty"`
	SentimentLabel string    `json:"sentiment_label,omitempty"`
	ScoredBy       string    `json:"scored_by,omitempty"`
}
