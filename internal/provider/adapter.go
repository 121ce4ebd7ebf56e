package provider

import (
	"context"

	"coinpulse/internal/domain"
)

// Adapter is the fixed contract every market-data source implements. Fetch
// maps the requested canonical asset IDs to the source's own identifier
// scheme, calls the remote API, and normalizes whatever came back into
// AssetQuote values. It never returns an error: transport, parse, and auth
// failures are caught inside the adapter and surfaced as the status tag.
type Adapter interface {
	Source() domain.SourceID
	Fetch(ctx context.Context, assetIDs []string) ([]domain.AssetQuote, domain.SourceStatus)
}

// mapAssets resolves requested slugs through a source mapping table, keeping
// request order. Unmapped assets are silently skipped.
func mapAssets(assetIDs []string, mapping map[string]string) (slugs []string, sourceIDs []string) {
	for _, id := range assetIDs {
		mapped, ok := mapping[id]
		if !ok {
			continue
		}
		slugs = append(slugs, id)
		sourceIDs = append(sourceIDs, mapped)
	}
	return slugs, sourceIDs
}
