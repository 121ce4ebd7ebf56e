package collector

import (
	"time"

	"coinpulse/internal/domain"
)

// mergeFields is the fixed field order the merge engine fills.
var mergeFields = []string{
	domain.FieldPriceUSD,
	domain.FieldMarketCap,
	domain.FieldVolume24h,
	domain.FieldChange24hPct,
}

// Merge reconciles all quotes for one asset into a single record. For each
// field it scans the quotes in priority order and takes the first present
// value, recording which source supplied it. Returns nil when no source
// supplied a price; a record without a price is never persisted.
//
// Merge is pure: identical quotes, priority, and collectedAt always produce
// an identical record.
func Merge(assetID string, quotes []domain.AssetQuote, priority []domain.SourceID, collectedAt time.Time) *domain.MergedRecord {
	if len(quotes) == 0 {
		return nil
	}

	bySource := make(map[domain.SourceID]*domain.AssetQuote, len(quotes))
	for i := range quotes {
		q := &quotes[i]
		if q.AssetID != assetID {
			continue
		}
		// First quote wins if a source somehow reported twice.
		if _, ok := bySource[q.SourceID]; !ok {
			bySource[q.SourceID] = q
		}
	}
	if len(bySource) == 0 {
		return nil
	}

	record := &domain.MergedRecord{
		AssetID:      assetID,
		FieldSources: make(map[string]domain.SourceID, len(mergeFields)),
		CollectedAt:  collectedAt,
	}

	used := make(map[domain.SourceID]bool, len(priority))
	takeFrom := func(field string, source domain.SourceID) {
		record.FieldSources[field] = source
		if !used[source] {
			used[source] = true
			record.ContributingSources = append(record.ContributingSources, source)
		}
	}

	for _, field := range mergeFields {
		for _, source := range priority {
			q, ok := bySource[source]
			if !ok {
				continue
			}
			switch field {
			case domain.FieldPriceUSD:
				if q.PriceUSD > 0 {
					record.PriceUSD = q.PriceUSD
					takeFrom(field, source)
				} else {
					continue
				}
			case domain.FieldMarketCap:
				if q.MarketCap == nil {
					continue
				}
				record.MarketCap = q.MarketCap
				takeFrom(field, source)
			case domain.FieldVolume24h:
				if q.Volume24h == nil {
					continue
				}
				record.Volume24h = q.Volume24h
				takeFrom(field, source)
			case domain.FieldChange24hPct:
				if q.Change24hPct == nil {
					continue
				}
				record.Change24hPct = q.Change24hPct
				takeFrom(field, source)
			}
			break
		}
	}

	if _, ok := record.FieldSources[domain.FieldPriceUSD]; !ok {
		// No-price gap, not a pipeline error.
		return nil
	}
	return record
}
