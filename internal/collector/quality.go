package collector

import "coinpulse/internal/domain"

// DefaultPartialWeight is how much a partial source counts toward
// reliability. There is no principled value for this constant, so it is
// configuration, not doctrine.
const DefaultPartialWeight = 0.5

// Scorer computes the advisory quality scores attached to a cycle. Scores
// never gate persistence; the pipeline writes what it has.
type Scorer struct {
	partialWeight float64
}

func NewScorer(partialWeight float64) *Scorer {
	if partialWeight < 0 || partialWeight > 1 {
		partialWeight = DefaultPartialWeight
	}
	return &Scorer{partialWeight: partialWeight}
}

// Score returns (completeness, reliability), both in [0,1].
// Completeness is the fraction of requested assets that produced a merged
// record, counted before persistence. If an individual upsert later fails,
// completeness can exceed the written-record fraction; the cycle's Errors
// and RecordsWritten carry that discrepancy, the score deliberately does
// not. Reliability weighs each configured source by its cycle status:
// ok=1, partial=partialWeight, rate_limited/error=0.
func (s *Scorer) Score(requested []string, mergedCount int, perSource map[domain.SourceID]domain.SourceStatus) (float64, float64) {
	completeness := 0.0
	if len(requested) > 0 {
		completeness = float64(mergedCount) / float64(len(requested))
		if completeness > 1 {
			completeness = 1
		}
	}

	reliability := 0.0
	if len(perSource) > 0 {
		weighted := 0.0
		for _, status := range perSource {
			switch status {
			case domain.StatusOK:
				weighted++
			case domain.StatusPartial:
				weighted += s.partialWeight
			}
		}
		reliability = weighted / float64(len(perSource))
	}

	return completeness, reliability
}
