package provider

import (
	"sync"
	"time"

	"coinpulse/internal/domain"
)

// SourceBudget configures the governor for one source.
type SourceBudget struct {
	RequestsPerMinute int
	BackoffBase       time.Duration
	BackoffCap        time.Duration
}

type sourceState struct {
	mu sync.Mutex

	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time

	backoffUntil time.Time
	backoffNext  time.Duration
	backoffBase  time.Duration
	backoffCap   time.Duration
}

// Governor throttles outbound calls per source. Each source has a token
// bucket replenished at its configured requests-per-minute budget, plus an
// exponential backoff window imposed when the source reports rate limiting.
// The backoff is independent of the bucket and clears after one success.
type Governor struct {
	mu      sync.Mutex
	sources map[domain.SourceID]*sourceState
}

func NewGovernor(budgets map[domain.SourceID]SourceBudget) *Governor {
	g := &Governor{sources: make(map[domain.SourceID]*sourceState, len(budgets))}
	for source, b := range budgets {
		rpm := b.RequestsPerMinute
		if rpm <= 0 {
			rpm = 1
		}
		base := b.BackoffBase
		if base <= 0 {
			base = time.Second
		}
		cap := b.BackoffCap
		if cap < base {
			cap = base
		}
		g.sources[source] = &sourceState{
			tokens:      float64(rpm),
			capacity:    float64(rpm),
			refillRate:  float64(rpm) / 60.0,
			lastRefill:  time.Now(),
			backoffNext: base,
			backoffBase: base,
			backoffCap:  cap,
		}
	}
	return g
}

// Authorize consumes one token for the source if available. When denied it
// returns the duration until the caller may try again. Unknown sources are
// always authorized (no published limit configured).
func (g *Governor) Authorize(source domain.SourceID) (bool, time.Duration) {
	s := g.state(source)
	if s == nil {
		return true, 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if now.Before(s.backoffUntil) {
		return false, s.backoffUntil.Sub(now)
	}

	s.refill(now)
	if s.tokens >= 1 {
		s.tokens--
		return true, 0
	}

	// Time until one full token accrues.
	deficit := 1 - s.tokens
	wait := time.Duration(deficit / s.refillRate * float64(time.Second))
	if wait <= 0 {
		wait = time.Millisecond
	}
	return false, wait
}

// ReportOutcome feeds an adapter call result back into the governor. A
// rate_limited outcome opens (or doubles) the source's backoff window up to
// its cap; any successful outcome closes the window and resets the doubling.
func (g *Governor) ReportOutcome(source domain.SourceID, status domain.SourceStatus) {
	s := g.state(source)
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch status {
	case domain.StatusRateLimited:
		s.backoffUntil = time.Now().Add(s.backoffNext)
		s.backoffNext *= 2
		if s.backoffNext > s.backoffCap {
			s.backoffNext = s.backoffCap
		}
	case domain.StatusOK, domain.StatusPartial:
		s.backoffUntil = time.Time{}
		s.backoffNext = s.backoffBase
	}
}

func (g *Governor) state(source domain.SourceID) *sourceState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.sources[source]
}

func (s *sourceState) refill(now time.Time) {
	elapsed := now.Sub(s.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	s.tokens += elapsed * s.refillRate
	if s.tokens > s.capacity {
		s.tokens = s.capacity
	}
	s.lastRefill = now
}
