package provider

import (
	"sync"
	"testing"
	"time"

	"coinpulse/internal/domain"
)

func newTestGovernor(rpm int) *Governor {
	return NewGovernor(map[domain.SourceID]SourceBudget{
		domain.SourceCoinGecko: {
			RequestsPerMinute: rpm,
			BackoffBase:       time.Second,
			BackoffCap:        8 * time.Second,
		},
	})
}

func TestGovernorBudgetExhaustion(t *testing.T) {
	t.Parallel()

	g := newTestGovernor(3)
	for i := 0; i < 3; i++ {
		ok, _ := g.Authorize(domain.SourceCoinGecko)
		if !ok {
			t.Fatalf("authorization %d should succeed within budget", i+1)
		}
	}

	ok, retryAfter := g.Authorize(domain.SourceCoinGecko)
	if ok {
		t.Fatal("fourth authorization should be denied")
	}
	if retryAfter <= 0 {
		t.Fatalf("denied authorization must carry a positive retry_after, got %v", retryAfter)
	}
}

func TestGovernorUnknownSourceAlwaysAuthorized(t *testing.T) {
	t.Parallel()

	g := newTestGovernor(1)
	for i := 0; i < 5; i++ {
		if ok, _ := g.Authorize(domain.SourceCoinDesk); !ok {
			t.Fatal("unconfigured source should not be throttled")
		}
	}
}

func TestGovernorBackoffDoublingAndCap(t *testing.T) {
	t.Parallel()

	g := newTestGovernor(100)
	s := g.state(domain.SourceCoinGecko)

	for _, expectedNext := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 8 * time.Second} {
		g.ReportOutcome(domain.SourceCoinGecko, domain.StatusRateLimited)
		s.mu.Lock()
		next := s.backoffNext
		until := s.backoffUntil
		s.mu.Unlock()
		if next != expectedNext {
			t.Fatalf("expected next backoff %v, got %v", expectedNext, next)
		}
		if !until.After(time.Now()) {
			t.Fatal("backoff window should be open")
		}
	}

	ok, retryAfter := g.Authorize(domain.SourceCoinGecko)
	if ok {
		t.Fatal("authorize must be denied while the backoff window is open")
	}
	if retryAfter <= 0 {
		t.Fatalf("expected positive retry_after during backoff, got %v", retryAfter)
	}
}

func TestGovernorBackoffClearedAfterSuccess(t *testing.T) {
	t.Parallel()

	g := newTestGovernor(100)
	g.ReportOutcome(domain.SourceCoinGecko, domain.StatusRateLimited)
	g.ReportOutcome(domain.SourceCoinGecko, domain.StatusRateLimited)
	g.ReportOutcome(domain.SourceCoinGecko, domain.StatusOK)

	if ok, _ := g.Authorize(domain.SourceCoinGecko); !ok {
		t.Fatal("success should close the backoff window")
	}

	s := g.state(domain.SourceCoinGecko)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.backoffNext != time.Second {
		t.Fatalf("success should reset the doubling, got %v", s.backoffNext)
	}
}

func TestGovernorConcurrentAuthorizeSpendsLastTokenOnce(t *testing.T) {
	t.Parallel()

	g := newTestGovernor(1)

	const callers = 16
	var wg sync.WaitGroup
	granted := make(chan struct{}, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := g.Authorize(domain.SourceCoinGecko); ok {
				granted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(granted)

	count := 0
	for range granted {
		count++
	}
	if count != 1 {
		t.Fatalf("exactly one concurrent authorize may win the last token, got %d", count)
	}
}
