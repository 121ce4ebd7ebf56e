package news

import (
	"context"
	"errors"
	"testing"

	"coinpulse/internal/domain"
)

func TestHeuristicSentiment(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		title string
		label string
	}{
		{"bullish", "Bitcoin breakout: rally continues as adoption grows", "bullish"},
		{"bearish", "Exchange hack triggers sell-off and liquidation cascade", "bearish"},
		{"neutral", "Weekly market report for April", "neutral"},
		{"empty", "", "neutral"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			score, label := HeuristicSentiment(tc.title, "")
			if label != tc.label {
				t.Errorf("label = %q, want %q (score %v)", label, tc.label, score)
			}
			if score < -1 || score > 1 {
				t.Errorf("score %v outside [-1, 1]", score)
			}
		})
	}
}

type fakeLLM struct {
	scores []SentimentScore
	err    error
	calls  int
}

func (f *fakeLLM) ScoreBatch(ctx context.Context, items []domain.NewsItem) ([]SentimentScore, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.scores, nil
}

func TestScorerLLMOverridesHeuristic(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{scores: []SentimentScore{
		{ItemID: 1, Score: 0.9, Label: "bullish", Model: "llm:test"},
	}}
	scorer := NewScorer(llm, 10)

	items := []domain.NewsItem{
		{ID: 1, Title: "Weekly market report"},
		{ID: 2, Title: "Another quiet day"},
	}
	out := scorer.Score(context.Background(), items)
	if len(out) != 2 {
		t.Fatalf("scored %d items, want 2", len(out))
	}
	if out[0].Model != "llm:test" || out[0].Score != 0.9 {
		t.Errorf("item 1 = %+v, want llm override", out[0])
	}
	if out[1].Model != "heuristic:v1" {
		t.Errorf("item 2 = %+v, want heuristic fallback", out[1])
	}
}

func TestScorerLLMFailureKeepsHeuristic(t *testing.T) {
	t.Parallel()

	scorer := NewScorer(&fakeLLM{err: errors.New("rate limit")}, 10)
	out := scorer.Score(context.Background(), []domain.NewsItem{
		{ID: 1, Title: "Bitcoin rally and breakout"},
	})
	if len(out) != 1 {
		t.Fatalf("scored %d items, want 1", len(out))
	}
	if out[0].Model != "heuristic:v1" || out[0].Label != "bullish" {
		t.Errorf("fallback score = %+v", out[0])
	}
}

func TestScorerBatching(t *testing.T) {
	t.Parallel()

	llm := &fakeLLM{}
	scorer := NewScorer(llm, 2)
	items := make([]domain.NewsItem, 5)
	for i := range items {
		items[i] = domain.NewsItem{ID: int64(i + 1), Title: "headline"}
	}
	scorer.Score(context.Background(), items)
	if llm.calls != 3 {
		t.Errorf("llm batches = %d, want 3 for 5 items at size 2", llm.calls)
	}
}

func TestNewOpenAIScorerWithoutKey(t *testing.T) {
	t.Parallel()

	if s := NewOpenAIScorer("", "gpt-4o-mini"); s != nil {
		t.Error("empty api key should produce a nil scorer")
	}
	if s := NewOpenAIScorer("   ", ""); s != nil {
		t.Error("blank api key should produce a nil scorer")
	}
}

func TestTrimCodeFence(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"```json\n[{\"id\":1}]\n```": `[{"id":1}]`,
		"```\n[]\n```":               "[]",
		"[]":                         "[]",
	}
	for in, want := range cases {
		if got := trimCodeFence(in); got != want {
			t.Errorf("trimCodeFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeLabel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"Bullish":  "bullish",
		"positive": "bullish",
		"BEAR":     "bearish",
		"negative": "bearish",
		"meh":      "neutral",
		"":         "neutral",
	}
	for in, want := range cases {
		if got := normalizeLabel(in); got != want {
			t.Errorf("normalizeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
