package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"coinpulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const cryptopanicBaseURL = "https://cryptopanic.com/api/v1"

// CryptoPanicAdapter fetches hot crypto news posts from the CryptoPanic API.
// Disabled (returns no items) when no auth token is configured.
type CryptoPanicAdapter struct {
	client    *http.Client
	baseURL   string
	authToken string
	tracer    trace.Tracer
}

func NewCryptoPanicAdapter(tracer trace.Tracer, authToken string, timeout time.Duration) *CryptoPanicAdapter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CryptoPanicAdapter{
		client:    &http.Client{Timeout: timeout},
		baseURL:   cryptopanicBaseURL,
		authToken: strings.TrimSpace(authToken),
		tracer:    tracer,
	}
}

func (a *CryptoPanicAdapter) FetchHot(ctx context.Context, maxItems int) ([]domain.NewsItem, error) {
	if a.authToken == "" {
		return nil, nil
	}

	_, span := a.tracer.Start(ctx, "cryptopanic.fetch-hot")
	defer span.End()

	if maxItems <= 0 {
		maxItems = 40
	}

	params := url.Values{}
	params.Set("auth_token", a.authToken)
	params.Set("kind", "news")
	params.Set("filter", "hot")
	reqURL := a.baseURL + "/posts/?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cryptopanic API error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			PublishedAt string `json:"published_at"`
			Source      struct {
				Title string `json:"title"`
			} `json:"source"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode cryptopanic response: %w", err)
	}

	items := make([]domain.NewsItem, 0, min(maxItems, len(payload.Results)))
	for i, post := range payload.Results {
		if i >= maxItems {
			break
		}
		title := sanitizeText(post.Title, 300)
		if title == "" {
			continue
		}
		publishedAt := time.Now().UTC()
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(post.PublishedAt)); err == nil {
			publishedAt = t.UTC()
		}
		source := sanitizeText(post.Source.Title, 120)
		if source == "" {
			source = "CryptoPanic"
		}
		link := sanitizeText(post.URL, 500)

		items = append(items, domain.NewsItem{
			Source:      source,
			Title:       title,
			URL:         link,
			URLHash:     HashURL(link, title),
			PublishedAt: publishedAt,
		})
	}

	return items, nil
}
