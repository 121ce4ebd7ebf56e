package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"coinpulse/internal/domain"
)

type Config struct {
	DatabaseURL string
	RedisURL    string

	Assets         []string
	SourcePriority []domain.SourceID

	CoinGeckoRatePerMin   int
	CoinPaprikaRatePerMin int
	CoinStatsRatePerMin   int
	CoinDeskRatePerMin    int
	CoinGeckoAPIKey       string
	CoinStatsAPIKey       string

	// Per-source asset mapping overrides; nil means the adapter's compiled-in
	// table.
	CoinGeckoAssetMap   map[string]string
	CoinPaprikaAssetMap map[string]string
	CoinStatsAssetMap   map[string]string

	FetchTimeout        time.Duration
	CycleDeadline       time.Duration
	BackoffBase         time.Duration
	BackoffCap          time.Duration
	CollectIntervalSecs int
	PartialSourceWeight float64

	NewsFeeds        []string
	NewsPollSecs     int
	CryptoPanicToken string
	OpenAIAPIKey     string
	OpenAIModel      string

	TelegramBotToken          string
	AlertChatID               int64
	ReliabilityAlertThreshold float64

	HTTPAPIKey string
	HTTPPort   int
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CoinGeckoAPIKey:  os.Getenv("COINGECKO_API_KEY"),
		CoinStatsAPIKey:  os.Getenv("COINSTATS_API_KEY"),
		CryptoPanicToken: os.Getenv("CRYPTOPANIC_TOKEN"),
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		HTTPAPIKey:       os.Getenv("HTTP_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, using in-memory persistence")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, price cache disabled")
	}

	cfg.Assets = splitCSV(os.Getenv("ASSETS"))
	if len(cfg.Assets) == 0 {
		cfg.Assets = domain.TrackedAssets
	}

	cfg.SourcePriority = parsePriority(os.Getenv("SOURCE_PRIORITY"))

	cfg.CoinGeckoRatePerMin = envInt("COINGECKO_RATE_PER_MIN", 30)
	cfg.CoinPaprikaRatePerMin = envInt("COINPAPRIKA_RATE_PER_MIN", 25)
	cfg.CoinStatsRatePerMin = envInt("COINSTATS_RATE_PER_MIN", 20)
	cfg.CoinDeskRatePerMin = envInt("COINDESK_RATE_PER_MIN", 60)

	cfg.CoinGeckoAssetMap = parseAssetMap("COINGECKO_ASSET_MAP")
	cfg.CoinPaprikaAssetMap = parseAssetMap("COINPAPRIKA_ASSET_MAP")
	cfg.CoinStatsAssetMap = parseAssetMap("COINSTATS_ASSET_MAP")

	cfg.FetchTimeout = time.Duration(envInt("FETCH_TIMEOUT_SECS", 30)) * time.Second
	cfg.CycleDeadline = time.Duration(envInt("CYCLE_DEADLINE_SECS", 120)) * time.Second
	cfg.BackoffBase = time.Duration(envInt("BACKOFF_BASE_SECS", 2)) * time.Second
	cfg.BackoffCap = time.Duration(envInt("BACKOFF_CAP_SECS", 300)) * time.Second
	cfg.CollectIntervalSecs = envInt("COLLECT_INTERVAL_SECS", 300)

	cfg.PartialSourceWeight = envFloat("PARTIAL_SOURCE_WEIGHT", 0.5)
	if cfg.PartialSourceWeight < 0 || cfg.PartialSourceWeight > 1 {
		log.Printf("Warning: PARTIAL_SOURCE_WEIGHT=%v out of range, using 0.5", cfg.PartialSourceWeight)
		cfg.PartialSourceWeight = 0.5
	}

	cfg.NewsFeeds = splitCSV(os.Getenv("NEWS_FEEDS"))
	if len(cfg.NewsFeeds) == 0 {
		cfg.NewsFeeds = []string{
			"https://www.coindesk.com/arc/outboundfeeds/rss/",
			"https://cointelegraph.com/rss",
		}
	}
	cfg.NewsPollSecs = envInt("NEWS_POLL_SECS", 900)

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, news sentiment uses heuristics only")
	}

	if v := strings.TrimSpace(os.Getenv("ALERT_CHAT_ID")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.AlertChatID = n
		} else {
			log.Printf("Warning: invalid ALERT_CHAT_ID=%q, alerts disabled", v)
		}
	}

	cfg.ReliabilityAlertThreshold = envFloat("RELIABILITY_ALERT_THRESHOLD", 0.5)

	cfg.HTTPPort = envInt("HTTP_PORT", 8080)

	return cfg
}

func envInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
		log.Printf("Warning: invalid %s=%q, using %v", key, v, def)
	}
	return def
}

// parseAssetMap parses "bitcoin=btc-bitcoin,ethereum=eth-ethereum" into a
// slug-to-source-id table. Malformed pairs are skipped with a warning.
func parseAssetMap(key string) map[string]string {
	pairs := splitCSV(os.Getenv(key))
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		slug, id, ok := strings.Cut(pair, "=")
		slug, id = strings.TrimSpace(slug), strings.TrimSpace(id)
		if !ok || slug == "" || id == "" {
			log.Printf("Warning: malformed entry %q in %s, skipping", pair, key)
			continue
		}
		out[slug] = id
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parsePriority turns "coingecko,coinpaprika" into a priority list, dropping
// unknown names. Empty input falls back to the built-in order.
func parsePriority(v string) []domain.SourceID {
	known := map[domain.SourceID]bool{
		domain.SourceCoinGecko:   true,
		domain.SourceCoinPaprika: true,
		domain.SourceCoinStats:   true,
		domain.SourceCoinDesk:    true,
	}

	var out []domain.SourceID
	for _, name := range splitCSV(v) {
		id := domain.SourceID(strings.ToLower(name))
		if !known[id] {
			log.Printf("Warning: unknown source %q in SOURCE_PRIORITY, skipping", name)
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return []domain.SourceID{
			domain.SourceCoinGecko,
			domain.SourceCoinPaprika,
			domain.SourceCoinStats,
			domain.SourceCoinDesk,
		}
	}
	return out
}
