package bot

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"coinpulse/internal/domain"
	"coinpulse/internal/service"

	tele "gopkg.in/telebot.v3"
)

// Sender is the telebot surface the alerter needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramBot answers price and cycle queries and pushes degraded-cycle
// alerts to a configured chat.
type TelegramBot struct {
	bot            Sender
	market         *service.MarketService
	alertChatID    int64
	alertThreshold float64
}

// StartTelegramBot wires command handlers and starts long polling. Returns
// nil when no token is configured; callers treat that as alerting disabled.
func StartTelegramBot(token string, market *service.MarketService, alertChatID int64, alertThreshold float64) *TelegramBot {
	if token == "" {
		log.Println("TELEGRAM_BOT_TOKEN not set, skipping Telegram bot startup")
		return nil
	}
	pref := tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}
	b, err := tele.NewBot(pref)
	if err != nil {
		log.Fatalf("failed to create Telegram bot: %v", err)
	}

	t := &TelegramBot{bot: b, market: market, alertChatID: alertChatID, alertThreshold: alertThreshold}

	b.Handle("/ping", func(c tele.Context) error {
		return c.Send("pong")
	})

	b.Handle("/price", func(c tele.Context) error {
		args := c.Args()
		if len(args) == 0 {
			return c.Send(fmt.Sprintf("Usage: /price bitcoin\nTracked: %s", strings.Join(domain.TrackedAssets, ", ")))
		}
		return c.Send(t.priceMessage(context.Background(), args[0]))
	})

	b.Handle("/cycle", func(c tele.Context) error {
		return c.Send(t.cycleMessage())
	})

	log.Println("Telegram bot started")
	go b.Start()
	return t
}

func (t *TelegramBot) priceMessage(ctx context.Context, arg string) string {
	asset := strings.ToLower(arg)
	if slug, ok := domain.SymbolAsset[strings.ToUpper(arg)]; ok {
		asset = slug
	}
	if !domain.IsTracked(asset) {
		return fmt.Sprintf("Unknown asset: %s\nTracked: %s", arg, strings.Join(domain.TrackedAssets, ", "))
	}

	record, err := t.market.GetLatestPrice(ctx, asset)
	if err != nil {
		return fmt.Sprintf("Error fetching %s: %v", asset, err)
	}

	msg := fmt.Sprintf("%s\nPrice: $%.2f", domain.AssetSymbol[asset], record.PriceUSD)
	if record.Change24hPct != nil {
		msg += fmt.Sprintf("\n24h Change: %.2f%%", *record.Change24hPct)
	}
	if record.Volume24h != nil {
		msg += fmt.Sprintf("\n24h Volume: $%.0f", *record.Volume24h)
	}
	msg += fmt.Sprintf("\nSources: %s", joinSourceNames(record.ContributingSources))
	return msg
}

func (t *TelegramBot) cycleMessage() string {
	cycle := t.market.LastCycle()
	if cycle == nil {
		return "No collection cycle has run yet."
	}
	return fmt.Sprintf(
		"Cycle %s\nFinished: %s\nRecords: %d\nCompleteness: %.0f%%\nReliability: %.0f%%",
		cycle.CycleID, cycle.FinishedAt.Format(time.RFC3339),
		cycle.RecordsWritten,
		cycle.CompletenessScore*100, cycle.ReliabilityScore*100,
	)
}

// NotifyCycle alerts the configured chat when a cycle finishes degraded.
// Healthy cycles stay quiet.
func (t *TelegramBot) NotifyCycle(cycle *domain.CollectionCycle) {
	if t == nil || t.alertChatID == 0 || cycle == nil {
		return
	}
	if cycle.ReliabilityScore >= t.alertThreshold && len(cycle.DroppedAssets) == 0 {
		return
	}

	msg := fmt.Sprintf(
		"Degraded collection cycle %s\nReliability: %.0f%%\nCompleteness: %.0f%%",
		cycle.CycleID, cycle.ReliabilityScore*100, cycle.CompletenessScore*100,
	)
	if len(cycle.DroppedAssets) > 0 {
		msg += "\nDropped: " + strings.Join(cycle.DroppedAssets, ", ")
	}
	for source, status := range cycle.PerSourceStatus {
		if status == domain.StatusRateLimited || status == domain.StatusError {
			msg += fmt.Sprintf("\n%s: %s", source, status)
		}
	}

	if _, err := t.bot.Send(tele.ChatID(t.alertChatID), msg); err != nil {
		log.Printf("telegram alert: %v", err)
	}
}

func joinSourceNames(sources []domain.SourceID) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, "+")
}
