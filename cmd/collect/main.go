// Command collect runs a single collection cycle and exits. Useful for cron
// setups and for smoke-testing source credentials without the full server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"coinpulse/internal/collector"
	"coinpulse/internal/config"
	"coinpulse/internal/db"
	"coinpulse/internal/domain"
	"coinpulse/internal/indicator"
	"coinpulse/internal/provider"
	"coinpulse/internal/repository"
	"coinpulse/pkg/tracing"

	"github.com/joho/godotenv"
)

func main() {
	assetsFlag := flag.String("assets", "", "comma-separated asset slugs (default: configured set)")
	flag.Parse()

	godotenv.Load()

	cfg := config.Load()

	assets := cfg.Assets
	if v := strings.TrimSpace(*assetsFlag); v != "" {
		assets = nil
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				assets = append(assets, part)
			}
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	db.InitPostgres(ctx)
	defer db.Close()

	tp, tracer, err := tracing.InitTracer(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer tp.Shutdown(ctx)

	var gateway interface {
		collector.Gateway
		RunMigrations(ctx context.Context) error
	}
	if db.Pool != nil {
		gateway = repository.NewPriceRepository(db.Pool, tracer)
	} else {
		gateway = repository.NewMemoryPriceRepository()
	}
	if err := gateway.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	adapters := []provider.Adapter{
		provider.NewCoinGeckoAdapter(tracer, cfg.CoinGeckoAPIKey, cfg.FetchTimeout, cfg.CoinGeckoAssetMap),
		provider.NewCoinPaprikaAdapter(tracer, cfg.FetchTimeout, cfg.CoinPaprikaAssetMap),
		provider.NewCoinStatsAdapter(tracer, cfg.CoinStatsAPIKey, cfg.FetchTimeout, cfg.CoinStatsAssetMap),
		provider.NewCoinDeskAdapter(tracer, cfg.FetchTimeout),
	}
	governor := provider.NewGovernor(map[domain.SourceID]provider.SourceBudget{
		domain.SourceCoinGecko:   {RequestsPerMinute: cfg.CoinGeckoRatePerMin, BackoffBase: cfg.BackoffBase, BackoffCap: cfg.BackoffCap},
		domain.SourceCoinPaprika: {RequestsPerMinute: cfg.CoinPaprikaRatePerMin, BackoffBase: cfg.BackoffBase, BackoffCap: cfg.BackoffCap},
		domain.SourceCoinStats:   {RequestsPerMinute: cfg.CoinStatsRatePerMin, BackoffBase: cfg.BackoffBase, BackoffCap: cfg.BackoffCap},
		domain.SourceCoinDesk:    {RequestsPerMinute: cfg.CoinDeskRatePerMin, BackoffBase: cfg.BackoffBase, BackoffCap: cfg.BackoffCap},
	})

	orch := collector.NewOrchestrator(
		tracer, adapters, governor,
		collector.NewScorer(cfg.PartialSourceWeight),
		indicator.NewCalculator(),
		gateway,
		collector.Config{
			Priority:      cfg.SourcePriority,
			FetchTimeout:  cfg.FetchTimeout,
			CycleDeadline: cfg.CycleDeadline,
		},
	)

	cycle, err := orch.RunCycle(ctx, assets)
	if err != nil {
		log.Fatalf("cycle failed: %v", err)
	}

	fmt.Printf("cycle %s finished in %s\n", cycle.CycleID, cycle.FinishedAt.Sub(cycle.StartedAt))
	fmt.Printf("  records written: %d\n", cycle.RecordsWritten)
	fmt.Printf("  reliability:     %.2f\n", cycle.ReliabilityScore)
	fmt.Printf("  completeness:    %.2f\n", cycle.CompletenessScore)
	if len(cycle.DroppedAssets) > 0 {
		fmt.Printf("  dropped:         %v\n", cycle.DroppedAssets)
	}
	for _, e := range cycle.Errors {
		fmt.Printf("  error: %s\n", e)
	}
	if len(cycle.Errors) > 0 || len(cycle.DroppedAssets) == len(cycle.RequestedAssets) {
		os.Exit(1)
	}
}
