package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coinpulse/internal/analysis"
	"coinpulse/internal/bot"
	"coinpulse/internal/cache"
	"coinpulse/internal/collector"
	"coinpulse/internal/config"
	"coinpulse/internal/db"
	"coinpulse/internal/domain"
	"coinpulse/internal/handler"
	"coinpulse/internal/indicator"
	"coinpulse/internal/job"
	"coinpulse/internal/news"
	"coinpulse/internal/provider"
	"coinpulse/internal/repository"
	"coinpulse/internal/service"
	"coinpulse/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "coinpulse/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newRouterFunc          = gin.Default
	startTelegramBotFunc   = bot.StartTelegramBot
	startCollectorJobFunc  = func(j *job.CollectorJob, ctx context.Context) { go j.Start(ctx) }
	startNewsJobFunc       = func(j *job.NewsJob, ctx context.Context) { go j.Start(ctx) }
	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// gateway is the persistence surface shared by the pipeline and the read API.
type gateway interface {
	collector.Gateway
	service.PriceStore
	job.CycleSink
	RunMigrations(ctx context.Context) error
}

// @title           CoinPulse API
// @version         1.0
// @description     Multi-source crypto market data collection service.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Persistence: Postgres when configured, in-memory otherwise.
	var store gateway
	var newsStore news.Store
	if db.Pool != nil {
		store = repository.NewPriceRepository(db.Pool, tracer)
		newsRepo := news.NewRepository(db.Pool, tracer)
		if err := newsRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run news migrations: %v", err)
		}
		newsStore = newsRepo
	} else {
		store = repository.NewMemoryPriceRepository()
		newsStore = news.NewMemoryRepository()
	}
	if err := store.RunMigrations(ctx); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}
	defer db.Close()

	// Source adapters and the rate governor.
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
		store,
		collector.Config{
			Priority:      cfg.SourcePriority,
			FetchTimeout:  cfg.FetchTimeout,
			CycleDeadline: cfg.CycleDeadline,
		},
	)

	var redisClient service.RedisClient
	if cache.Enabled() {
		redisClient = cache.Client
	}
	marketService := service.NewMarketService(tracer, store, orch, redisClient)

	// News pipeline.
	newsScorer := news.NewScorer(newsLLM(cfg), 0)
	newsService := news.NewService(tracer, newsStore,
		provider.NewRSSAdapter(tracer, cfg.FetchTimeout),
		provider.NewCryptoPanicAdapter(tracer, cfg.CryptoPanicToken, cfg.FetchTimeout),
		newsScorer,
		news.Config{Feeds: cfg.NewsFeeds},
	)

	// Telegram bot doubles as the degraded-cycle alerter.
	tgBot := startTelegramBotFunc(cfg.TelegramBotToken, marketService, cfg.AlertChatID, cfg.ReliabilityAlertThreshold)

	// Websocket hub; built before the jobs so timer-driven cycles reach
	// subscribers too, not only triggered ones.
	hub := handler.NewHub()

	// Background jobs.
	collectorJob := job.NewCollectorJob(tracer, orch, store, cycleNotifiers{hub, tgBot}, cfg.Assets, cfg.CollectIntervalSecs)
	startCollectorJobFunc(collectorJob, ctx)
	newsJob := job.NewNewsJob(tracer, newsService, cfg.NewsPollSecs)
	startNewsJobFunc(newsJob, ctx)

	// HTTP surface.
	engine := analysis.NewEngine(tracer, store, 100)
	detector := analysis.NewAnomalyDetector(tracer, store, 200, 0.6)
	h := handler.New(tracer, marketService, newsService, engine, detector, hub, cfg.Assets)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("coinpulse"))

	h.RegisterRoutes(r, handler.APIKeyAuth(cfg.HTTPAPIKey))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

// cycleNotifiers fans one finished cycle out to every listener.
type cycleNotifiers []job.CycleNotifier

func (c cycleNotifiers) NotifyCycle(cycle *domain.CollectionCycle) {
	for _, n := range c {
		n.NotifyCycle(cycle)
	}
}

func newsLLM(cfg *config.Config) news.BatchLLMScorer {
	scorer := news.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	if scorer == nil {
		// A nil interface, not a typed nil pointer.
		return nil
	}
	return scorer
}
