package handler

import (
	"coinpulse/internal/analysis"
	"coinpulse/internal/news"
	"coinpulse/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer   trace.Tracer
	market   *service.MarketService
	news     *news.Service
	engine   *analysis.Engine
	detector *analysis.AnomalyDetector
	hub      *Hub
	assets   []string
}

func New(
	tracer trace.Tracer,
	market *service.MarketService,
	newsService *news.Service,
	engine *analysis.Engine,
	detector *analysis.AnomalyDetector,
	hub *Hub,
	assets []string,
) *Handler {
	return &Handler{
		tracer:   tracer,
		market:   market,
		news:     newsService,
		engine:   engine,
		detector: detector,
		hub:      hub,
		assets:   assets,
	}
}

// RegisterRoutes mounts all routes. Middleware passed in (auth) guards the
// /api group and the websocket; /health stays open for probes.
func (h *Handler) RegisterRoutes(r *gin.Engine, middleware ...gin.HandlerFunc) {
	r.GET("/health", h.Health)

	api := r.Group("/api", middleware...)
	api.GET("/prices", h.GetAllPrices)
	api.GET("/prices/:asset", h.GetPrice)
	api.GET("/history/:asset", h.GetHistory)
	api.GET("/cycles/last", h.GetLastCycle)
	api.POST("/collect", h.TriggerCollect)
	api.GET("/analysis/correlation", h.GetCorrelation)
	api.GET("/analysis/volatility", h.GetVolatility)
	api.GET("/analysis/momentum", h.GetMomentum)
	api.GET("/analysis/anomalies", h.GetAnomalies)
	api.GET("/news", h.GetNews)
	api.GET("/news/sentiment", h.GetNewsSentiment)

	if h.hub != nil {
		r.GET("/ws", append(middleware, h.ServeWS)...)
	}
}
