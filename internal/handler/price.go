package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"coinpulse/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetPrice godoc
// @Summary      Get the latest merged record for one asset
// @Description  Returns the newest reconciled observation, with per-field provenance
// @Tags         prices
// @Produce      json
// @Param        asset  path  string  true  "Asset slug (e.g., bitcoin, ethereum)"
// @Success      200  {object}  domain.MergedRecord
// @Failure      400  {object}  map[string]string
// @Router       /api/prices/{asset} [get]
func (h *Handler) GetPrice(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-price")
	defer span.End()

	asset := strings.ToLower(c.Param("asset"))
	span.SetAttributes(attribute.String("asset", asset))

	// Accept tickers too; BTC and bitcoin are the same asset.
	if slug, ok := domain.SymbolAsset[strings.ToUpper(asset)]; ok {
		asset = slug
	}
	if !domain.IsTracked(asset) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":            "unsupported asset: " + asset,
			"supported_assets": domain.TrackedAssets,
		})
		return
	}

	record, err := h.market.GetLatestPrice(ctx, asset)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// GetAllPrices godoc
// @Summary      Get the latest merged records for all tracked assets
// @Tags         prices
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/prices [get]
func (h *Handler) GetAllPrices(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-all-prices")
	defer span.End()

	records, err := h.market.GetLatestPrices(ctx, h.assets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"prices": records})
}

// GetHistory godoc
// @Summary      Get historical records for one asset
// @Description  Returns stored records oldest first; defaults to the last 24 hours
// @Tags         prices
// @Produce      json
// @Param        asset  path   string  true   "Asset slug"
// @Param        hours  query  int     false  "Lookback window in hours (default 24)"
// @Param        limit  query  int     false  "Maximum records (default 1000)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/history/{asset} [get]
func (h *Handler) GetHistory(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-history")
	defer span.End()

	asset := strings.ToLower(c.Param("asset"))
	span.SetAttributes(attribute.String("asset", asset))

	hours := 24
	if v := c.Query("hours"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hours: " + v})
			return
		}
		hours = n
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + v})
			return
		}
		limit = n
	}

	to := time.Now().UTC()
	from := to.Add(-time.Duration(hours) * time.Hour)
	records, err := h.market.GetHistory(ctx, asset, from, to, limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"asset": asset, "records": records})
}
