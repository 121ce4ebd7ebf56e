package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetCorrelation godoc
// @Summary      Pairwise return correlation across tracked assets
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/analysis/correlation [get]
func (h *Handler) GetCorrelation(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-correlation")
	defer span.End()

	matrix, err := h.engine.CorrelationMatrix(ctx, h.assets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"correlation": matrix})
}

// GetVolatility godoc
// @Summary      Assets ranked by return volatility, most volatile first
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/analysis/volatility [get]
func (h *Handler) GetVolatility(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-volatility")
	defer span.End()

	ranking, err := h.engine.VolatilityRanking(ctx, h.assets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"volatility": ranking})
}

// GetMomentum godoc
// @Summary      Percent move over the analysis window per asset
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/analysis/momentum [get]
func (h *Handler) GetMomentum(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-momentum")
	defer span.End()

	momentum, err := h.engine.Momentum(ctx, h.assets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"momentum": momentum})
}

// GetAnomalies godoc
// @Summary      Isolation-forest anomaly scores for each asset's latest move
// @Tags         analysis
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/analysis/anomalies [get]
func (h *Handler) GetAnomalies(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-anomalies")
	defer span.End()

	anomalies, err := h.detector.Detect(ctx, h.assets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"anomalies": anomalies})
}
