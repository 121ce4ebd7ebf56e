package handler

import (
	"errors"
	"net/http"

	"coinpulse/internal/collector"

	"github.com/gin-gonic/gin"
)

// GetLastCycle godoc
// @Summary      Get the most recent collection cycle summary
// @Tags         cycles
// @Produce      json
// @Success      200  {object}  domain.CollectionCycle
// @Failure      404  {object}  map[string]string
// @Router       /api/cycles/last [get]
func (h *Handler) GetLastCycle(c *gin.Context) {
	cycle := h.market.LastCycle()
	if cycle == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cycle has run yet"})
		return
	}
	c.JSON(http.StatusOK, cycle)
}

type collectRequest struct {
	Assets []string `json:"assets"`
}

// TriggerCollect godoc
// @Summary      Run a collection cycle now
// @Description  Runs one cycle synchronously; an empty body collects all tracked assets
// @Tags         cycles
// @Accept       json
// @Produce      json
// @Success      200  {object}  domain.CollectionCycle
// @Failure      409  {object}  map[string]string
// @Router       /api/collect [post]
func (h *Handler) TriggerCollect(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.trigger-collect")
	defer span.End()

	var req collectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	cycle, err := h.market.TriggerCycle(ctx, req.Assets)
	if err != nil {
		if errors.Is(err, collector.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if h.hub != nil {
		h.hub.BroadcastCycle(cycle)
	}
	c.JSON(http.StatusOK, cycle)
}
