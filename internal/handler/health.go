package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health godoc
// @Summary      Health check
// @Description  Returns service health and the state of the last collection cycle
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	resp := gin.H{"status": "healthy"}
	if cycle := h.market.LastCycle(); cycle != nil {
		resp["last_cycle"] = gin.H{
			"cycle_id":     cycle.CycleID,
			"finished_at":  cycle.FinishedAt,
			"completeness": cycle.CompletenessScore,
			"reliability":  cycle.ReliabilityScore,
		}
	}
	c.JSON(http.StatusOK, resp)
}
