package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetNews godoc
// @Summary      Recent crypto headlines with sentiment
// @Tags         news
// @Produce      json
// @Param        limit  query  int  false  "Maximum items (default 50)"
// @Success      200  {object}  map[string]interface{}
// @Router       /api/news [get]
func (h *Handler) GetNews(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-news")
	defer span.End()

	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit: " + v})
			return
		}
		limit = n
	}

	items, err := h.news.Recent(ctx, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"news": items})
}

// GetNewsSentiment godoc
// @Summary      Average sentiment over the newest scored headlines
// @Tags         news
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/news/sentiment [get]
func (h *Handler) GetNewsSentiment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-news-sentiment")
	defer span.End()

	avg, label, ok, err := h.news.AggregateSentiment(ctx, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"scored": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"scored": true, "score": avg, "label": label})
}
