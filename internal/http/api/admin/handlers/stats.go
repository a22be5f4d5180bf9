package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unigw/unigw/internal/routing"
	"github.com/unigw/unigw/internal/usage"
	"gorm.io/gorm"
)

// StatsHandler serves the console dashboard aggregate.
type StatsHandler struct {
	db        *gorm.DB
	discovery *routing.Discovery
}

// NewStatsHandler constructs a StatsHandler.
func NewStatsHandler(db *gorm.DB, discovery *routing.Discovery) *StatsHandler {
	return &StatsHandler{db: db, discovery: discovery}
}

// Get returns dashboard counters, the top-model chart and the live feed.
func (h *StatsHandler) Get(c *gin.Context) {
	modelCount := 0
	if h.discovery != nil {
		modelCount = len(h.discovery.Models(c.Request.Context()))
	}

	stats, errLoad := usage.LoadStats(c.Request.Context(), h.db, int64(modelCount))
	if errLoad != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load stats failed"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
