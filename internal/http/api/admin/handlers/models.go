package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/unigw/unigw/internal/routing"
)

// ModelsHandler serves the discovered model catalog to the console.
type ModelsHandler struct {
	discovery *routing.Discovery
}

// NewModelsHandler constructs a ModelsHandler.
func NewModelsHandler(discovery *routing.Discovery) *ModelsHandler {
	return &ModelsHandler{discovery: discovery}
}

// List returns the aggregated model list in the same envelope the data
// plane serves, so console and API clients see one catalog.
func (h *ModelsHandler) List(c *gin.Context) {
	entries := []routing.ModelInfo{}
	if h.discovery != nil {
		if fetched := h.discovery.Models(c.Request.Context()); fetched != nil {
			entries = fetched
		}
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": entries})
}
