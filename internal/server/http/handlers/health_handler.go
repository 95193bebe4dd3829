package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports service liveness and storage connectivity.
type HealthHandler struct {
	storage Pinger
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(storage Pinger) *HealthHandler {
	return &HealthHandler{storage: storage}
}

// Check handles GET /health.
func (h *HealthHandler) Check(c *gin.Context) {
	if err := h.storage.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
