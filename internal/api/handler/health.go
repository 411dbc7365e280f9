package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/indrayudh19/Job-Mapper/internal/store"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	pinStore *store.PinStore
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(pinStore *store.PinStore) *HealthHandler {
	return &HealthHandler{pinStore: pinStore}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Root returns service identity and the served snapshot generation.
// Constant-time: it only loads the current snapshot pointer.
func (h *HealthHandler) Root(c *gin.Context) {
	snapshot := h.pinStore.Current()
	c.JSON(http.StatusOK, gin.H{
		"service":    "india-job-map",
		"status":     "ok",
		"generation": snapshot.Generation,
		"pins":       len(snapshot.Pins),
	})
}
