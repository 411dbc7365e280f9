package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/indrayudh19/Job-Mapper/internal/repository"
	"github.com/indrayudh19/Job-Mapper/internal/service"
	"gorm.io/gorm"
)

// RefreshHandler exposes the manual refresh trigger and run observability.
type RefreshHandler struct {
	orchestrator *service.Orchestrator
	runRepo      *repository.RunRepository
}

// NewRefreshHandler creates a new refresh handler.
func NewRefreshHandler(orchestrator *service.Orchestrator, runRepo *repository.RunRepository) *RefreshHandler {
	return &RefreshHandler{
		orchestrator: orchestrator,
		runRepo:      runRepo,
	}
}

// Trigger handles POST /api/v1/refresh. The request returns immediately;
// a trigger arriving while a cycle runs coalesces into one pending cycle.
func (h *RefreshHandler) Trigger(c *gin.Context) {
	accepted := h.orchestrator.Trigger()
	c.JSON(http.StatusAccepted, gin.H{
		"accepted":  accepted,
		"coalesced": !accepted,
		"running":   h.orchestrator.Running(),
	})
}

// LatestRun handles GET /api/v1/runs/latest.
func (h *RefreshHandler) LatestRun(c *gin.Context) {
	run, err := h.runRepo.Latest(c.Request.Context())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "No refresh run recorded yet",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to load latest run: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, run)
}
