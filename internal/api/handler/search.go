package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/indrayudh19/Job-Mapper/internal/service"
)

const defaultSearchLimit = 20

// SearchHandler handles semantic pin search.
type SearchHandler struct {
	queryService *service.PinQueryService
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - queryService: pin query service instance.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(queryService *service.PinQueryService) *SearchHandler {
	return &SearchHandler{queryService: queryService}
}

// Search handles GET /api/v1/search.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	if !h.queryService.SearchEnabled() {
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "Semantic search is not configured",
		})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Query parameter 'q' is required",
		})
		return
	}

	limit := defaultSearchLimit
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 100 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be an integer between 1 and 100",
			})
			return
		}
		limit = v
	}

	hits, err := h.queryService.Search(c.Request.Context(), query, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"results": hits,
		"total":   len(hits),
	})
}
