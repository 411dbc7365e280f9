package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/indrayudh19/Job-Mapper/internal/service"
)

// PinHandler serves the current pin snapshot.
type PinHandler struct {
	queryService *service.PinQueryService
}

// NewPinHandler creates a new pin handler.
func NewPinHandler(queryService *service.PinQueryService) *PinHandler {
	return &PinHandler{queryService: queryService}
}

// ListPins handles GET /api/v1/pins. All four bounding box parameters must
// be present together; with none the full snapshot is returned.
func (h *PinHandler) ListPins(c *gin.Context) {
	bbox, err := parseBBox(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	pins, generation, generatedAt := h.queryService.Pins(bbox)
	c.JSON(http.StatusOK, gin.H{
		"pins":         pins,
		"total":        len(pins),
		"generation":   generation,
		"generated_at": generatedAt,
	})
}

type bboxParseError struct{ msg string }

func (e *bboxParseError) Error() string { return e.msg }

func parseBBox(c *gin.Context) (*service.BBox, error) {
	params := []string{"min_lat", "min_lon", "max_lat", "max_lon"}
	values := make([]float64, len(params))
	present := 0

	for i, name := range params {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &bboxParseError{msg: "invalid " + name + ": " + raw}
		}
		values[i] = v
		present++
	}

	if present == 0 {
		return nil, nil
	}
	if present != len(params) {
		return nil, &bboxParseError{msg: "bounding box requires min_lat, min_lon, max_lat and max_lon together"}
	}

	bbox := &service.BBox{
		MinLat: values[0],
		MinLon: values[1],
		MaxLat: values[2],
		MaxLon: values[3],
	}
	if err := bbox.Validate(); err != nil {
		return nil, &bboxParseError{msg: err.Error()}
	}
	return bbox, nil
}
