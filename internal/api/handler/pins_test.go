package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"github.com/indrayudh19/Job-Mapper/internal/service"
	"github.com/indrayudh19/Job-Mapper/internal/store"
	"gorm.io/gorm"
)

type memorySnapshots struct {
	generation uint64
	latest     *domain.PinSnapshot
}

func (m *memorySnapshots) Save(ctx context.Context, snapshot *domain.PinSnapshot) error {
	m.generation++
	snapshot.Generation = m.generation
	m.latest = snapshot
	return nil
}

func (m *memorySnapshots) Latest(ctx context.Context) (*domain.PinSnapshot, error) {
	if m.latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return m.latest, nil
}

func (m *memorySnapshots) Prune(ctx context.Context, keep int) error { return nil }

func servedPins() []domain.Pin {
	return []domain.Pin{
		{ID: "pin-blr", Lat: 12.9716, Lon: 77.5946, Title: "Engineer", Company: "Acme"},
		{ID: "pin-bom", Lat: 19.0760, Lon: 72.8777, Title: "Designer", Company: "Beta"},
	}
}

func newPinsRouter(t *testing.T, pins []domain.Pin) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	pinStore := store.NewPinStore(&memorySnapshots{}, 5, logger.New(nil))
	if _, err := pinStore.Commit(context.Background(), "run-1", pins); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	queryService := service.NewPinQueryService(pinStore, nil, nil, 0)
	h := NewPinHandler(queryService)

	r := gin.New()
	r.GET("/api/v1/pins", h.ListPins)
	return r
}

type pinsResponse struct {
	Pins       []domain.Pin `json:"pins"`
	Total      int          `json:"total"`
	Generation uint64       `json:"generation"`
}

func getPins(t *testing.T, r *gin.Engine, url string) (*httptest.ResponseRecorder, *pinsResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, url, nil)
	r.ServeHTTP(w, req)

	var body pinsResponse
	if w.Code == http.StatusOK {
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return w, &body
}

func TestListPins_FullSnapshot(t *testing.T) {
	r := newPinsRouter(t, servedPins())

	w, body := getPins(t, r, "/api/v1/pins")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if body.Total != 2 || len(body.Pins) != 2 {
		t.Errorf("expected 2 pins, got total=%d len=%d", body.Total, len(body.Pins))
	}
	if body.Generation != 1 {
		t.Errorf("expected generation 1, got %d", body.Generation)
	}
}

func TestListPins_BoundingBoxFilters(t *testing.T) {
	r := newPinsRouter(t, servedPins())

	// Box around Bengaluru only
	w, body := getPins(t, r, "/api/v1/pins?min_lat=12&min_lon=77&max_lat=14&max_lon=78")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body.Total != 1 {
		t.Fatalf("expected 1 pin inside the box, got %d", body.Total)
	}
	if body.Pins[0].ID != "pin-blr" {
		t.Errorf("expected pin-blr, got %q", body.Pins[0].ID)
	}
}

func TestListPins_EmptyBoxReturnsNoPins(t *testing.T) {
	r := newPinsRouter(t, servedPins())

	w, body := getPins(t, r, "/api/v1/pins?min_lat=50&min_lon=0&max_lat=51&max_lon=1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body.Total != 0 {
		t.Errorf("expected 0 pins, got %d", body.Total)
	}
}

func TestListPins_PartialBoundingBoxRejected(t *testing.T) {
	r := newPinsRouter(t, servedPins())

	w, _ := getPins(t, r, "/api/v1/pins?min_lat=12&min_lon=77")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for partial bbox, got %d", w.Code)
	}
}

func TestListPins_InvalidCoordinateRejected(t *testing.T) {
	r := newPinsRouter(t, servedPins())

	w, _ := getPins(t, r, "/api/v1/pins?min_lat=abc&min_lon=77&max_lat=14&max_lon=78")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid coordinate, got %d", w.Code)
	}
}

func TestListPins_InvertedBoundsRejected(t *testing.T) {
	r := newPinsRouter(t, servedPins())

	w, _ := getPins(t, r, "/api/v1/pins?min_lat=14&min_lon=77&max_lat=12&max_lon=78")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for inverted bounds, got %d", w.Code)
	}
}

func TestListPins_EmptySnapshot(t *testing.T) {
	r := newPinsRouter(t, nil)

	w, body := getPins(t, r, "/api/v1/pins")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body.Total != 0 {
		t.Errorf("expected 0 pins, got %d", body.Total)
	}
}
