package service

import (
	"context"
	"fmt"
	"time"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/store"
)

// BBox is a geographic bounding box filter for the pins endpoint.
type BBox struct {
	MinLat float64
	MinLon float64
	MaxLat float64
	MaxLon float64
}

// Contains reports whether the point lies inside the box.
func (b *BBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Validate checks bound ordering.
func (b *BBox) Validate() error {
	if b.MinLat > b.MaxLat {
		return fmt.Errorf("min_lat %v exceeds max_lat %v", b.MinLat, b.MaxLat)
	}
	if b.MinLon > b.MaxLon {
		return fmt.Errorf("min_lon %v exceeds max_lon %v", b.MinLon, b.MaxLon)
	}
	return nil
}

// ScoredPin is one semantic search hit joined with its served pin.
type ScoredPin struct {
	Pin   domain.Pin `json:"pin"`
	Score float32    `json:"score"`
}

// PinQueryService is the read path over the served snapshot. It never
// touches the pipeline; a refresh in progress is invisible to it until the
// new snapshot is committed.
type PinQueryService struct {
	store          *store.PinStore
	embedding      EmbeddingProvider
	index          PinIndex
	scoreThreshold float32
}

// NewPinQueryService creates a new pin query service. embedding and index
// may be nil, which disables semantic search.
func NewPinQueryService(pinStore *store.PinStore, embedding EmbeddingProvider, index PinIndex, scoreThreshold float32) *PinQueryService {
	return &PinQueryService{
		store:          pinStore,
		embedding:      embedding,
		index:          index,
		scoreThreshold: scoreThreshold,
	}
}

// Pins returns the pins of the current snapshot, optionally filtered by a
// bounding box, together with the snapshot generation and timestamp.
func (s *PinQueryService) Pins(bbox *BBox) ([]domain.Pin, uint64, time.Time) {
	snapshot := s.store.Current()
	if bbox == nil {
		return snapshot.Pins, snapshot.Generation, snapshot.GeneratedAt
	}

	filtered := make([]domain.Pin, 0, len(snapshot.Pins))
	for _, pin := range snapshot.Pins {
		if bbox.Contains(pin.Lat, pin.Lon) {
			filtered = append(filtered, pin)
		}
	}
	return filtered, snapshot.Generation, snapshot.GeneratedAt
}

// SearchEnabled reports whether the semantic search path is configured.
func (s *PinQueryService) SearchEnabled() bool {
	return s.embedding != nil && s.index != nil
}

// Search embeds the query, searches the vector index, and joins the hits
// against the current snapshot. Hits whose pin is no longer served are
// dropped, so stale index entries never leak retired pins.
func (s *PinQueryService) Search(ctx context.Context, query string, limit int) ([]ScoredPin, error) {
	if !s.SearchEnabled() {
		return nil, fmt.Errorf("semantic search is not configured")
	}

	vector, err := s.embedding.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := s.index.Search(ctx, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	snapshot := s.store.Current()
	served := make(map[string]*domain.Pin, len(snapshot.Pins))
	for i := range snapshot.Pins {
		served[snapshot.Pins[i].ID] = &snapshot.Pins[i]
	}

	hits := make([]ScoredPin, 0, len(results))
	for _, result := range results {
		if result.Score < s.scoreThreshold {
			continue
		}
		pin, ok := served[result.ID]
		if !ok {
			continue
		}
		hits = append(hits, ScoredPin{Pin: *pin, Score: result.Score})
	}
	return hits, nil
}
