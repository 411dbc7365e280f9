package service

import (
	"context"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
	"github.com/indrayudh19/Job-Mapper/internal/logger"
	"github.com/indrayudh19/Job-Mapper/internal/repository"
)

// PinIndex is the vector index seam used by the indexer and search path.
// *repository.QdrantRepository is the production implementation.
type PinIndex interface {
	Upsert(ctx context.Context, pinID string, vector []float32, payload *repository.PinPayload) error
	Search(ctx context.Context, vector []float32, topK int) ([]repository.SearchResult, error)
}

// indexBatchSize bounds one embedding API call.
const indexBatchSize = 32

// PinIndexer embeds committed pins and upserts them into the vector index.
// Indexing runs after a snapshot commit and is best-effort: a failure
// degrades search, never the map.
type PinIndexer struct {
	embedding EmbeddingProvider
	index     PinIndex
	logger    *logger.Logger
}

// NewPinIndexer creates a new pin indexer.
func NewPinIndexer(embedding EmbeddingProvider, index PinIndex, log *logger.Logger) *PinIndexer {
	return &PinIndexer{
		embedding: embedding,
		index:     index,
		logger:    log,
	}
}

func (x *PinIndexer) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return x.logger
}

// IndexPins embeds and upserts the given pins in batches. It returns the
// number of pins indexed and the last error encountered; partial progress
// is kept.
func (x *PinIndexer) IndexPins(ctx context.Context, pins []domain.Pin) (int, error) {
	indexed := 0
	var lastErr error

	for start := 0; start < len(pins); start += indexBatchSize {
		end := start + indexBatchSize
		if end > len(pins) {
			end = len(pins)
		}
		batch := pins[start:end]

		texts := make([]string, len(batch))
		for i := range batch {
			texts[i] = BuildPinEmbeddingText(&batch[i])
		}

		vectors, err := x.embedding.EmbedBatch(ctx, texts)
		if err != nil {
			x.log(ctx).WithError(err).Error("Failed to embed pin batch")
			lastErr = err
			continue
		}

		for i := range batch {
			pin := &batch[i]
			payload := &repository.PinPayload{
				PinID:        pin.ID,
				Title:        pin.Title,
				Company:      pin.Company,
				LocationText: pin.LocationText,
				Lat:          pin.Lat,
				Lon:          pin.Lon,
			}
			if err := x.index.Upsert(ctx, pin.ID, vectors[i], payload); err != nil {
				x.log(ctx).WithFields(logger.Fields{
					logger.FieldPinID: pin.ID,
				}).WithError(err).Error("Failed to index pin")
				lastErr = err
				continue
			}
			indexed++
		}
	}

	return indexed, lastErr
}
