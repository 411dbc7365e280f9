package source

import (
	"context"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
)

// Connector defines the contract for job listing sources. The pipeline
// treats connectors as untrusted and rate-limited: a failing connector
// degrades coverage for a cycle, never availability.
type Connector interface {
	// SourceID returns the unique identifier for this source.
	SourceID() string

	// DisplayName returns a human-readable name for this source.
	DisplayName() string

	// FetchBatch fetches a batch of raw listings starting from the given
	// cursor (empty for the first page). It returns the listings fetched so
	// far together with a non-nil error on partial failure, so callers never
	// silently lose items. An empty nextCursor means the source is exhausted.
	FetchBatch(ctx context.Context, cursor string, limit int) (items []domain.RawListing, nextCursor string, err error)
}
