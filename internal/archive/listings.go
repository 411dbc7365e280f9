package archive

import (
	"bytes"
	"context"
	"fmt"

	"github.com/indrayudh19/Job-Mapper/internal/domain"
)

// ListingArchiver stores raw listing payloads so a pipeline run can be
// replayed or audited after the upstream source has rotated its data.
type ListingArchiver struct {
	store ObjectArchive
}

// NewListingArchiver creates a ListingArchiver over an object archive.
func NewListingArchiver(store ObjectArchive) *ListingArchiver {
	return &ListingArchiver{store: store}
}

// listingObjectKey builds the archive key for one raw listing.
// Layout: raw/<run_id>/<source_id>/<source_key>.json
func listingObjectKey(runID string, listing *domain.RawListing) string {
	return fmt.Sprintf("raw/%s/%s/%s.json", runID, listing.SourceID, listing.SourceKey)
}

// ArchiveListing uploads one raw listing payload under the run's prefix.
func (a *ListingArchiver) ArchiveListing(ctx context.Context, runID string, listing *domain.RawListing) error {
	key := listingObjectKey(runID, listing)
	reader := bytes.NewReader(listing.Payload)
	if err := a.store.Upload(ctx, key, reader, int64(len(listing.Payload)), "application/json"); err != nil {
		return fmt.Errorf("failed to archive listing %s/%s: %w", listing.SourceID, listing.SourceKey, err)
	}
	return nil
}

// ArchiveBatch uploads a batch of raw listings, stopping at the first error.
func (a *ListingArchiver) ArchiveBatch(ctx context.Context, runID string, listings []domain.RawListing) error {
	for i := range listings {
		if err := a.ArchiveListing(ctx, runID, &listings[i]); err != nil {
			return err
		}
	}
	return nil
}
